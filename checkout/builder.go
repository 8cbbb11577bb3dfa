package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/Papel-hub/talentoStore/models"
	"github.com/Papel-hub/talentoStore/orders"
)

// Builder turns a cart snapshot and customer identification into a
// persisted pending order.
type Builder struct {
	repo     orders.Repository
	currency string
}

func NewBuilder(repo orders.Repository, currency string) *Builder {
	if currency == "" {
		currency = "BRL"
	}
	return &Builder{repo: repo, currency: currency}
}

// Identify validates the identification step and records the customer as
// suspended until a payment clears.
func (b *Builder) Identify(ctx context.Context, in CustomerInput) (*models.Customer, error) {
	c, err := ValidateCustomer(in)
	if err != nil {
		return nil, err
	}
	saved, err := b.repo.UpsertCustomer(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("save customer: %w", err)
	}
	return saved, nil
}

// ParsePaymentMethod accepts the API names and the storefront's labels.
func ParsePaymentMethod(s string) (models.PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pix":
		return models.PaymentPix, nil
	case "card", "cartao", "cartão", "credit_card":
		return models.PaymentCard, nil
	case "boleto", "ticket":
		return models.PaymentBoleto, nil
	}
	return "", invalid("paymentMethod", "must be pix, card or boleto")
}

// Build validates everything up front, then upserts the customer and stores
// the order. Nothing is written when validation fails.
func (b *Builder) Build(ctx context.Context, lines []models.CartLine, in CustomerInput, method string) (*models.Order, error) {
	items, err := snapshot(lines)
	if err != nil {
		return nil, err
	}
	customer, err := ValidateCustomer(in)
	if err != nil {
		return nil, err
	}
	pm, err := ParsePaymentMethod(method)
	if err != nil {
		return nil, err
	}

	if _, err := b.repo.UpsertCustomer(ctx, customer); err != nil {
		return nil, fmt.Errorf("save customer: %w", err)
	}

	order := &models.Order{
		Customer:      customer.Snapshot(),
		Items:         items,
		Total:         models.ItemsTotal(items),
		Currency:      b.currency,
		PaymentMethod: pm,
		Status:        models.OrderPending,
	}
	if err := b.repo.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return order, nil
}

func snapshot(lines []models.CartLine) ([]models.OrderItem, error) {
	if len(lines) == 0 {
		return nil, invalid("cart", "is empty")
	}
	items := make([]models.OrderItem, 0, len(lines))
	for _, l := range lines {
		if l.ProductID == "" || strings.TrimSpace(l.Title) == "" {
			return nil, invalid("items", "every item needs an id and a title")
		}
		if l.Quantity < 1 {
			return nil, invalid("items", fmt.Sprintf("quantity of %s must be at least 1", l.ProductID))
		}
		if l.UnitPrice.IsNegative() {
			return nil, invalid("items", fmt.Sprintf("price of %s must not be negative", l.ProductID))
		}
		items = append(items, models.OrderItem{
			ID:        l.ProductID,
			Title:     l.Title,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
			FileURL:   l.FileURL,
		})
	}
	return items, nil
}
