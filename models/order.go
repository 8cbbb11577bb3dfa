package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus moves forward only: pending -> paid | failed | cancelled.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderFailed    OrderStatus = "failed"
	OrderCancelled OrderStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderPaid, OrderFailed, OrderCancelled:
		return true
	}
	return false
}

func (s OrderStatus) Valid() bool {
	return s == OrderPending || s.Terminal()
}

type PaymentMethod string

const (
	PaymentPix    PaymentMethod = "pix"
	PaymentCard   PaymentMethod = "card"
	PaymentBoleto PaymentMethod = "boleto"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentPix, PaymentCard, PaymentBoleto:
		return true
	}
	return false
}

// OrderItem is a frozen copy of a cart line at checkout time.
type OrderItem struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	FileURL   string          `json:"fileUrl,omitempty"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is the immutable receipt of a checkout attempt. After creation only
// Status, the payment fields, the review flag and UpdatedAt change.
type Order struct {
	ID                 string           `json:"id"`
	Customer           CustomerSnapshot `json:"customer"`
	Items              []OrderItem      `json:"items"`
	Total              decimal.Decimal  `json:"total"`
	Currency           string           `json:"currency"`
	PaymentMethod      PaymentMethod    `json:"paymentMethod"`
	Status             OrderStatus      `json:"status"`
	PaymentReferenceID string           `json:"paymentReferenceId,omitempty"`
	PaymentURL         string           `json:"paymentUrl,omitempty"`
	PaymentID          string           `json:"paymentId,omitempty"`
	NeedsReview        bool             `json:"needsReview,omitempty"`
	ReviewReason       string           `json:"reviewReason,omitempty"`
	CreatedAt          time.Time        `json:"createdAt"`
	UpdatedAt          time.Time        `json:"updatedAt"`
}

// ItemsTotal sums unit price times quantity over the order's items.
func ItemsTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// OrderView is what a shopper sees when polling an order.
type OrderView struct {
	ID        string      `json:"id"`
	Status    OrderStatus `json:"status"`
	Items     []OrderItem `json:"items"`
	Total     string      `json:"total"`
	Currency  string      `json:"currency"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

func (o Order) View() OrderView {
	items := make([]OrderItem, len(o.Items))
	copy(items, o.Items)
	return OrderView{
		ID:        o.ID,
		Status:    o.Status,
		Items:     items,
		Total:     o.Total.StringFixed(2),
		Currency:  o.Currency,
		UpdatedAt: o.UpdatedAt,
	}
}

// PendingNotification holds a payment notification whose reference matched no
// order yet; it is replayed when the reference gets attached.
type PendingNotification struct {
	PaymentID     string    `json:"paymentId" bson:"paymentId"`
	ReferenceKey  string    `json:"referenceKey" bson:"referenceKey"`
	GatewayStatus string    `json:"gatewayStatus" bson:"gatewayStatus"`
	ReceivedAt    time.Time `json:"receivedAt" bson:"receivedAt"`
	ExpiresAt     time.Time `json:"expiresAt" bson:"expiresAt"`
}

// OrderStatusEvent is broadcast whenever an order changes status.
type OrderStatusEvent struct {
	OrderID   string      `json:"orderId"`
	Status    OrderStatus `json:"status"`
	UpdatedAt time.Time   `json:"updatedAt"`
}
