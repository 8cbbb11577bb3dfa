package pay

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/Papel-hub/talentoStore/models"
	"github.com/Papel-hub/talentoStore/orders"
)

// ErrOrderNotPending is returned when a payment is requested for an order
// that has already been settled.
var ErrOrderNotPending = errors.New("order is not pending")

// Gateway is the payment provider as seen by the storefront.
type Gateway interface {
	CreatePreference(ctx context.Context, req models.PreferenceRequest) (models.Preference, error)
	GetPayment(ctx context.Context, id string) (models.PaymentDetails, error)
}

// PaymentInitiationError wraps a gateway failure while opening a preference.
// The order is left untouched and may be retried.
type PaymentInitiationError struct {
	OrderID string
	Err     error
}

func (e *PaymentInitiationError) Error() string {
	return fmt.Sprintf("payment initiation for order %s failed: %v", e.OrderID, e.Err)
}

func (e *PaymentInitiationError) Unwrap() error { return e.Err }

// Redirect is where the shopper goes to pay.
type Redirect struct {
	OrderID      string
	PreferenceID string
	URL          string
}

// Initiator opens a gateway preference for a pending order.
type Initiator struct {
	repo       orders.Repository
	gateway    Gateway
	siteURL    string
	reconciler *Reconciler
}

func NewInitiator(repo orders.Repository, gateway Gateway, siteURL string, reconciler *Reconciler) *Initiator {
	return &Initiator{repo: repo, gateway: gateway, siteURL: siteURL, reconciler: reconciler}
}

// Initiate returns the checkout redirect for orderID. An order that already
// carries a reference gets its stored redirect back, so retries never open a
// second preference.
func (in *Initiator) Initiate(ctx context.Context, orderID string) (*Redirect, error) {
	order, err := in.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderPending {
		return nil, ErrOrderNotPending
	}
	if order.PaymentReferenceID != "" && order.PaymentURL != "" {
		return &Redirect{OrderID: order.ID, PreferenceID: order.PaymentReferenceID, URL: order.PaymentURL}, nil
	}

	pref, err := in.gateway.CreatePreference(ctx, in.preferenceRequest(order))
	if err != nil {
		return nil, &PaymentInitiationError{OrderID: order.ID, Err: err}
	}

	err = in.repo.AttachPaymentReference(ctx, order.ID, pref.ID, pref.RedirectURL)
	switch {
	case errors.Is(err, orders.ErrReferenceConflict):
		// A concurrent request won; hand out its redirect.
		stored, gerr := in.repo.GetOrder(ctx, order.ID)
		if gerr != nil {
			return nil, gerr
		}
		return &Redirect{OrderID: stored.ID, PreferenceID: stored.PaymentReferenceID, URL: stored.PaymentURL}, nil
	case errors.Is(err, orders.ErrNotPending):
		return nil, ErrOrderNotPending
	case err != nil:
		return nil, err
	}

	if in.reconciler != nil {
		if err := in.reconciler.ResolvePending(ctx, pref.ID); err != nil {
			log.Printf("Initiate: replaying buffered notifications for %s: %v", pref.ID, err)
		}
	}
	return &Redirect{OrderID: order.ID, PreferenceID: pref.ID, URL: pref.RedirectURL}, nil
}

func (in *Initiator) preferenceRequest(o *models.Order) models.PreferenceRequest {
	items := make([]models.PreferenceItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, models.PreferenceItem{
			ID:         it.ID,
			Title:      it.Title,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			CurrencyID: o.Currency,
		})
	}
	return models.PreferenceRequest{
		Items: items,
		Payer: models.Payer{
			Name:  o.Customer.Name,
			Email: o.Customer.Email,
			TaxID: o.Customer.TaxID,
		},
		BackURLs: models.BackURLs{
			Success: in.siteURL + "/compra-realizada",
			Failure: in.siteURL + "/compra-falhou",
			Pending: in.siteURL + "/compra-pendente",
		},
		AutoReturn:        "approved",
		ExternalReference: o.ID,
		NotificationURL:   in.siteURL + "/api/webhooks/mercadopago",
	}
}
