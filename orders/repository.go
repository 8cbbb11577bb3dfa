package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/Papel-hub/talentoStore/models"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrTerminalStatus    = errors.New("order already in a terminal status")
	ErrInvalidStatus     = errors.New("invalid target status")
	ErrNotPending        = errors.New("order is not pending")
	ErrReferenceConflict = errors.New("order already has a different payment reference")
	// ErrUnavailable marks transient storage failures; callers may retry.
	ErrUnavailable = errors.New("order storage unavailable")
)

// Repository is the durable store for orders, customers and buffered
// payment notifications.
type Repository interface {
	// UpsertCustomer inserts a suspended customer or refreshes an existing
	// one. A purchased customer is never downgraded.
	UpsertCustomer(ctx context.Context, c models.Customer) (*models.Customer, error)
	MarkCustomerPurchased(ctx context.Context, email, orderID string) error

	// CreateOrder stores a new pending order and assigns its ID.
	CreateOrder(ctx context.Context, o *models.Order) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	AttachPaymentReference(ctx context.Context, orderID, refID, paymentURL string) error
	FindOrdersByPaymentReference(ctx context.Context, refID string) ([]models.Order, error)
	// UpdateOrderStatus moves a pending order to status. It reports false
	// without error when the order already has that status.
	UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus, paymentID string) (bool, error)
	FlagForReview(ctx context.Context, orderIDs []string, reason string) error
	ListFlagged(ctx context.Context) ([]models.Order, error)

	SavePendingNotification(ctx context.Context, n models.PendingNotification) error
	TakePendingNotifications(ctx context.Context, refID string) ([]models.PendingNotification, error)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}

// IsTransient reports whether err is a storage outage worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

func copyOrder(o models.Order) models.Order {
	cp := o
	cp.Items = make([]models.OrderItem, len(o.Items))
	copy(cp.Items, o.Items)
	return cp
}
