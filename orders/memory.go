package orders

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Papel-hub/talentoStore/models"
)

// MemoryRepository is an in-process Repository used by tests and local runs
// without MongoDB.
type MemoryRepository struct {
	mu        sync.RWMutex
	orders    map[string]models.Order
	customers map[string]models.Customer // by email
	pending   map[string]models.PendingNotification
	now       func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		orders:    make(map[string]models.Order),
		customers: make(map[string]models.Customer),
		pending:   make(map[string]models.PendingNotification),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

var _ Repository = (*MemoryRepository)(nil)

func (m *MemoryRepository) UpsertCustomer(_ context.Context, c models.Customer) (*models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()

	existing, ok := m.customers[c.Email]
	if !ok {
		c.ID = uuid.New().String()
		c.Status = models.CustomerSuspended
		c.CreatedAt = now
		c.UpdatedAt = now
		m.customers[c.Email] = c
		cp := c
		return &cp, nil
	}

	existing.Name = c.Name
	existing.Phone = c.Phone
	if c.TaxID != "" {
		existing.TaxID = c.TaxID
	}
	existing.PersonType = c.PersonType
	existing.UpdatedAt = now
	if existing.Status != models.CustomerPurchased {
		existing.Status = models.CustomerSuspended
	}
	m.customers[c.Email] = existing
	cp := existing
	return &cp, nil
}

func (m *MemoryRepository) MarkCustomerPurchased(_ context.Context, email, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[email]
	if !ok {
		return ErrNotFound
	}
	c.Status = models.CustomerPurchased
	c.LastOrderID = orderID
	c.UpdatedAt = m.now()
	m.customers[email] = c
	return nil
}

// Customer returns a copy of the stored customer record.
func (m *MemoryRepository) Customer(email string) (models.Customer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.customers[email]
	return c, ok
}

func (m *MemoryRepository) CreateOrder(_ context.Context, o *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	o.Status = models.OrderPending
	o.CreatedAt = m.now()
	o.UpdatedAt = o.CreatedAt
	m.orders[o.ID] = copyOrder(*o)
	return nil
}

func (m *MemoryRepository) GetOrder(_ context.Context, id string) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := copyOrder(o)
	return &cp, nil
}

func (m *MemoryRepository) AttachPaymentReference(_ context.Context, orderID, refID, paymentURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	if o.Status != models.OrderPending {
		return ErrNotPending
	}
	if o.PaymentReferenceID != "" && o.PaymentReferenceID != refID {
		return ErrReferenceConflict
	}
	o.PaymentReferenceID = refID
	o.PaymentURL = paymentURL
	o.UpdatedAt = m.now()
	m.orders[orderID] = o
	return nil
}

func (m *MemoryRepository) FindOrdersByPaymentReference(_ context.Context, refID string) ([]models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Order, 0)
	if refID == "" {
		return out, nil
	}
	for _, o := range m.orders {
		if o.PaymentReferenceID == refID {
			out = append(out, copyOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryRepository) UpdateOrderStatus(_ context.Context, orderID string, status models.OrderStatus, paymentID string) (bool, error) {
	if !status.Terminal() {
		return false, ErrInvalidStatus
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return false, ErrNotFound
	}
	switch {
	case o.Status == status:
		return false, nil
	case o.Status.Terminal():
		return false, ErrTerminalStatus
	}
	o.Status = status
	if paymentID != "" {
		o.PaymentID = paymentID
	}
	o.UpdatedAt = m.now()
	m.orders[orderID] = o
	return true, nil
}

func (m *MemoryRepository) FlagForReview(_ context.Context, orderIDs []string, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range orderIDs {
		o, ok := m.orders[id]
		if !ok {
			continue
		}
		o.NeedsReview = true
		o.ReviewReason = reason
		o.UpdatedAt = m.now()
		m.orders[id] = o
	}
	return nil
}

func (m *MemoryRepository) ListFlagged(_ context.Context) ([]models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Order, 0)
	for _, o := range m.orders {
		if o.NeedsReview {
			out = append(out, copyOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *MemoryRepository) SavePendingNotification(_ context.Context, n models.PendingNotification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[n.PaymentID] = n
	return nil
}

func (m *MemoryRepository) TakePendingNotifications(_ context.Context, refID string) ([]models.PendingNotification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	out := make([]models.PendingNotification, 0)
	for id, n := range m.pending {
		if n.ExpiresAt.Before(now) {
			delete(m.pending, id)
			continue
		}
		if n.ReferenceKey == refID {
			out = append(out, n)
			delete(m.pending, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	return out, nil
}
