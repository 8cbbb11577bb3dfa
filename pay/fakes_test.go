package pay

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Papel-hub/talentoStore/models"
	"github.com/Papel-hub/talentoStore/notify"
	"github.com/Papel-hub/talentoStore/orders"
)

type fakeGateway struct {
	mu       sync.Mutex
	payments map[string]models.PaymentDetails
	getErr   error
	prefErr  error
	prefID   string
	prefs    []models.PreferenceRequest
	fetches  int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{payments: make(map[string]models.PaymentDetails), prefID: "pref-1"}
}

func (g *fakeGateway) CreatePreference(_ context.Context, req models.PreferenceRequest) (models.Preference, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.prefErr != nil {
		return models.Preference{}, g.prefErr
	}
	g.prefs = append(g.prefs, req)
	return models.Preference{ID: g.prefID, RedirectURL: "https://mp.example/checkout?pref_id=" + g.prefID}, nil
}

func (g *fakeGateway) GetPayment(_ context.Context, id string) (models.PaymentDetails, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetches++
	if g.getErr != nil {
		return models.PaymentDetails{}, g.getErr
	}
	p, ok := g.payments[id]
	if !ok {
		return models.PaymentDetails{}, fmt.Errorf("payment %s unknown", id)
	}
	return p, nil
}

func (g *fakeGateway) setPayment(p models.PaymentDetails) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments[p.ID] = p
}

type recordingNotifier struct {
	mu       sync.Mutex
	receipts []notify.Receipt
}

func (n *recordingNotifier) SendReceipt(_ context.Context, r notify.Receipt) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.receipts = append(n.receipts, r)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.receipts)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.OrderStatusEvent
}

func (p *recordingPublisher) PublishStatus(_ context.Context, ev models.OrderStatusEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

// outageRepo fails every lookup the reconciler needs with a transient error.
type outageRepo struct {
	orders.Repository
}

func (outageRepo) FindOrdersByPaymentReference(context.Context, string) ([]models.Order, error) {
	return nil, fmt.Errorf("find: %w", orders.ErrUnavailable)
}

func (outageRepo) GetOrder(context.Context, string) (*models.Order, error) {
	return nil, fmt.Errorf("get: %w", orders.ErrUnavailable)
}

func seedOrder(t *testing.T, repo orders.Repository, email string) *models.Order {
	t.Helper()
	ctx := context.Background()
	_, err := repo.UpsertCustomer(ctx, models.Customer{
		Name: "Maria Silva", Email: email, Phone: "11987654321", PersonType: models.PersonIndividual,
	})
	require.NoError(t, err)

	o := &models.Order{
		Customer: models.CustomerSnapshot{Name: "Maria Silva", Email: email, TaxID: "52998224725"},
		Items: []models.OrderItem{{
			ID: "curso-a", Title: "Curso A", UnitPrice: decimal.RequireFromString("100"), Quantity: 2,
			FileURL: "https://cdn.example/curso-a.zip",
		}},
		Total:         decimal.RequireFromString("200"),
		Currency:      "BRL",
		PaymentMethod: models.PaymentPix,
		Status:        models.OrderPending,
	}
	require.NoError(t, repo.CreateOrder(ctx, o))
	return o
}
