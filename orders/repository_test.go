package orders

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Papel-hub/talentoStore/models"
)

// repositoryCases runs the behaviour shared by every Repository against a
// fresh store returned by newRepo.
func repositoryCases(t *testing.T, newRepo func(t *testing.T) Repository) {
	ctx := context.Background()

	newOrder := func(t *testing.T, repo Repository) *models.Order {
		t.Helper()
		items := []models.OrderItem{
			{ID: "curso-a", Title: "Curso A", UnitPrice: decimal.RequireFromString("100.00"), Quantity: 2},
		}
		o := &models.Order{
			Customer: models.CustomerSnapshot{
				Name:       "Maria Silva",
				Email:      "maria@example.com",
				TaxID:      "52998224725",
				Phone:      "11987654321",
				PersonType: models.PersonIndividual,
			},
			Items:         items,
			Total:         models.ItemsTotal(items),
			Currency:      "BRL",
			PaymentMethod: models.PaymentPix,
		}
		require.NoError(t, repo.CreateOrder(ctx, o))
		return o
	}

	t.Run("create and get", func(t *testing.T) {
		repo := newRepo(t)
		o := newOrder(t, repo)
		require.NotEmpty(t, o.ID)

		got, err := repo.GetOrder(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, models.OrderPending, got.Status)
		assert.True(t, decimal.RequireFromString("200").Equal(got.Total))
		require.Len(t, got.Items, 1)
		assert.True(t, decimal.RequireFromString("100").Equal(got.Items[0].UnitPrice))
		assert.Equal(t, "maria@example.com", got.Customer.Email)
	})

	t.Run("get unknown order", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.GetOrder(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("status moves once", func(t *testing.T) {
		repo := newRepo(t)
		o := newOrder(t, repo)

		changed, err := repo.UpdateOrderStatus(ctx, o.ID, models.OrderPaid, "pay-1")
		require.NoError(t, err)
		assert.True(t, changed)

		changed, err = repo.UpdateOrderStatus(ctx, o.ID, models.OrderPaid, "pay-1")
		require.NoError(t, err)
		assert.False(t, changed)

		_, err = repo.UpdateOrderStatus(ctx, o.ID, models.OrderFailed, "pay-1")
		assert.ErrorIs(t, err, ErrTerminalStatus)

		got, err := repo.GetOrder(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, models.OrderPaid, got.Status)
		assert.Equal(t, "pay-1", got.PaymentID)
	})

	t.Run("pending is not a target", func(t *testing.T) {
		repo := newRepo(t)
		o := newOrder(t, repo)
		_, err := repo.UpdateOrderStatus(ctx, o.ID, models.OrderPending, "")
		assert.ErrorIs(t, err, ErrInvalidStatus)
	})

	t.Run("payment reference", func(t *testing.T) {
		repo := newRepo(t)
		o := newOrder(t, repo)

		require.NoError(t, repo.AttachPaymentReference(ctx, o.ID, "pref-1", "https://pay.example/1"))
		require.NoError(t, repo.AttachPaymentReference(ctx, o.ID, "pref-1", "https://pay.example/1"))
		assert.ErrorIs(t, repo.AttachPaymentReference(ctx, o.ID, "pref-2", "https://pay.example/2"), ErrReferenceConflict)

		found, err := repo.FindOrdersByPaymentReference(ctx, "pref-1")
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, o.ID, found[0].ID)
		assert.Equal(t, "https://pay.example/1", found[0].PaymentURL)

		none, err := repo.FindOrdersByPaymentReference(ctx, "pref-unknown")
		require.NoError(t, err)
		assert.Empty(t, none)

		_, err = repo.UpdateOrderStatus(ctx, o.ID, models.OrderCancelled, "")
		require.NoError(t, err)
		other := newOrder(t, repo)
		_, err = repo.UpdateOrderStatus(ctx, other.ID, models.OrderFailed, "")
		require.NoError(t, err)
		assert.ErrorIs(t, repo.AttachPaymentReference(ctx, other.ID, "pref-3", ""), ErrNotPending)
	})

	t.Run("flag for review", func(t *testing.T) {
		repo := newRepo(t)
		a := newOrder(t, repo)
		b := newOrder(t, repo)
		newOrder(t, repo)

		require.NoError(t, repo.FlagForReview(ctx, []string{a.ID, b.ID}, "duplicate reference"))
		flagged, err := repo.ListFlagged(ctx)
		require.NoError(t, err)
		require.Len(t, flagged, 2)
		for _, o := range flagged {
			assert.True(t, o.NeedsReview)
			assert.Equal(t, "duplicate reference", o.ReviewReason)
		}
	})

	t.Run("customer upsert keeps purchased", func(t *testing.T) {
		repo := newRepo(t)
		c := models.Customer{
			Name:       "Maria Silva",
			Email:      "maria@example.com",
			TaxID:      "52998224725",
			Phone:      "11987654321",
			PersonType: models.PersonIndividual,
		}
		first, err := repo.UpsertCustomer(ctx, c)
		require.NoError(t, err)
		assert.Equal(t, models.CustomerSuspended, first.Status)
		assert.NotEmpty(t, first.ID)

		require.NoError(t, repo.MarkCustomerPurchased(ctx, c.Email, "order-1"))

		c.Name = "Maria S. Silva"
		second, err := repo.UpsertCustomer(ctx, c)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "Maria S. Silva", second.Name)
		assert.Equal(t, models.CustomerPurchased, second.Status)

		assert.ErrorIs(t, repo.MarkCustomerPurchased(ctx, "nobody@example.com", "order-2"), ErrNotFound)
	})

	t.Run("pending notifications", func(t *testing.T) {
		repo := newRepo(t)
		now := time.Now().UTC()
		require.NoError(t, repo.SavePendingNotification(ctx, models.PendingNotification{
			PaymentID: "pay-1", ReferenceKey: "pref-1", GatewayStatus: "approved",
			ReceivedAt: now, ExpiresAt: now.Add(time.Hour),
		}))
		// A redelivery replaces the buffered copy.
		require.NoError(t, repo.SavePendingNotification(ctx, models.PendingNotification{
			PaymentID: "pay-1", ReferenceKey: "pref-1", GatewayStatus: "approved",
			ReceivedAt: now.Add(time.Second), ExpiresAt: now.Add(time.Hour),
		}))
		require.NoError(t, repo.SavePendingNotification(ctx, models.PendingNotification{
			PaymentID: "pay-old", ReferenceKey: "pref-1", GatewayStatus: "rejected",
			ReceivedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
		}))

		taken, err := repo.TakePendingNotifications(ctx, "pref-1")
		require.NoError(t, err)
		require.Len(t, taken, 1)
		assert.Equal(t, "pay-1", taken[0].PaymentID)

		again, err := repo.TakePendingNotifications(ctx, "pref-1")
		require.NoError(t, err)
		assert.Empty(t, again)
	})
}

func TestMemoryRepository(t *testing.T) {
	repositoryCases(t, func(*testing.T) Repository { return NewMemoryRepository() })
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	o := &models.Order{Items: []models.OrderItem{{ID: "x", Quantity: 1}}}
	require.NoError(t, repo.CreateOrder(ctx, o))

	got, err := repo.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	got.Items[0].Quantity = 99
	got.Status = models.OrderPaid

	again, err := repo.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Items[0].Quantity)
	assert.Equal(t, models.OrderPending, again.Status)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(unavailable("get order", context.DeadlineExceeded)))
	assert.False(t, IsTransient(ErrNotFound))
	assert.Equal(t, ErrNotFound, classify("get order", mongo.ErrNoDocuments))
	assert.True(t, IsTransient(classify("get order", context.DeadlineExceeded)))
}
