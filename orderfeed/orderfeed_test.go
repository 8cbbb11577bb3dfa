package orderfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Papel-hub/talentoStore/models"
	"github.com/Papel-hub/talentoStore/orders"
)

func TestHubBroadcastsPerOrder(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	a := &Client{Send: make(chan models.OrderStatusEvent, 4), OrderID: "a"}
	b := &Client{Send: make(chan models.OrderStatusEvent, 4), OrderID: "b"}
	hub.Register(a)
	hub.Register(b)

	hub.Publish(models.OrderStatusEvent{OrderID: "a", Status: models.OrderPaid})

	select {
	case ev := <-a.Send:
		assert.Equal(t, models.OrderPaid, ev.Status)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
	select {
	case ev := <-b.Send:
		t.Fatalf("unexpected event for other order: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}

	hub.Unregister(a)
	hub.Unregister(a)
	hub.Stop()
	_, open := <-b.Send
	assert.False(t, open, "stop closes remaining clients")
}

func newFeedServer(t *testing.T) (*orders.MemoryRepository, *Hub, *httptest.Server) {
	t.Helper()
	repo := orders.NewMemoryRepository()
	hub := NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	h := NewHandler(repo, hub)
	router := httprouter.New()
	router.GET("/api/orders/:id", h.GetOrder)
	router.GET("/api/orders/:id/ws", h.Watch)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return repo, hub, srv
}

func createOrder(t *testing.T, repo orders.Repository) *models.Order {
	t.Helper()
	o := &models.Order{
		Customer: models.CustomerSnapshot{Name: "Maria", Email: "maria@example.com"},
		Items:    []models.OrderItem{{ID: "p", Title: "P", UnitPrice: decimal.NewFromInt(10), Quantity: 1}},
		Total:    decimal.NewFromInt(10),
		Currency: "BRL",
		Status:   models.OrderPending,
	}
	require.NoError(t, repo.CreateOrder(context.Background(), o))
	return o
}

func TestGetOrder(t *testing.T) {
	repo, _, srv := newFeedServer(t)
	o := createOrder(t, repo)

	resp, err := http.Get(srv.URL + "/api/orders/" + o.ID)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp2, err := http.Get(srv.URL + "/api/orders/nope")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestWatchStreamsUntilTerminal(t *testing.T) {
	repo, hub, srv := newFeedServer(t)
	o := createOrder(t, repo)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/orders/" + o.ID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var ev models.OrderStatusEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, o.ID, ev.OrderID)
	assert.Equal(t, models.OrderPending, ev.Status)

	_, err = repo.UpdateOrderStatus(context.Background(), o.ID, models.OrderPaid, "1")
	require.NoError(t, err)
	hub.Publish(models.OrderStatusEvent{OrderID: o.ID, Status: models.OrderPaid, UpdatedAt: time.Now()})

	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, models.OrderPaid, ev.Status)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "feed closes after a terminal status: %v", err)
}

func TestWatchUnknownOrder(t *testing.T) {
	_, _, srv := newFeedServer(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/orders/nope/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
