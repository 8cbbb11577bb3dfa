package orderfeed

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/Papel-hub/talentoStore/models"
	"github.com/Papel-hub/talentoStore/orders"
	"github.com/Papel-hub/talentoStore/utils"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

type Handler struct {
	repo orders.Repository
	hub  *Hub
}

func NewHandler(repo orders.Repository, hub *Hub) *Handler {
	return &Handler{repo: repo, hub: hub}
}

// GetOrder handles GET /api/orders/:id.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	o, err := h.repo.GetOrder(ctx, ps.ByName("id"))
	if err != nil {
		respondLookupError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, o.View())
}

func respondLookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orders.ErrNotFound):
		utils.RespondWithError(w, http.StatusNotFound, "Order not found")
	case orders.IsTransient(err):
		utils.RespondWithError(w, http.StatusServiceUnavailable, "Storage temporarily unavailable, try again")
	default:
		log.Println("GetOrder error:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to load order")
	}
}

// Watch handles GET /api/orders/:id/ws. The socket gets the current status
// first, then every change, and is closed once the order is settled.
func (h *Handler) Watch(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	orderID := ps.ByName("id")
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if _, err := h.repo.GetOrder(ctx, orderID); err != nil {
		respondLookupError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("upgrade:", err)
		return
	}
	client := NewClient(conn, orderID)
	h.hub.Register(client)

	// Read after registering so a change in between is not missed.
	o, err := h.repo.GetOrder(ctx, orderID)
	if err != nil {
		log.Printf("Watch: reload order %s: %v", orderID, err)
		h.hub.Unregister(client)
		_ = conn.Close()
		return
	}
	client.push(models.OrderStatusEvent{OrderID: o.ID, Status: o.Status, UpdatedAt: o.UpdatedAt})

	go writePump(client, h.hub)
	go readPump(client, h.hub)
}

func writePump(c *Client, hub *Hub) {
	defer func() {
		hub.Unregister(c)
		c.Conn.Close()
	}()
	for ev := range c.Send {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.Conn.WriteJSON(ev); err != nil {
			return
		}
		if ev.Status.Terminal() {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(ev.Status))
			_ = c.Conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return
		}
	}
}

// readPump only drains control frames; the feed is one-way.
func readPump(c *Client, hub *Hub) {
	defer func() {
		hub.Unregister(c)
		c.Conn.Close()
	}()
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			return
		}
	}
}
