package orderfeed

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/Papel-hub/talentoStore/models"
)

// Client is one websocket watching one order.
type Client struct {
	Conn    *websocket.Conn
	Send    chan models.OrderStatusEvent
	OrderID string

	mu     sync.Mutex
	closed bool
}

func NewClient(conn *websocket.Conn, orderID string) *Client {
	return &Client{Conn: conn, Send: make(chan models.OrderStatusEvent, 16), OrderID: orderID}
}

// push queues ev unless the client is gone or too slow. It reports whether
// the event was queued.
func (c *Client) push(ev models.OrderStatusEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- ev:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// Hub fans order status events out to the clients watching each order.
type Hub struct {
	rooms      map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan models.OrderStatusEvent
	quit       chan struct{}
	stopOnce   sync.Once
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan models.OrderStatusEvent, 64),
		quit:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			if h.rooms[c.OrderID] == nil {
				h.rooms[c.OrderID] = make(map[*Client]bool)
			}
			h.rooms[c.OrderID][c] = true

		case c := <-h.unregister:
			h.remove(c)

		case ev := <-h.broadcast:
			for c := range h.rooms[ev.OrderID] {
				if !c.push(ev) {
					h.remove(c)
				}
			}

		case <-h.quit:
			for _, conns := range h.rooms {
				for c := range conns {
					c.close()
				}
			}
			h.rooms = make(map[string]map[*Client]bool)
			return
		}
	}
}

func (h *Hub) remove(c *Client) {
	if conns := h.rooms[c.OrderID]; conns != nil {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.rooms, c.OrderID)
		}
	}
	c.close()
}

// Publish hands ev to the hub. It matches the mq listener callback.
func (h *Hub) Publish(ev models.OrderStatusEvent) {
	select {
	case h.broadcast <- ev:
	case <-h.quit:
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.quit:
		c.close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}
