package service

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/VeritasFi/aegis/internal/model"
	"github.com/VeritasFi/aegis/internal/pkg/logger"
)

// Hub pushes ledger events to websocket subscribers. Slow consumers are
// dropped rather than allowed to back-pressure the ledgers.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*client]bool)}
}

// Subscribe takes ownership of the connection and streams events until the
// peer disconnects.
func (h *Hub) Subscribe(conn *websocket.Conn) {
	c := &client{conn: conn, send: make(chan []byte, 64)}

	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	go c.writeLoop()
	go h.readLoop(c)
}

// Broadcast sends the event to every subscriber.
func (h *Hub) Broadcast(e *model.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			// consumer cannot keep up
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// Clients reports the current subscriber count.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
}

// readLoop discards inbound frames; it exists to observe the close.
func (h *Hub) readLoop(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writeLoop() {
	defer c.conn.Close()
	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			logger.Debug("websocket write failed", "error", err.Error())
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
