// Package websocket streams workflow notifications to connected users.
package websocket

import (
	"sync"

	"go.uber.org/zap"
)

// Hub tracks the live connections of every user
type Hub struct {
	clients map[int64]map[*Client]struct{}
	mu      sync.Mutex
	closed  bool
	logger  *zap.Logger
}

// NewHub creates an empty hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[int64]map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client. It reports false once the hub is closed.
func (h *Hub) Register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	set, ok := h.clients[c.UserID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.UserID] = set
	}
	set[c] = struct{}{}

	h.logger.Debug("WebSocket client connected",
		zap.String("client_id", c.ID),
		zap.Int64("user_id", c.UserID))
	return true
}

// Unregister removes a client and closes its send channel
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *Client) {
	set, ok := h.clients[c.UserID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.UserID)
	}
	close(c.Send)

	h.logger.Debug("WebSocket client disconnected",
		zap.String("client_id", c.ID),
		zap.Int64("user_id", c.UserID))
}

// SendToUser queues message on every connection of the user and returns how
// many connections accepted it. Connections with a full buffer are dropped.
func (h *Hub) SendToUser(userID int64, message []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for c := range h.clients[userID] {
		select {
		case c.Send <- message:
			delivered++
		default:
			h.logger.Info("Dropping slow websocket client",
				zap.String("client_id", c.ID),
				zap.Int64("user_id", userID))
			h.removeLocked(c)
		}
	}
	return delivered
}

// ClientCount returns the number of open connections
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// Close disconnects every client and refuses new ones
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for _, set := range h.clients {
		for c := range set {
			h.removeLocked(c)
		}
	}
}
