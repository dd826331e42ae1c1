// Package realtime relays named events to connected websocket sessions.
package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/anonto42/nano-chat/backend/internal/metrics"
)

// Hub tracks the connected clients by session id. It implements Broadcaster.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	n := len(h.clients)
	h.mu.Unlock()

	metrics.ConnectedSessions.Set(float64(n))
	h.logger.Info("realtime session connected", "session", c.ID, "user_id", c.UserID)
}

// unregister closes the send buffer, which stops the client's writer.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; ok {
		delete(h.clients, c.ID)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()

	metrics.ConnectedSessions.Set(float64(n))
	h.logger.Info("realtime session closed", "session", c.ID, "user_id", c.UserID)
}

// Publish never blocks: a client whose buffer is full misses the frame.
func (h *Hub) Publish(event Event, payload any, excludeSession string) {
	frame, err := json.Marshal(Frame{Event: event, Data: payload})
	if err != nil {
		h.logger.Error("failed to encode realtime frame", "event", event, "error", err)
		return
	}
	metrics.BroadcastEvents.WithLabelValues(string(event)).Inc()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.clients {
		if id == excludeSession {
			continue
		}
		select {
		case c.send <- frame:
		default:
			metrics.BroadcastDropped.Inc()
			h.logger.Warn("dropping realtime frame, send buffer full", "session", id, "event", event)
		}
	}
}

// Sessions returns the number of connected sessions.
func (h *Hub) Sessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
