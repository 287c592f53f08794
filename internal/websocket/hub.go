// Package websocket pushes the store's update signal to open browser tabs.
package websocket

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/dukerupert/famsched/internal/broadcast"
)

// UpdateSignal is the only message sent to browser contexts. It carries no
// data; clients re-read whatever they display.
var UpdateSignal = []byte(broadcast.Signal)

// Hub tracks the open browser contexts of each logged-in member.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) join(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("tab connected", "member_id", c.memberID, "tabs", n)
}

// leave is safe to call more than once for the same client.
func (h *Hub) leave(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.signals)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.logger.Debug("tab disconnected", "member_id", c.memberID, "tabs", n)
	}
}

// Broadcast queues the update signal for every tab. A tab that already has
// one pending is skipped, so bursts of writes collapse into one re-read.
func (h *Hub) Broadcast() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.signals <- struct{}{}:
		default:
		}
	}
}

// ClientCount returns the number of open tabs.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Online returns the sorted ids of members with at least one open tab.
func (h *Hub) Online() []string {
	h.mu.RLock()
	seen := make(map[string]bool)
	for c := range h.clients {
		if c.memberID != "" {
			seen[c.memberID] = true
		}
	}
	h.mu.RUnlock()

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
