package gateway

import (
	"sync"

	"github.com/park285/Cheese-Othello/internal/obslog"
	"github.com/park285/Cheese-Othello/pkg/othellodto"
	"go.uber.org/zap"
)

// Hub tracks live connections by identity and implements room.Notifier.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*conn
}

func NewHub() *Hub { return &Hub{conns: make(map[string]*conn)} }

func (h *Hub) add(c *conn) {
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	delete(h.conns, id)
	h.mu.Unlock()
}

func (h *Hub) get(id string) *conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conns[id]
}

// Len returns the number of live connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Notify encodes ev once and queues it for every listed identity. Unknown identities
// are skipped; this runs under a room lock and never blocks.
func (h *Hub) Notify(to []string, ev othellodto.Event) {
	raw, err := othellodto.EncodeEvent(ev)
	if err != nil {
		obslog.L().Error("ws_encode_error", zap.String("type", string(ev.EventType())), zap.Error(err))
		return
	}
	h.mu.RLock()
	targets := make([]*conn, 0, len(to))
	for _, id := range to {
		if c, ok := h.conns[id]; ok {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range targets {
		c.enqueue(raw)
	}
}

// send queues ev for a single identity.
func (h *Hub) send(id string, ev othellodto.Event) {
	h.Notify([]string{id}, ev)
}
