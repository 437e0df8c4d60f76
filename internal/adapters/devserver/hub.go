package devserver

import (
	"sync"

	"github.com/google/uuid"
)

// Hub tracks connected client sessions. Broadcasts never block on a client:
// a session whose outbound buffer is full is dropped instead.
type Hub struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*session
	closed   bool
	metrics  *Metrics
}

// NewHub creates an empty hub.
func NewHub(metrics *Metrics) *Hub {
	return &Hub{
		sessions: map[uuid.UUID]*session{},
		metrics:  metrics,
	}
}

// add registers a session. It reports false when the hub is shut down.
func (h *Hub) add(s *session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	h.sessions[s.id] = s
	h.metrics.SetClients(len(h.sessions))

	return true
}

// remove unregisters and closes a session. Unknown IDs are a no-op.
func (h *Hub) remove(id uuid.UUID) {
	h.mu.Lock()
	s, ok := h.sessions[id]
	if ok {
		delete(h.sessions, id)
	}
	h.metrics.SetClients(len(h.sessions))
	h.mu.Unlock()

	if ok {
		s.close()
	}
}

// count returns the number of connected sessions.
func (h *Hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// broadcast enqueues a frame for every connected session. Sessions that
// cannot keep up are removed.
func (h *Hub) broadcast(frame []byte) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	snapshot := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		snapshot = append(snapshot, s)
	}
	h.mu.Unlock()

	for _, s := range snapshot {
		if !s.enqueue(frame) {
			h.metrics.IncDroppedClient()
			h.remove(s.id)
		}
	}
	h.metrics.IncBroadcast()
}

// shutdown closes every session and rejects future registrations.
func (h *Hub) shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	sessions := h.sessions
	h.sessions = map[uuid.UUID]*session{}
	h.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
	h.metrics.SetClients(0)
}
