package ws

import (
	"sync"

	"github.com/cwrk-planet/glasschat/internal/notify"
)

type Conn interface {
	Send(msg Message) error
	Close() error
	ID() string
}

// Hub keeps the UI connections.
type Hub struct {
	mu    sync.RWMutex
	conns map[Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{conns: make(map[Conn]struct{})}
}

func (h *Hub) Add(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c] = struct{}{}
}

func (h *Hub) Remove(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c)
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) Broadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns {
		_ = c.Send(msg) // best-effort
	}
}

// Notify makes the hub a notification sink.
func (h *Hub) Notify(n notify.Notification) {
	h.Broadcast(Message{Type: TypeNotification, Payload: n})
}

// CloseAll closes every connection.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	conns := h.conns
	h.conns = make(map[Conn]struct{})
	h.mu.Unlock()
	for c := range conns {
		_ = c.Close()
	}
}
