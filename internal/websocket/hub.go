package websocket

import "sync"

// Hub fans status events out to connected clients. Each client has a small
// buffer; a client that falls behind loses events rather than blocking the
// publisher, and the next event carries the full state again.
type Hub struct {
	mu      sync.Mutex
	clients map[chan interface{}]struct{}
	last    map[Event]interface{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[chan interface{}]struct{}),
		last:    make(map[Event]interface{}),
	}
}

// Subscribe registers a client. The channel first yields the latest event of
// each kind. Call the returned func to unsubscribe.
func (h *Hub) Subscribe() (<-chan interface{}, func()) {
	ch := make(chan interface{}, 16)

	h.mu.Lock()
	for _, ev := range h.last {
		ch <- ev
	}
	h.clients[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.clients, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish records ev as the latest of its kind and sends it to every client.
func (h *Hub) Publish(kind Event, ev interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last[kind] = ev
	for ch := range h.clients {
		select {
		case ch <- ev:
		default:
		}
	}
}
