package identity

import (
	"slices"
	"sync"
)

// Hub fans auth-state events out to subscribers in registration order.
// The zero value is ready to use.
type Hub struct {
	mu       sync.Mutex
	next     uint64
	handlers map[uint64]Handler
}

// Subscribe registers fn until the returned subscription is cancelled.
func (h *Hub) Subscribe(fn Handler) Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.handlers == nil {
		h.handlers = make(map[uint64]Handler)
	}
	h.next++
	h.handlers[h.next] = fn
	return &subscription{hub: h, id: h.next}
}

// Emit delivers ev to every current subscriber. Handlers run outside the lock
// so they may subscribe or unsubscribe.
func (h *Hub) Emit(ev Event) {
	h.mu.Lock()
	ids := make([]uint64, 0, len(h.handlers))
	for id := range h.handlers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]Handler, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, h.handlers[id])
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handlers)
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.handlers, id)
}

type subscription struct {
	once sync.Once
	hub  *Hub
	id   uint64
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() { s.hub.remove(s.id) })
}
