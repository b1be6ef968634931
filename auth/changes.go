package auth

import "sync"

// ChangeHub fans session events out to subscribers. Backends embed it to
// implement OnSessionChange.
type ChangeHub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(SessionEvent)
}

// OnSessionChange registers fn and returns a function that removes it.
// Calling the returned function more than once is safe.
func (h *ChangeHub) OnSessionChange(fn func(SessionEvent)) func() {
	if fn == nil {
		return func() {}
	}

	h.mu.Lock()
	if h.subs == nil {
		h.subs = make(map[int]func(SessionEvent))
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// Emit delivers evt to every subscriber on the calling goroutine.
func (h *ChangeHub) Emit(evt SessionEvent) {
	h.mu.RLock()
	subs := make([]func(SessionEvent), 0, len(h.subs))
	for _, fn := range h.subs {
		subs = append(subs, fn)
	}
	h.mu.RUnlock()

	for _, fn := range subs {
		fn(evt)
	}
}

// Subscribers returns the number of registered subscribers.
func (h *ChangeHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
