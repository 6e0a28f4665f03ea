package events

import "sync"

// Handler receives published events. Handlers run synchronously on the
// publisher's goroutine, so the per-run ordering of events is exactly the
// order they were published in.
type Handler func(Event)

// Handle identifies a subscription for later removal.
type Handle int

type subscriber struct {
	id Handle
	fn Handler
}

// Bus fans events out to all registered subscribers in registration order.
// There is no buffering or replay: a late subscriber only sees events
// published after it registered.
type Bus struct {
	mu     sync.RWMutex
	nextID Handle
	subs   []subscriber
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers fn and returns a handle for Unsubscribe.
func (b *Bus) Subscribe(fn Handler) Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.subs = append(b.subs, subscriber{id: b.nextID, fn: fn})
	return b.nextID
}

// Unsubscribe removes the subscription for h. Unknown handles are ignored.
func (b *Bus) Unsubscribe(h Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == h {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers e to the subscribers registered at the moment of
// publication, in registration order.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	subs := make([]subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		s.fn(e)
	}
}
