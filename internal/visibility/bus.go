// Package visibility carries the host's visible/standby signal to every
// component that cares about it.
//
// The connection layer and the session layer subscribe independently; neither
// calls into the other when the screen goes dark.
package visibility

import "sync"

// Bus fans a visibility flag out to subscribers. Only changes are delivered.
//
// Thread Safety:
//   - All methods are safe for concurrent use. Subscribers are called
//     synchronously, in subscription order, outside the bus lock.
type Bus struct {
	mu      sync.Mutex
	visible bool
	nextID  int
	subs    []subscriber
}

type subscriber struct {
	id int
	fn func(visible bool)
}

// NewBus creates a bus with the given initial state.
func NewBus(initial bool) *Bus {
	return &Bus{visible: initial}
}

// Visible returns the last published state.
func (b *Bus) Visible() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.visible
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn func(visible bool)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish records the new state and notifies subscribers if it changed.
func (b *Bus) Publish(visible bool) {
	b.mu.Lock()
	if b.visible == visible {
		b.mu.Unlock()
		return
	}
	b.visible = visible
	subs := make([]subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, s := range subs {
		s.fn(visible)
	}
}
