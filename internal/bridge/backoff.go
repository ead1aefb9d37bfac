package bridge

import "time"

// Default reconnect delays.
const (
	DefaultReconnectBase = 5 * time.Second
	DefaultReconnectMax  = 60 * time.Second
)

// Backoff produces capped, doubling reconnect delays.
// Not safe for concurrent use; ConnectionManager guards it with its mutex.
type Backoff struct {
	base time.Duration
	max  time.Duration
	next time.Duration
}

// NewBackoff creates a backoff starting at base and capped at maxDelay.
// Non-positive values fall back to the defaults.
func NewBackoff(base, maxDelay time.Duration) *Backoff {
	if base <= 0 {
		base = DefaultReconnectBase
	}
	if maxDelay <= 0 {
		maxDelay = DefaultReconnectMax
	}
	if maxDelay < base {
		maxDelay = base
	}
	return &Backoff{base: base, max: maxDelay, next: base}
}

// Next returns the delay for the upcoming attempt and advances the sequence.
func (b *Backoff) Next() time.Duration {
	d := b.next
	b.next *= 2
	if b.next > b.max {
		b.next = b.max
	}
	return d
}

// Reset returns the sequence to its base delay.
func (b *Backoff) Reset() {
	b.next = b.base
}
