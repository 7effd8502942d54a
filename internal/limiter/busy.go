package limiter

import (
	"sync"
	"time"
)

// BusyGate marks keys as "in progress" so a handler does not start the same
// work twice for one user. A flag that has not been refreshed for longer
// than the staleness timeout is treated as abandoned and cleared on Check.
//
// By default staleness is tracked per key. WithSharedClock switches to a
// single timestamp for all keys.
type BusyGate struct {
	staleAfter time.Duration
	shared     bool
	now        func() time.Time

	mu         sync.Mutex
	flags      map[string]bool
	lastActive map[string]time.Time
	sharedAt   time.Time
}

// NewBusyGate creates a busy gate. The staleness timeout defaults to
// DefaultStaleAfter.
func NewBusyGate(opts ...Option) *BusyGate {
	o := buildOptions(opts)
	return &BusyGate{
		staleAfter: o.staleAfter,
		shared:     o.sharedClock,
		now:        o.now,
		flags:      make(map[string]bool),
		lastActive: make(map[string]time.Time),
		// The legacy gate started its clock at construction.
		sharedAt: o.now(),
	}
}

// SetTrue marks key busy and refreshes its activity timestamp. With a shared
// clock this refreshes staleness for every key.
func (b *BusyGate) SetTrue(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	if b.shared {
		b.sharedAt = now
	} else {
		b.lastActive[key] = now
	}
	b.flags[key] = true
}

// SetFalse clears the flag for key. Activity timestamps are left untouched.
func (b *BusyGate) SetFalse(key string) {
	b.mu.Lock()
	b.flags[key] = false
	b.mu.Unlock()
}

// Check reports whether key is busy. A stale flag is cleared and reported
// as not busy.
func (b *BusyGate) Check(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	last, ok := b.activity(key)
	if !ok {
		return false
	}
	if b.now().Sub(last) > b.staleAfter {
		b.flags[key] = false
		return false
	}
	return b.flags[key]
}

// StaleAfter returns the staleness timeout.
func (b *BusyGate) StaleAfter() time.Duration {
	return b.staleAfter
}

// activity must be called with mu held.
func (b *BusyGate) activity(key string) (time.Time, bool) {
	if b.shared {
		return b.sharedAt, true
	}
	t, ok := b.lastActive[key]
	return t, ok
}
