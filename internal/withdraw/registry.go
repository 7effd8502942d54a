// Package withdraw records messages that should be retracted after a delay
// and retracts them through a Withdrawer once the delay has passed.
package withdraw

import (
	"sync"
	"time"
)

// Registry maps message ids to the delay after which they are withdrawn.
// It only takes notes; Scheduler does the withdrawing.
type Registry struct {
	mu     sync.Mutex
	delays map[string]time.Duration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{delays: make(map[string]time.Duration)}
}

// Append records delay for messageID, replacing any earlier entry.
func (r *Registry) Append(messageID string, delay time.Duration) {
	r.mu.Lock()
	r.delays[messageID] = delay
	r.mu.Unlock()
}

// Remove deletes the entry for messageID. Unknown ids are ignored.
func (r *Registry) Remove(messageID string) {
	r.mu.Lock()
	delete(r.delays, messageID)
	r.mu.Unlock()
}

// Delay returns the recorded delay for messageID.
func (r *Registry) Delay(messageID string) (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.delays[messageID]
	return d, ok
}

// Len returns the number of pending entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.delays)
}

// Snapshot returns a copy of all entries.
func (r *Registry) Snapshot() map[string]time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]time.Duration, len(r.delays))
	for id, d := range r.delays {
		out[id] = d
	}
	return out
}
