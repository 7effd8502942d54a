package limiter

import (
	"sync"
	"time"
)

// FreqLimiter enforces a per-key cooldown between actions.
type FreqLimiter struct {
	defaultCooldown time.Duration
	now             func() time.Time

	mu   sync.Mutex
	next map[string]time.Time
}

// NewFreqLimiter creates a cooldown limiter. defaultCooldown applies when
// StartCooldown is called without a positive cooldown.
func NewFreqLimiter(defaultCooldown time.Duration, opts ...Option) *FreqLimiter {
	o := buildOptions(opts)
	return &FreqLimiter{
		defaultCooldown: defaultCooldown,
		now:             o.now,
		next:            make(map[string]time.Time),
	}
}

// Check reports whether key is off cooldown. Keys never seen are allowed.
func (f *FreqLimiter) Check(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.now().Before(f.nextAllowed(key))
}

// StartCooldown puts key on cooldown for the given duration, or for the
// default cooldown when cooldown <= 0. Any earlier cooldown is replaced.
func (f *FreqLimiter) StartCooldown(key string, cooldown time.Duration) {
	if cooldown <= 0 {
		cooldown = f.defaultCooldown
	}
	f.mu.Lock()
	f.next[key] = f.now().Add(cooldown)
	f.mu.Unlock()
}

// TimeRemaining returns how long until key is allowed again. The result is
// negative once the cooldown has passed and is not clamped.
func (f *FreqLimiter) TimeRemaining(key string) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nextAllowed(key).Sub(f.now())
}

// DefaultCooldown returns the cooldown used when none is given.
func (f *FreqLimiter) DefaultCooldown() time.Duration {
	return f.defaultCooldown
}

// nextAllowed must be called with mu held.
func (f *FreqLimiter) nextAllowed(key string) time.Time {
	if t, ok := f.next[key]; ok {
		return t
	}
	return epoch
}
