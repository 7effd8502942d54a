package limiter

import "sync"

// CountLimiter counts calls per key and signals once a threshold is reached.
//
// Callers drive the counter with Add and poll it with Check. Check is not
// idempotent: when it returns true the counter is reset to zero.
type CountLimiter struct {
	maxCount int

	mu     sync.Mutex
	counts map[string]int
}

// NewCountLimiter creates a counter that trips at maxCount.
func NewCountLimiter(maxCount int) *CountLimiter {
	return &CountLimiter{
		maxCount: maxCount,
		counts:   make(map[string]int),
	}
}

// Add increments the counter for key.
func (c *CountLimiter) Add(key string) {
	c.mu.Lock()
	c.counts[key]++
	c.mu.Unlock()
}

// Check returns true and resets the counter when it has reached the
// threshold; otherwise it returns false and leaves the counter alone.
func (c *CountLimiter) Check(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts[key] >= c.maxCount {
		c.counts[key] = 0
		return true
	}
	return false
}

// Count returns the current counter for key, zero when unseen.
func (c *CountLimiter) Count(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[key]
}

// MaxCount returns the configured threshold.
func (c *CountLimiter) MaxCount() int {
	return c.maxCount
}
