package limiter

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type bucketEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Bucket is a keyed token bucket backed by golang.org/x/time/rate. The
// webhook uses it to throttle event posts per remote address. Entries idle
// for longer than the eviction TTL are dropped by a background goroutine.
type Bucket struct {
	rate     rate.Limit
	burst    int
	idleTTL  time.Duration
	interval time.Duration

	mu      sync.Mutex
	entries map[string]*bucketEntry
	done    chan struct{}
	closed  bool
}

// NewBucket creates a keyed token bucket refilling perSecond tokens with the
// given burst. A burst below one is raised to one, otherwise no request
// could ever pass. idleTTL controls eviction; the sweep runs every idleTTL/2.
func NewBucket(perSecond float64, burst int, idleTTL time.Duration) *Bucket {
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	if burst < 1 {
		burst = 1
	}
	b := &Bucket{
		rate:     rate.Limit(perSecond),
		burst:    burst,
		idleTTL:  idleTTL,
		interval: idleTTL / 2,
		entries:  make(map[string]*bucketEntry),
		done:     make(chan struct{}),
	}
	go b.sweep()
	return b
}

// Allow takes a token for key. When denied it also returns how long until a
// token would be available.
func (b *Bucket) Allow(key string) (bool, time.Duration) {
	b.mu.Lock()
	e, ok := b.entries[key]
	if !ok {
		e = &bucketEntry{limiter: rate.NewLimiter(b.rate, b.burst)}
		b.entries[key] = e
	}
	e.lastSeen = time.Now()
	b.mu.Unlock()

	if e.limiter.Allow() {
		return true, 0
	}
	r := e.limiter.Reserve()
	delay := r.Delay()
	r.Cancel()
	return false, delay
}

// Len returns the number of tracked keys.
func (b *Bucket) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Close stops the eviction goroutine. It is safe to call more than once.
func (b *Bucket) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.done)
	}
}

func (b *Bucket) sweep() {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			b.evictIdle()
		}
	}
}

func (b *Bucket) evictIdle() {
	cutoff := time.Now().Add(-b.idleTTL)
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, e := range b.entries {
		if e.lastSeen.Before(cutoff) {
			delete(b.entries, key)
		}
	}
}
