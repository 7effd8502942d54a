// Package limiter provides small keyed in-memory trackers used by command
// handlers to gate work: a cooldown limiter, a call counter with auto-reset,
// a busy flag with staleness timeout, and a token bucket for HTTP ingress.
//
// Every tracker is safe for concurrent use. State lives only as long as the
// tracker value; nothing is persisted.
package limiter

import "time"

// epoch is the next-allowed time of a key that was never put on cooldown.
var epoch = time.Unix(0, 0)

// DefaultStaleAfter is how long a busy flag survives without a refresh.
const DefaultStaleAfter = 30 * time.Second

// options is shared by all trackers. Options that do not apply to a given
// tracker are ignored by it.
type options struct {
	now         func() time.Time
	staleAfter  time.Duration
	sharedClock bool
}

// Option configures a tracker.
type Option func(*options)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithStaleAfter sets the busy-flag staleness timeout.
func WithStaleAfter(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.staleAfter = d
		}
	}
}

// WithSharedClock makes a BusyGate judge staleness against one timestamp
// shared by every key, refreshed by any SetTrue. This reproduces the legacy
// behaviour where activity on one key keeps every other flag fresh.
func WithSharedClock() Option {
	return func(o *options) {
		o.sharedClock = true
	}
}

func buildOptions(opts []Option) options {
	o := options{
		now:        time.Now,
		staleAfter: DefaultStaleAfter,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
