package withdraw

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Withdrawer retracts a sent message.
type Withdrawer interface {
	DeleteMsg(ctx context.Context, messageID string) error
}

// Scheduler arms one timer per registry entry and withdraws the message
// when it fires. The entry is removed from the registry whether or not the
// withdrawal succeeded.
type Scheduler struct {
	registry   *Registry
	withdrawer Withdrawer
	timeout    time.Duration

	mu      sync.Mutex
	timers  map[string]armed
	gen     uint64
	stopped bool
	logger  *slog.Logger
}

// armed is a pending timer. gen tells a current callback from one whose
// timer was replaced after it had already started.
type armed struct {
	timer *time.Timer
	gen   uint64
}

// NewScheduler creates a scheduler. timeout bounds each withdrawal call.
func NewScheduler(registry *Registry, withdrawer Withdrawer, timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Scheduler{
		registry:   registry,
		withdrawer: withdrawer,
		timeout:    timeout,
		timers:     make(map[string]armed),
		logger:     slog.Default().With("component", "withdraw.scheduler"),
	}
}

// Defer records messageID in the registry and schedules it.
func (s *Scheduler) Defer(messageID string, delay time.Duration) bool {
	s.registry.Append(messageID, delay)
	return s.Schedule(messageID)
}

// Schedule arms a timer for a message already in the registry, replacing any
// timer armed earlier for it. It returns false when the id is unknown or the
// scheduler has been stopped.
func (s *Scheduler) Schedule(messageID string) bool {
	delay, ok := s.registry.Delay(messageID)
	if !ok {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	if a, ok := s.timers[messageID]; ok {
		a.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timers[messageID] = armed{
		timer: time.AfterFunc(delay, func() { s.fire(messageID, gen) }),
		gen:   gen,
	}
	s.logger.Debug("withdraw scheduled", "message_id", messageID, "delay", delay)
	return true
}

// Cancel disarms the timer for messageID and drops it from the registry.
func (s *Scheduler) Cancel(messageID string) {
	s.mu.Lock()
	if a, ok := s.timers[messageID]; ok {
		a.timer.Stop()
		delete(s.timers, messageID)
	}
	s.mu.Unlock()
	s.registry.Remove(messageID)
}

// Pending returns the number of armed timers.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop disarms every timer. Registry entries are left in place.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for id, a := range s.timers {
		a.timer.Stop()
		delete(s.timers, id)
	}
}

// fire withdraws messageID if gen is still its armed timer. The registry
// entry is kept when the id was scheduled again during the withdrawal.
func (s *Scheduler) fire(messageID string, gen uint64) {
	s.mu.Lock()
	if a, ok := s.timers[messageID]; !ok || a.gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.timers, messageID)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.withdrawer.DeleteMsg(ctx, messageID); err != nil {
		s.logger.Warn("withdraw failed", "message_id", messageID, "error", err)
	} else {
		s.logger.Debug("message withdrawn", "message_id", messageID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, rearmed := s.timers[messageID]; !rearmed {
		s.registry.Remove(messageID)
	}
}
