package onebot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
)

// Sender is the part of the API a handler needs to answer an event.
type Sender interface {
	SendMsg(ctx context.Context, target Target, message Message) (string, error)
}

// Session is handed to a handler for one event.
type Session struct {
	Event  *Event
	sender Sender
}

// Reply sends message back to where the event came from.
func (s *Session) Reply(ctx context.Context, message Message) (string, error) {
	return s.sender.SendMsg(ctx, s.Event.ReplyTarget(), message)
}

// HandlerFunc handles an event that passed a matcher's rules and permission.
type HandlerFunc func(ctx context.Context, s *Session) error

// Matcher binds a handler to the events it accepts. Lower Priority values
// run first. A Block matcher that runs stops matchers of later priorities.
type Matcher struct {
	Plugin     string
	Name       string
	Priority   int
	Block      bool
	Rules      []Rule
	Permission Permission
	Handler    HandlerFunc
}

func (m *Matcher) accepts(evt *Event) bool {
	for _, rule := range m.Rules {
		if !rule(evt) {
			return false
		}
	}
	return m.Permission == nil || m.Permission(evt)
}

// Dispatcher routes events to registered matchers.
type Dispatcher struct {
	sender Sender

	mu       sync.RWMutex
	matchers []*Matcher
	plugins  map[string]struct{}
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher that replies through sender.
func NewDispatcher(sender Sender) *Dispatcher {
	return &Dispatcher{
		sender:  sender,
		plugins: make(map[string]struct{}),
		logger:  slog.Default().With("component", "onebot.dispatcher"),
	}
}

// Register adds a matcher. Matchers of equal priority keep registration order.
func (d *Dispatcher) Register(m Matcher) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.matchers = append(d.matchers, &m)
	sort.SliceStable(d.matchers, func(i, j int) bool {
		return d.matchers[i].Priority < d.matchers[j].Priority
	})
	if m.Plugin != "" {
		d.plugins[m.Plugin] = struct{}{}
	}
	d.logger.Debug("Matcher registered", "plugin", m.Plugin, "matcher", m.Name, "priority", m.Priority, "block", m.Block)
}

// PluginCount returns the number of distinct plugins with a matcher.
func (d *Dispatcher) PluginCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.plugins)
}

// Dispatch runs every matcher that accepts evt, in priority order, and
// returns how many ran. Handler errors and panics are logged and do not
// stop later matchers.
func (d *Dispatcher) Dispatch(ctx context.Context, evt *Event) int {
	d.mu.RLock()
	matchers := make([]*Matcher, len(d.matchers))
	copy(matchers, d.matchers)
	d.mu.RUnlock()

	ran := 0
	blockedAfter := 0
	blocked := false
	for _, m := range matchers {
		if blocked && m.Priority > blockedAfter {
			break
		}
		if !m.accepts(evt) {
			continue
		}
		ran++
		if err := d.run(ctx, m, evt); err != nil {
			d.logger.Error("Handler failed",
				"plugin", m.Plugin,
				"matcher", m.Name,
				"user_id", evt.UserID,
				"error", err)
		}
		if m.Block {
			blocked = true
			blockedAfter = m.Priority
		}
	}
	return ran
}

func (d *Dispatcher) run(ctx context.Context, m *Matcher, evt *Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Panic recovered in handler",
				"plugin", m.Plugin,
				"matcher", m.Name,
				"panic", r,
				"stack", string(debug.Stack()))
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return m.Handler(ctx, &Session{Event: evt, sender: d.sender})
}
