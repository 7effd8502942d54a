// Package check implements the self-check command: on request from a
// superuser it renders the host status as an image and sends it back.
package check

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"checkbot/internal/limiter"
	"checkbot/internal/models"
	"checkbot/internal/onebot"
	"checkbot/internal/render"
)

const (
	pluginName   = "check"
	templateDir  = "check"
	templateName = "main.html"

	messagePriority = 1
	pokePriority    = 5
)

// Collector produces the template data.
type Collector interface {
	Collect(ctx context.Context) (*models.StatusInfo, error)
}

// Deferrer schedules a sent message for withdrawal.
type Deferrer interface {
	Defer(messageID string, delay time.Duration) bool
}

// Deps are the collaborators of the plugin. Busy, Cooldown and Failures
// are created from the limits config when nil; Withdraw is optional.
type Deps struct {
	Collector Collector
	Renderer  render.Renderer
	Busy      *limiter.BusyGate
	Cooldown  *limiter.FreqLimiter
	Failures  *limiter.CountLimiter
	Withdraw  Deferrer
}

// Plugin is the self-check plugin.
type Plugin struct {
	check         models.CheckConfig
	nicknames     []string
	superusers    []string
	withdrawDelay time.Duration

	collector Collector
	renderer  render.Renderer
	busy      *limiter.BusyGate
	cooldown  *limiter.FreqLimiter
	failures  *limiter.CountLimiter
	withdraw  Deferrer

	// gate makes the busy check and set one step.
	gate   sync.Mutex
	logger *slog.Logger
}

// New creates the plugin from the bot configuration.
func New(cfg *models.Config, deps Deps) *Plugin {
	p := &Plugin{
		check:         cfg.Check,
		nicknames:     cfg.OneBot.Nicknames,
		superusers:    cfg.OneBot.Superusers,
		withdrawDelay: cfg.Withdraw.CheckReplyDelay,
		collector:     deps.Collector,
		renderer:      deps.Renderer,
		busy:          deps.Busy,
		cooldown:      deps.Cooldown,
		failures:      deps.Failures,
		withdraw:      deps.Withdraw,
		logger:        slog.Default().With("component", "check"),
	}
	if p.busy == nil {
		opts := []limiter.Option{limiter.WithStaleAfter(cfg.Limits.BusyStaleAfter)}
		if cfg.Limits.BusySharedClock {
			opts = append(opts, limiter.WithSharedClock())
		}
		p.busy = limiter.NewBusyGate(opts...)
	}
	if p.cooldown == nil {
		p.cooldown = limiter.NewFreqLimiter(cfg.Limits.CheckCooldown)
	}
	if p.failures == nil && cfg.Limits.FailureAlertThreshold > 0 {
		p.failures = limiter.NewCountLimiter(cfg.Limits.FailureAlertThreshold)
	}
	return p
}

// Register adds the matchers selected by the trigger mode.
func (p *Plugin) Register(d *onebot.Dispatcher) {
	mode := p.check.TriggerMode
	if mode == models.TriggerModeMessage || mode == models.TriggerModeMix {
		d.Register(onebot.Matcher{
			Plugin:     pluginName,
			Name:       "command",
			Priority:   messagePriority,
			Block:      true,
			Rules:      []onebot.Rule{onebot.ToMeRule(p.nicknames), onebot.CommandRule(p.nicknames, p.check.Command)},
			Permission: onebot.SuperuserPermission(p.superusers),
			Handler:    p.Handle,
		})
	}
	if mode == models.TriggerModePoke || mode == models.TriggerModeMix {
		d.Register(onebot.Matcher{
			Plugin:     pluginName,
			Name:       "poke",
			Priority:   pokePriority,
			Block:      false,
			Rules:      []onebot.Rule{onebot.PokeRule(), onebot.ToMeRule(p.nicknames)},
			Permission: onebot.SuperuserPermission(p.superusers),
			Handler:    p.Handle,
		})
	}
	p.logger.Info("Self check registered",
		"trigger_mode", mode,
		"cooldown", p.cooldown.DefaultCooldown(),
		"busy_stale_after", p.busy.StaleAfter(),
		"superusers", len(p.superusers),
	)
}

// Handle runs one self-check for the session's user. A user with a check
// in flight or still cooling down is ignored.
func (p *Plugin) Handle(ctx context.Context, s *onebot.Session) error {
	key := s.Event.UserKey()

	p.gate.Lock()
	if p.busy.Check(key) {
		p.gate.Unlock()
		p.logger.Debug("Self check already running", "user_id", key)
		return nil
	}
	if !p.cooldown.Check(key) {
		p.gate.Unlock()
		p.logger.Info("Self check on cooldown", "user_id", key, "remaining", p.cooldown.TimeRemaining(key))
		return nil
	}
	p.busy.SetTrue(key)
	p.cooldown.StartCooldown(key, 0)
	p.gate.Unlock()
	defer p.busy.SetFalse(key)

	p.logger.Info("Self check triggered", "user_id", key, "group_id", s.Event.GroupID)

	img, err := p.run(ctx)
	if err != nil {
		p.logger.Error("Self check failed", "user_id", key, "error", err)
		p.recordFailure(key)
		if _, sendErr := s.Reply(ctx, onebot.Message{onebot.Text("自检失败: " + err.Error())}); sendErr != nil {
			return fmt.Errorf("failed to send failure notice: %w", sendErr)
		}
		return nil
	}

	messageID, err := s.Reply(ctx, onebot.Message{onebot.ImagePNG(img)})
	if err != nil {
		p.recordFailure(key)
		return fmt.Errorf("failed to send self check image: %w", err)
	}
	p.logger.Info("Self check succeeded", "user_id", key, "message_id", messageID)

	if p.withdraw != nil && p.withdrawDelay > 0 && messageID != "" {
		p.withdraw.Defer(messageID, p.withdrawDelay)
	}
	return nil
}

// run collects and renders under a single error boundary: a panic in either
// step is returned as an error.
func (p *Plugin) run(ctx context.Context) (img []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	info, err := p.collector.Collect(ctx)
	if err != nil {
		return nil, err
	}

	root, err := filepath.Abs(p.check.TemplateRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve template root: %w", err)
	}
	img, err = p.renderer.Render(ctx, render.Request{
		TemplatePath: filepath.Join(root, templateDir),
		TemplateName: templateName,
		Data:         info,
		Viewport:     render.Viewport{Width: p.check.ViewportWidth, Height: p.check.ViewportHeight},
		BaseURL:      "file://" + root,
		Wait:         p.check.RenderWait,
	})
	if err != nil {
		return nil, err
	}
	if len(img) == 0 {
		return nil, errors.New("rendered image is empty")
	}
	return img, nil
}

// recordFailure counts a failed check and logs a warning every time the
// user's failures reach the alert threshold.
func (p *Plugin) recordFailure(key string) {
	if p.failures == nil {
		return
	}
	p.failures.Add(key)
	if p.failures.Check(key) {
		p.logger.Warn("Self check keeps failing", "user_id", key, "threshold", p.failures.MaxCount())
	}
}
