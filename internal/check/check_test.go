package check

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"checkbot/internal/models"
	"checkbot/internal/onebot"
	"checkbot/internal/render"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const superuser = 10001

type fakeSender struct {
	mu   sync.Mutex
	sent []onebot.Message
	err  error
}

func (f *fakeSender) SendMsg(_ context.Context, _ onebot.Target, message onebot.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, message)
	return "m1", nil
}

func (f *fakeSender) messages() []onebot.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]onebot.Message(nil), f.sent...)
}

type fakeCollector struct {
	err error
}

func (f *fakeCollector) Collect(context.Context) (*models.StatusInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.StatusInfo{Nickname: "bot"}, nil
}

type fakeRenderer struct {
	mu      sync.Mutex
	reqs    []render.Request
	started chan struct{}
	release chan struct{}
	panics  bool
}

func (f *fakeRenderer) Render(_ context.Context, req render.Request) ([]byte, error) {
	if f.panics {
		panic("renderer exploded")
	}
	if f.started != nil {
		f.started <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	return []byte("png"), nil
}

type fakeDeferrer struct {
	ids    []string
	delays []time.Duration
}

func (f *fakeDeferrer) Defer(id string, delay time.Duration) bool {
	f.ids = append(f.ids, id)
	f.delays = append(f.delays, delay)
	return true
}

func testConfig() *models.Config {
	cfg := models.NewDefaultConfig()
	cfg.OneBot.Superusers = []string{"10001"}
	cfg.Limits.CheckCooldown = 0
	return cfg
}

func setup(cfg *models.Config, deps Deps) (*onebot.Dispatcher, *fakeSender, *Plugin) {
	sender := &fakeSender{}
	d := onebot.NewDispatcher(sender)
	p := New(cfg, deps)
	p.Register(d)
	return d, sender, p
}

func commandEvent(userID int64) *onebot.Event {
	return &onebot.Event{
		PostType:    onebot.PostTypeMessage,
		MessageType: "private",
		SelfID:      1,
		UserID:      userID,
		Message:     onebot.ParseCQ("自检"),
	}
}

func pokeEvent(userID int64) *onebot.Event {
	return &onebot.Event{
		PostType:   onebot.PostTypeNotice,
		NoticeType: "notify",
		SubType:    "poke",
		SelfID:     1,
		UserID:     userID,
		GroupID:    5,
		TargetID:   1,
	}
}

func TestHandleSendsImage(t *testing.T) {
	cfg := testConfig()
	cfg.Withdraw.CheckReplyDelay = time.Minute
	renderer := &fakeRenderer{}
	deferrer := &fakeDeferrer{}
	d, sender, _ := setup(cfg, Deps{Collector: &fakeCollector{}, Renderer: renderer, Withdraw: deferrer})

	assert.Equal(t, 1, d.Dispatch(context.Background(), commandEvent(superuser)))

	sent := sender.messages()
	require.Len(t, sent, 1)
	require.Len(t, sent[0], 1)
	assert.Equal(t, "image", sent[0][0].Type)
	assert.Equal(t, "base64://cG5n", sent[0][0].Data["file"])

	require.Len(t, renderer.reqs, 1)
	req := renderer.reqs[0]
	assert.Equal(t, "main.html", req.TemplateName)
	assert.True(t, strings.HasSuffix(req.TemplatePath, "template/check"))
	assert.True(t, strings.HasPrefix(req.BaseURL, "file://"))
	assert.Equal(t, render.Viewport{Width: 195, Height: 750}, req.Viewport)
	assert.Equal(t, 2*time.Second, req.Wait)

	assert.Equal(t, []string{"m1"}, deferrer.ids)
	assert.Equal(t, []time.Duration{time.Minute}, deferrer.delays)
}

func TestHandleIgnoresNonSuperusers(t *testing.T) {
	d, sender, _ := setup(testConfig(), Deps{Collector: &fakeCollector{}, Renderer: &fakeRenderer{}})

	assert.Equal(t, 0, d.Dispatch(context.Background(), commandEvent(42)))
	assert.Equal(t, 0, d.Dispatch(context.Background(), pokeEvent(42)))
	assert.Empty(t, sender.messages())
}

func TestHandleFailureMessages(t *testing.T) {
	tests := []struct {
		name     string
		deps     Deps
		wantText string
	}{
		{
			name:     "collector error",
			deps:     Deps{Collector: &fakeCollector{err: errors.New("no procfs")}, Renderer: &fakeRenderer{}},
			wantText: "自检失败: no procfs",
		},
		{
			name:     "renderer panic",
			deps:     Deps{Collector: &fakeCollector{}, Renderer: &fakeRenderer{panics: true}},
			wantText: "自检失败: panic: renderer exploded",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, sender, _ := setup(testConfig(), tt.deps)
			d.Dispatch(context.Background(), commandEvent(superuser))

			sent := sender.messages()
			require.Len(t, sent, 1)
			assert.Equal(t, tt.wantText, sent[0].PlainText())
		})
	}
}

func TestHandleSendErrorReturned(t *testing.T) {
	p := New(testConfig(), Deps{Collector: &fakeCollector{}, Renderer: &fakeRenderer{}})
	sender := &fakeSender{err: errors.New("api down")}
	d := onebot.NewDispatcher(sender)
	p.Register(d)

	d.Dispatch(context.Background(), commandEvent(superuser))
	assert.False(t, p.busy.Check("10001"))
}

func TestHandleCooldown(t *testing.T) {
	cfg := testConfig()
	cfg.Limits.CheckCooldown = time.Hour
	d, sender, _ := setup(cfg, Deps{Collector: &fakeCollector{}, Renderer: &fakeRenderer{}})

	d.Dispatch(context.Background(), commandEvent(superuser))
	d.Dispatch(context.Background(), commandEvent(superuser))
	assert.Len(t, sender.messages(), 1)
}

func TestHandleBusy(t *testing.T) {
	renderer := &fakeRenderer{started: make(chan struct{}), release: make(chan struct{})}
	d, sender, p := setup(testConfig(), Deps{Collector: &fakeCollector{}, Renderer: renderer})

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Dispatch(context.Background(), commandEvent(superuser))
	}()
	<-renderer.started

	assert.True(t, p.busy.Check("10001"))
	d.Dispatch(context.Background(), commandEvent(superuser))

	close(renderer.release)
	<-done

	assert.Len(t, sender.messages(), 1)
	assert.False(t, p.busy.Check("10001"))
}

func TestTriggerModes(t *testing.T) {
	tests := []struct {
		mode        string
		wantCommand int
		wantPoke    int
	}{
		{models.TriggerModeMessage, 1, 0},
		{models.TriggerModePoke, 0, 1},
		{models.TriggerModeMix, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			cfg := testConfig()
			cfg.Check.TriggerMode = tt.mode
			d, _, _ := setup(cfg, Deps{Collector: &fakeCollector{}, Renderer: &fakeRenderer{}})

			assert.Equal(t, tt.wantCommand, d.Dispatch(context.Background(), commandEvent(superuser)))
			assert.Equal(t, tt.wantPoke, d.Dispatch(context.Background(), pokeEvent(superuser)))
			assert.Equal(t, 1, d.PluginCount())
		})
	}
}

func TestFailureCounter(t *testing.T) {
	cfg := testConfig()
	cfg.Limits.FailureAlertThreshold = 2
	d, _, p := setup(cfg, Deps{Collector: &fakeCollector{err: errors.New("boom")}, Renderer: &fakeRenderer{}})

	d.Dispatch(context.Background(), commandEvent(superuser))
	assert.Equal(t, 1, p.failures.Count("10001"))

	d.Dispatch(context.Background(), commandEvent(superuser))
	assert.Equal(t, 0, p.failures.Count("10001"))
}

func TestFailureCounterDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Limits.FailureAlertThreshold = 0
	p := New(cfg, Deps{Collector: &fakeCollector{}, Renderer: &fakeRenderer{}})
	assert.Nil(t, p.failures)
}

func TestNewBuildsLimitersFromConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Limits.CheckCooldown = 20 * time.Second
	cfg.Limits.BusyStaleAfter = 90 * time.Second

	p := New(cfg, Deps{Collector: &fakeCollector{}, Renderer: &fakeRenderer{}})
	assert.Equal(t, 20*time.Second, p.cooldown.DefaultCooldown())
	assert.Equal(t, 90*time.Second, p.busy.StaleAfter())
	assert.Equal(t, 3, p.failures.MaxCount())
}
