// Package models - Service configuration.
// This file defines the configuration tree for the bot and its components.
//
// Configuration Philosophy:
// - Hierarchical configuration grouped by component
// - Defaults that run a local bot without a config file
// - Validation per section, run once after all overrides are applied
package models

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// Trigger modes select which self-check handlers are registered.
const (
	TriggerModeMessage = "message"
	TriggerModePoke    = "poke"
	TriggerModeMix     = "mix"
)

// Config is the root configuration structure.
//
// Configuration Structure:
// - Server: webhook listener receiving OneBot event posts
// - OneBot: API endpoint, credentials and bot identity
// - Check: self-check plugin settings
// - Limits: cooldown and busy-gate tuning for command handlers
// - TempDirs: scratch directories and their cleanup schedule
// - Withdraw: delayed message retraction
// - Status: host status collection
// - Renderer: external template-to-image service
// - Logging, Metrics, Observability: operational output
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	OneBot        OneBotConfig        `yaml:"onebot" json:"onebot"`
	Check         CheckConfig         `yaml:"check" json:"check"`
	Limits        LimitsConfig        `yaml:"limits" json:"limits"`
	TempDirs      TempDirsConfig      `yaml:"temp_dirs" json:"temp_dirs"`
	Withdraw      WithdrawConfig      `yaml:"withdraw" json:"withdraw"`
	Status        StatusConfig        `yaml:"status" json:"status"`
	Renderer      RendererConfig      `yaml:"renderer" json:"renderer"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

type ServerConfig struct {
	Port         int           `yaml:"port" json:"port"`
	Host         string        `yaml:"host" json:"host"`
	EventPath    string        `yaml:"event_path" json:"event_path"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	// Ingress throttle applied per remote address.
	IngressRate  float64 `yaml:"ingress_rate" json:"ingress_rate"`
	IngressBurst int     `yaml:"ingress_burst" json:"ingress_burst"`
}

type OneBotConfig struct {
	APIURL      string        `yaml:"api_url" json:"api_url"`
	AccessToken string        `yaml:"access_token" json:"access_token"`
	Secret      string        `yaml:"secret" json:"secret"`
	APITimeout  time.Duration `yaml:"api_timeout" json:"api_timeout"`
	Superusers  []string      `yaml:"superusers" json:"superusers"`
	Nicknames   []string      `yaml:"nicknames" json:"nicknames"`
}

type CheckConfig struct {
	TriggerMode    string        `yaml:"trigger_mode" json:"trigger_mode"`
	Command        string        `yaml:"command" json:"command"`
	TemplateRoot   string        `yaml:"template_root" json:"template_root"`
	ViewportWidth  int           `yaml:"viewport_width" json:"viewport_width"`
	ViewportHeight int           `yaml:"viewport_height" json:"viewport_height"`
	RenderWait     time.Duration `yaml:"render_wait" json:"render_wait"`
}

type LimitsConfig struct {
	CheckCooldown   time.Duration `yaml:"check_cooldown" json:"check_cooldown"`
	BusyStaleAfter  time.Duration `yaml:"busy_stale_after" json:"busy_stale_after"`
	BusySharedClock bool          `yaml:"busy_shared_clock" json:"busy_shared_clock"`
	// Failed self-checks by one user per warning. 0 disables the warning.
	FailureAlertThreshold int `yaml:"failure_alert_threshold" json:"failure_alert_threshold"`
}

type TempDirsConfig struct {
	Paths           []TempDir `yaml:"paths" json:"paths"`
	CleanupSchedule string    `yaml:"cleanup_schedule" json:"cleanup_schedule"`
}

type TempDir struct {
	Path      string `yaml:"path" json:"path"`
	Recursive bool   `yaml:"recursive" json:"recursive"`
}

type WithdrawConfig struct {
	CheckReplyDelay time.Duration `yaml:"check_reply_delay" json:"check_reply_delay"`
	Timeout         time.Duration `yaml:"timeout" json:"timeout"`
}

type StatusConfig struct {
	VersionFile  string        `yaml:"version_file" json:"version_file"`
	DiskPath     string        `yaml:"disk_path" json:"disk_path"`
	ProbeTimeout time.Duration `yaml:"probe_timeout" json:"probe_timeout"`
	ProbeBaidu   string        `yaml:"probe_baidu" json:"probe_baidu"`
	ProbeGoogle  string        `yaml:"probe_google" json:"probe_google"`
	ProcPath     string        `yaml:"proc_path" json:"proc_path"`
	SysPath      string        `yaml:"sys_path" json:"sys_path"`
}

type RendererConfig struct {
	Endpoint string        `yaml:"endpoint" json:"endpoint"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Port    int    `yaml:"port" json:"port"`
}

type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name" json:"service_name"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate"`
}

// NewDefaultConfig creates a configuration that talks to a OneBot
// implementation and a renderer on localhost.
//
// Default Values Rationale:
// - Trigger mode "mix": both the command and the poke fire a self-check
// - 195x750 viewport with a 2s settle time matches the check template
// - 60s busy staleness: longer than the 45s worst case of probes, render
//   and send_msg, so a slow check is never released early
// - Withdrawal disabled: status images stay in the chat
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			EventPath:    "/onebot/event",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
			IngressRate:  50,
			IngressBurst: 100,
		},
		OneBot: OneBotConfig{
			APIURL:     "http://127.0.0.1:5700",
			APITimeout: 10 * time.Second,
			Superusers: []string{},
			Nicknames:  []string{},
		},
		Check: CheckConfig{
			TriggerMode:    TriggerModeMix,
			Command:        "自检",
			TemplateRoot:   "./resources/template",
			ViewportWidth:  195,
			ViewportHeight: 750,
			RenderWait:     2 * time.Second,
		},
		Limits: LimitsConfig{
			CheckCooldown:         10 * time.Second,
			BusyStaleAfter:        60 * time.Second,
			FailureAlertThreshold: 3,
		},
		TempDirs: TempDirsConfig{
			Paths:           []TempDir{},
			CleanupSchedule: "0 4 * * *",
		},
		Withdraw: WithdrawConfig{
			Timeout: 10 * time.Second,
		},
		Status: StatusConfig{
			VersionFile:  "./__version__",
			DiskPath:     "/",
			ProbeTimeout: 5 * time.Second,
			ProbeBaidu:   "https://www.baidu.com/",
			ProbeGoogle:  "https://www.google.com/",
			ProcPath:     "/proc",
			SysPath:      "/sys",
		},
		Renderer: RendererConfig{
			Endpoint: "http://127.0.0.1:3000/render",
			Timeout:  30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			ServiceName: "checkbot",
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "stdout",
				SampleRate: 1.0,
			},
		},
	}
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}
	if err := c.OneBot.Validate(); err != nil {
		return fmt.Errorf("invalid onebot config: %w", err)
	}
	if err := c.Check.Validate(); err != nil {
		return fmt.Errorf("invalid check config: %w", err)
	}
	if err := c.Limits.Validate(); err != nil {
		return fmt.Errorf("invalid limits config: %w", err)
	}
	if err := c.TempDirs.Validate(); err != nil {
		return fmt.Errorf("invalid temp_dirs config: %w", err)
	}
	if err := c.Withdraw.Validate(); err != nil {
		return fmt.Errorf("invalid withdraw config: %w", err)
	}
	if err := c.Status.Validate(); err != nil {
		return fmt.Errorf("invalid status config: %w", err)
	}
	if err := c.Renderer.Validate(); err != nil {
		return fmt.Errorf("invalid renderer config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("invalid observability config: %w", err)
	}
	if worst := c.CheckBudget(); c.Limits.BusyStaleAfter <= worst {
		return fmt.Errorf("invalid limits config: busy stale-after %s must exceed the worst-case self-check duration %s", c.Limits.BusyStaleAfter, worst)
	}
	return nil
}

// CheckBudget is the longest a single self-check can take: the status probes,
// the render call (which includes the settle wait) and the send_msg call.
func (c *Config) CheckBudget() time.Duration {
	return c.Status.ProbeTimeout + c.Renderer.Timeout + c.OneBot.APITimeout
}

func (sc *ServerConfig) Validate() error {
	if sc.Port <= 0 || sc.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}
	if sc.Host == "" {
		return errors.New("host cannot be empty")
	}
	if sc.EventPath == "" || sc.EventPath[0] != '/' {
		return errors.New("event path must start with /")
	}
	if sc.ReadTimeout < 0 || sc.WriteTimeout < 0 || sc.IdleTimeout < 0 {
		return errors.New("timeouts cannot be negative")
	}
	if sc.IngressRate < 0 || sc.IngressBurst < 0 {
		return errors.New("ingress rate and burst cannot be negative")
	}
	if sc.IngressRate > 0 && sc.IngressBurst < 1 {
		return errors.New("ingress burst must be at least 1 when ingress rate is set")
	}
	return nil
}

func (oc *OneBotConfig) Validate() error {
	if oc.APIURL == "" {
		return errors.New("api url cannot be empty")
	}
	if oc.APITimeout <= 0 {
		return errors.New("api timeout must be positive")
	}
	for _, su := range oc.Superusers {
		if su == "" {
			return errors.New("superuser id cannot be empty")
		}
	}
	return nil
}

func (cc *CheckConfig) Validate() error {
	if !slices.Contains([]string{TriggerModeMessage, TriggerModePoke, TriggerModeMix}, cc.TriggerMode) {
		return fmt.Errorf("invalid trigger mode: %s", cc.TriggerMode)
	}
	if cc.Command == "" {
		return errors.New("command cannot be empty")
	}
	if cc.ViewportWidth <= 0 || cc.ViewportHeight <= 0 {
		return errors.New("viewport dimensions must be positive")
	}
	if cc.RenderWait < 0 {
		return errors.New("render wait cannot be negative")
	}
	return nil
}

func (lc *LimitsConfig) Validate() error {
	if lc.CheckCooldown < 0 {
		return errors.New("check cooldown cannot be negative")
	}
	if lc.BusyStaleAfter <= 0 {
		return errors.New("busy stale-after must be positive")
	}
	if lc.FailureAlertThreshold < 0 {
		return errors.New("failure alert threshold cannot be negative")
	}
	return nil
}

func (tc *TempDirsConfig) Validate() error {
	for _, d := range tc.Paths {
		if d.Path == "" {
			return errors.New("temp dir path cannot be empty")
		}
	}
	return nil
}

func (wc *WithdrawConfig) Validate() error {
	if wc.CheckReplyDelay < 0 {
		return errors.New("check reply delay cannot be negative")
	}
	if wc.Timeout <= 0 {
		return errors.New("withdraw timeout must be positive")
	}
	return nil
}

func (sc *StatusConfig) Validate() error {
	if sc.DiskPath == "" {
		return errors.New("disk path cannot be empty")
	}
	if sc.ProbeTimeout <= 0 {
		return errors.New("probe timeout must be positive")
	}
	return nil
}

func (rc *RendererConfig) Validate() error {
	if rc.Endpoint == "" {
		return errors.New("renderer endpoint cannot be empty")
	}
	if rc.Timeout <= 0 {
		return errors.New("renderer timeout must be positive")
	}
	return nil
}

func (lc *LoggingConfig) Validate() error {
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, lc.Level) {
		return fmt.Errorf("invalid log level: %s", lc.Level)
	}
	if !slices.Contains([]string{"json", "text"}, lc.Format) {
		return fmt.Errorf("invalid log format: %s", lc.Format)
	}
	if !slices.Contains([]string{"stdout", "stderr", "file"}, lc.Output) {
		return fmt.Errorf("invalid log output: %s", lc.Output)
	}
	if lc.Output == "file" && lc.FilePath == "" {
		return errors.New("file path is required when output is file")
	}
	return nil
}

func (mc *MetricsConfig) Validate() error {
	if !mc.Enabled {
		return nil
	}
	if mc.Path == "" {
		return errors.New("metrics path cannot be empty")
	}
	if mc.Port <= 0 || mc.Port > 65535 {
		return errors.New("metrics port must be between 1 and 65535")
	}
	return nil
}

func (oc *ObservabilityConfig) Validate() error {
	if oc.ServiceName == "" {
		return errors.New("service name cannot be empty")
	}
	if !oc.Tracing.Enabled {
		return nil
	}
	switch oc.Tracing.Exporter {
	case "stdout":
	case "otlp":
		if oc.Tracing.OTLPEndpoint == "" {
			return errors.New("otlp endpoint is required for the otlp exporter")
		}
	default:
		return fmt.Errorf("unsupported trace exporter: %s", oc.Tracing.Exporter)
	}
	return nil
}
