package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"checkbot/internal/models"

	"gopkg.in/yaml.v3"
)

// Load builds the configuration from defaults, an optional YAML file and
// CHECKBOT_* environment variables, in that order, then validates it.
func Load(configPath string) (*models.Config, error) {
	config := models.NewDefaultConfig()

	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	loadFromEnvironment(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// legacyConfig mirrors keys from older config files that are still honoured.
type legacyConfig struct {
	Check struct {
		Type        string `yaml:"type"`
		TriggerMode string `yaml:"trigger_mode"`
	} `yaml:"check"`
}

// applyLegacyKeys maps check.type onto check.trigger_mode when the new key
// is absent, and warns either way.
func applyLegacyKeys(config *models.Config, data []byte) {
	var legacy legacyConfig
	if err := yaml.Unmarshal(data, &legacy); err != nil {
		return
	}
	if legacy.Check.Type == "" {
		return
	}
	if legacy.Check.TriggerMode == "" {
		config.Check.TriggerMode = legacy.Check.Type
		slog.Warn("Config key is deprecated, use check.trigger_mode instead.", "config_key", "check.type")
		return
	}
	slog.Warn("Config key is ignored because check.trigger_mode is set.", "config_key", "check.type")
}

func loadFromFile(config *models.Config, filePath string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", filePath)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	applyLegacyKeys(config, data)
	return nil
}

func loadFromEnvironment(config *models.Config) {
	// Server
	envInt("CHECKBOT_PORT", &config.Server.Port)
	envString("CHECKBOT_HOST", &config.Server.Host)
	envString("CHECKBOT_EVENT_PATH", &config.Server.EventPath)
	envDuration("CHECKBOT_READ_TIMEOUT", &config.Server.ReadTimeout)
	envDuration("CHECKBOT_WRITE_TIMEOUT", &config.Server.WriteTimeout)
	envDuration("CHECKBOT_IDLE_TIMEOUT", &config.Server.IdleTimeout)
	envFloat("CHECKBOT_INGRESS_RATE", &config.Server.IngressRate)
	envInt("CHECKBOT_INGRESS_BURST", &config.Server.IngressBurst)

	// OneBot
	envString("CHECKBOT_ONEBOT_API_URL", &config.OneBot.APIURL)
	envString("CHECKBOT_ONEBOT_ACCESS_TOKEN", &config.OneBot.AccessToken)
	envString("CHECKBOT_ONEBOT_SECRET", &config.OneBot.Secret)
	envDuration("CHECKBOT_ONEBOT_API_TIMEOUT", &config.OneBot.APITimeout)
	envList("CHECKBOT_SUPERUSERS", &config.OneBot.Superusers)
	envList("CHECKBOT_NICKNAMES", &config.OneBot.Nicknames)

	// Self-check
	envString("CHECKBOT_CHECK_TRIGGER_MODE", &config.Check.TriggerMode)
	envString("CHECKBOT_CHECK_COMMAND", &config.Check.Command)
	envString("CHECKBOT_CHECK_TEMPLATE_ROOT", &config.Check.TemplateRoot)

	// Limits
	envDuration("CHECKBOT_CHECK_COOLDOWN", &config.Limits.CheckCooldown)
	envDuration("CHECKBOT_BUSY_STALE_AFTER", &config.Limits.BusyStaleAfter)
	envBool("CHECKBOT_BUSY_SHARED_CLOCK", &config.Limits.BusySharedClock)
	envInt("CHECKBOT_FAILURE_ALERT_THRESHOLD", &config.Limits.FailureAlertThreshold)

	// Temp dirs
	envString("CHECKBOT_TEMP_CLEANUP_SCHEDULE", &config.TempDirs.CleanupSchedule)

	// Withdraw
	envDuration("CHECKBOT_WITHDRAW_CHECK_REPLY_DELAY", &config.Withdraw.CheckReplyDelay)
	envDuration("CHECKBOT_WITHDRAW_TIMEOUT", &config.Withdraw.Timeout)

	// Status
	envString("CHECKBOT_VERSION_FILE", &config.Status.VersionFile)
	envString("CHECKBOT_DISK_PATH", &config.Status.DiskPath)
	envDuration("CHECKBOT_PROBE_TIMEOUT", &config.Status.ProbeTimeout)

	// Renderer
	envString("CHECKBOT_RENDERER_ENDPOINT", &config.Renderer.Endpoint)
	envDuration("CHECKBOT_RENDERER_TIMEOUT", &config.Renderer.Timeout)

	// Logging
	envString("CHECKBOT_LOG_LEVEL", &config.Logging.Level)
	envString("CHECKBOT_LOG_FORMAT", &config.Logging.Format)
	envString("CHECKBOT_LOG_OUTPUT", &config.Logging.Output)
	envString("CHECKBOT_LOG_FILE_PATH", &config.Logging.FilePath)

	// Metrics
	envBool("CHECKBOT_METRICS_ENABLED", &config.Metrics.Enabled)
	envString("CHECKBOT_METRICS_PATH", &config.Metrics.Path)
	envInt("CHECKBOT_METRICS_PORT", &config.Metrics.Port)

	// Tracing
	envBool("CHECKBOT_TRACING_ENABLED", &config.Observability.Tracing.Enabled)
	envString("CHECKBOT_TRACING_EXPORTER", &config.Observability.Tracing.Exporter)
	envString("CHECKBOT_TRACING_OTLP_ENDPOINT", &config.Observability.Tracing.OTLPEndpoint)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		*dst = strings.ToLower(v) == "true"
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// envList reads a comma-separated list, dropping blanks.
func envList(key string, dst *[]string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	out := []string{}
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}

// SaveExample writes an example configuration file.
func SaveExample(filePath string) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	config := models.NewDefaultConfig()
	config.OneBot.AccessToken = "your-access-token"
	config.OneBot.Secret = "your-post-secret"
	config.OneBot.Superusers = []string{"10001"}
	config.OneBot.Nicknames = []string{"小真寻"}
	config.TempDirs.Paths = []models.TempDir{
		{Path: "./data/temp", Recursive: true},
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
