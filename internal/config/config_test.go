package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"checkbot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "checkbot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	config, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, models.TriggerModeMix, config.Check.TriggerMode)
	assert.Equal(t, "自检", config.Check.Command)
	assert.Equal(t, 195, config.Check.ViewportWidth)
	assert.Equal(t, 750, config.Check.ViewportHeight)
	assert.Equal(t, 2*time.Second, config.Check.RenderWait)
	assert.Equal(t, 60*time.Second, config.Limits.BusyStaleAfter)
	assert.False(t, config.Limits.BusySharedClock)
	assert.Equal(t, 5*time.Second, config.Status.ProbeTimeout)
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8081
  host: "127.0.0.1"
  event_path: "/events"
  ingress_rate: 5
  ingress_burst: 10

onebot:
  api_url: "http://bot:5700"
  access_token: "token"
  secret: "s3cret"
  api_timeout: 3s
  superusers: ["10001", "10002"]
  nicknames: ["真寻"]

check:
  trigger_mode: poke

limits:
  check_cooldown: 1m
  busy_stale_after: 45s
  busy_shared_clock: true

temp_dirs:
  cleanup_schedule: "0 */6 * * *"
  paths:
    - path: ./data/temp
      recursive: true

withdraw:
  check_reply_delay: 90s

logging:
  level: debug
  format: text
`)

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8081, config.Server.Port)
	assert.Equal(t, "/events", config.Server.EventPath)
	assert.Equal(t, 5.0, config.Server.IngressRate)
	assert.Equal(t, "http://bot:5700", config.OneBot.APIURL)
	assert.Equal(t, 3*time.Second, config.OneBot.APITimeout)
	assert.Equal(t, []string{"10001", "10002"}, config.OneBot.Superusers)
	assert.Equal(t, models.TriggerModePoke, config.Check.TriggerMode)
	assert.Equal(t, time.Minute, config.Limits.CheckCooldown)
	assert.Equal(t, 45*time.Second, config.Limits.BusyStaleAfter)
	assert.True(t, config.Limits.BusySharedClock)
	assert.Equal(t, []models.TempDir{{Path: "./data/temp", Recursive: true}}, config.TempDirs.Paths)
	assert.Equal(t, 90*time.Second, config.Withdraw.CheckReplyDelay)
	assert.Equal(t, "debug", config.Logging.Level)

	// untouched sections keep defaults
	assert.Equal(t, 750, config.Check.ViewportHeight)
	assert.Equal(t, "json", models.NewDefaultConfig().Logging.Format)
}

func TestLoad_LegacyCheckType(t *testing.T) {
	path := writeConfig(t, `
check:
  type: message
`)
	config, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, models.TriggerModeMessage, config.Check.TriggerMode)

	path = writeConfig(t, `
check:
  type: message
  trigger_mode: poke
`)
	config, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, models.TriggerModePoke, config.Check.TriggerMode, "new key wins")
}

func TestLoad_InvalidTriggerMode(t *testing.T) {
	path := writeConfig(t, `
check:
  trigger_mode: telepathy
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid trigger mode")
}

func TestLoad_ZeroIngressBurstRejected(t *testing.T) {
	t.Setenv("CHECKBOT_INGRESS_BURST", "0")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingress burst must be at least 1")
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [unclosed")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML config")
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("CHECKBOT_PORT", "9999")
	t.Setenv("CHECKBOT_SUPERUSERS", " 1, 2 ,,3")
	t.Setenv("CHECKBOT_CHECK_TRIGGER_MODE", "message")
	t.Setenv("CHECKBOT_CHECK_COOLDOWN", "15s")
	t.Setenv("CHECKBOT_BUSY_SHARED_CLOCK", "TRUE")
	t.Setenv("CHECKBOT_INGRESS_RATE", "2.5")
	t.Setenv("CHECKBOT_METRICS_ENABLED", "false")
	t.Setenv("CHECKBOT_RENDERER_TIMEOUT", "not-a-duration")

	config, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9999, config.Server.Port)
	assert.Equal(t, []string{"1", "2", "3"}, config.OneBot.Superusers)
	assert.Equal(t, models.TriggerModeMessage, config.Check.TriggerMode)
	assert.Equal(t, 15*time.Second, config.Limits.CheckCooldown)
	assert.True(t, config.Limits.BusySharedClock)
	assert.Equal(t, 2.5, config.Server.IngressRate)
	assert.False(t, config.Metrics.Enabled)
	assert.Equal(t, 30*time.Second, config.Renderer.Timeout, "unparseable values are ignored")
}

func TestLoad_EnvironmentBeatsFile(t *testing.T) {
	path := writeConfig(t, `
check:
  trigger_mode: poke
`)
	t.Setenv("CHECKBOT_CHECK_TRIGGER_MODE", "mix")

	config, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, models.TriggerModeMix, config.Check.TriggerMode)
}

func TestSaveExample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "checkbot.example.yaml")
	require.NoError(t, SaveExample(path))

	config, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"10001"}, config.OneBot.Superusers)
	assert.Equal(t, []models.TempDir{{Path: "./data/temp", Recursive: true}}, config.TempDirs.Paths)
	assert.Equal(t, 2*time.Second, config.Check.RenderWait)
}
