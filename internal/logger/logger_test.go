package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"checkbot/internal/models"
	"checkbot/internal/version"
)

var testVersion = version.Info{Version: "v0.1.0", GitCommit: "abc1234", InstanceID: "instance-1"}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		expected  slog.Level
		expectErr bool
	}{
		{name: "debug", input: "debug", expected: slog.LevelDebug},
		{name: "info", input: "info", expected: slog.LevelInfo},
		{name: "warn", input: "warn", expected: slog.LevelWarn},
		{name: "error", input: "error", expected: slog.LevelError},
		{name: "uppercase", input: "DEBUG", expected: slog.LevelDebug},
		{name: "invalid", input: "invalid", expectErr: true},
		{name: "empty", input: "", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, err := parseLevel(tt.input)
			if tt.expectErr {
				if err == nil {
					t.Errorf("expected error for input %q, got nil", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error for input %q: %v", tt.input, err)
			}
			if level != tt.expected {
				t.Errorf("expected level %v, got %v", tt.expected, level)
			}
		})
	}
}

func TestSetupStdout(t *testing.T) {
	for _, format := range []string{"json", "text"} {
		t.Run(format, func(t *testing.T) {
			cfg := models.LoggingConfig{Level: "info", Format: format, Output: "stdout"}

			logger, closer, err := Setup(cfg, testVersion)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if closer != nil {
				t.Error("expected nil closer for stdout")
			}
			if logger == nil {
				t.Fatal("expected non-nil logger")
			}
		})
	}
}

func TestSetupFileOutput(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "checkbot.log")
	cfg := models.LoggingConfig{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: logFile,
	}

	logger, closer, err := Setup(cfg, testVersion)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if closer == nil {
		t.Fatal("expected non-nil closer for file output")
	}
	defer closer.Close()

	logger.Info("self check triggered", "user_id", "10001", "access_token", "hunter2")

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	content := string(data)

	for _, want := range []string{"self check triggered", "10001", `"version":"v0.1.0"`, `"instance_id":"instance-1"`, "[redacted]"} {
		if !strings.Contains(content, want) {
			t.Errorf("log file missing %q, got: %s", want, content)
		}
	}
	if strings.Contains(content, "hunter2") {
		t.Errorf("access token leaked into log: %s", content)
	}
}

func TestSetupErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  models.LoggingConfig
	}{
		{name: "invalid level", cfg: models.LoggingConfig{Level: "loud", Format: "json", Output: "stdout"}},
		{name: "file without path", cfg: models.LoggingConfig{Level: "info", Format: "json", Output: "file"}},
		{name: "unwritable file", cfg: models.LoggingConfig{Level: "info", Format: "json", Output: "file", FilePath: "/nonexistent/dir/x.log"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := Setup(tt.cfg, testVersion); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRedact(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{ReplaceAttr: redact}))

	logger.Info("calling api", "Secret", "abc", "endpoint", "send_msg")

	out := buf.String()
	if strings.Contains(out, "abc") {
		t.Errorf("secret should be redacted: %s", out)
	}
	if !strings.Contains(out, "send_msg") {
		t.Errorf("non-sensitive attrs should pass through: %s", out)
	}
}
