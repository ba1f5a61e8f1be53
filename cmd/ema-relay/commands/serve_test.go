package commands

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/koscakluka/ema-relay/internal/config"
)

func TestNewLoggerWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.log")

	logger, closeLog, err := newLogger(config.LoggingConfig{Level: "info", Format: "json", Output: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("visible", "session_id", "abc")
	closeLog()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	if strings.Contains(string(data), "hidden") {
		t.Fatalf("expected debug record to be filtered, got %s", data)
	}
	if !strings.Contains(string(data), `"session_id":"abc"`) {
		t.Fatalf("expected json record, got %s", data)
	}
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	if _, _, err := newLogger(config.LoggingConfig{Level: "loud", Format: "text"}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestNewLoggerLevels(t *testing.T) {
	testCases := []struct {
		level   string
		enabled slog.Level
	}{
		{level: "debug", enabled: slog.LevelDebug},
		{level: "warn", enabled: slog.LevelWarn},
		{level: "error", enabled: slog.LevelError},
	}

	for _, tc := range testCases {
		t.Run(tc.level, func(t *testing.T) {
			logger, closeLog, err := newLogger(config.LoggingConfig{Level: tc.level, Format: "text", Output: "stderr"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer closeLog()

			if !logger.Enabled(t.Context(), tc.enabled) {
				t.Fatalf("expected %s to be enabled", tc.enabled)
			}
			if tc.enabled > slog.LevelDebug && logger.Enabled(t.Context(), tc.enabled-4) {
				t.Fatalf("expected levels below %s to be disabled", tc.enabled)
			}
		})
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	if err := Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := out.String(); got != "ema-relay dev\n" {
		t.Fatalf("unexpected version output %q", got)
	}
}
