package common

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lugondev/anchorlite/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestNewLoggerToJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, config.LogConfig{Level: "info", Format: "json"})

	logger.Debug("hidden")
	logger.Info("simulated", "instruction", "checkin")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 log line, got %d: %q", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("expected json output: %v", err)
	}
	if entry["instruction"] != "checkin" {
		t.Errorf("expected instruction attribute, got %v", entry["instruction"])
	}
}

func TestNewLoggerRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anchorlite.log")
	logger, closer := NewLogger(config.LogConfig{Level: "debug", File: path, MaxSizeMB: 1})
	defer closer.Close()

	logger.Debug("written to file")

	if err := closer.Close(); err != nil {
		t.Errorf("expected close to succeed, got %v", err)
	}
}

func TestLoggerMixin(t *testing.T) {
	var m LoggerMixin
	if m.GetLogger() == nil {
		t.Fatal("expected default logger")
	}

	custom := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	m.SetLogger(custom)
	m.SetLogger(nil)
	if m.GetLogger() != custom {
		t.Error("expected nil SetLogger to keep the custom logger")
	}
}
