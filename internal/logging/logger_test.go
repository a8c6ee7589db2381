package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"loud", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "topbot.log")

	logger, err := New(path, "info", false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("exchange finished", zap.String("step", "rephrase"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"msg":"exchange finished"`) || !strings.Contains(out, `"step":"rephrase"`) {
		t.Errorf("log line missing fields: %s", out)
	}
	if strings.Contains(out, "hidden") {
		t.Error("debug line written at info level")
	}
}

func TestNewVerboseEnablesDebug(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topbot.log")

	logger, err := New(path, "error", true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Debug("visible")
	_ = logger.Sync()

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "visible") {
		t.Error("verbose should force debug level")
	}
}

func TestNewEmptyPathIsNop(t *testing.T) {
	logger, err := New("", "debug", true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("dropped")
}
