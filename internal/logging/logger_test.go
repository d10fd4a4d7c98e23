package logging

import (
	"log/slog"
	"path/filepath"
	"testing"
)

func TestInitAndCloseLogger(t *testing.T) {
	root := t.TempDir()
	logPath := filepath.Join(root, "craftd.log")

	logger, err := Init(Options{
		Level:      "info",
		Format:     "json",
		File:       logPath,
		MaxSizeMB:  10,
		MaxBackups: 1,
		MaxAgeDays: 1,
	})
	if err != nil {
		t.Fatalf("failed to init logger: %v", err)
	}
	if logger == nil {
		t.Fatal("Init returned nil logger")
	}

	ForComponent("container_backend").Info("test_log", "instance", "survival")
	if err := Close(); err != nil {
		t.Fatalf("failed to close logger: %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
	}
	for _, tc := range cases {
		if got := parseLevel(tc.in); got != tc.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestForComponentBeforeInit(t *testing.T) {
	if ForComponent("scheduler") == nil {
		t.Fatal("expected a usable logger before Init")
	}
}
