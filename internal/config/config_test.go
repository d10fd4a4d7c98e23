package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Runtime.Backend != "container" {
		t.Errorf("expected container backend default, got %s", cfg.Runtime.Backend)
	}
	if cfg.Runtime.PortRangeStart != 25565 {
		t.Errorf("expected port range start 25565, got %d", cfg.Runtime.PortRangeStart)
	}
	if cfg.Runtime.StopDeadlineSeconds != 60 {
		t.Errorf("expected 60s stop deadline, got %d", cfg.Runtime.StopDeadlineSeconds)
	}
	if cfg.Docker.Image == "" {
		t.Error("expected a default docker image")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "craftd.yaml")
	content := `
runtime:
  backend: process
  port_range_start: 30000
  port_range_end: 30100
  java_binary: /usr/lib/jvm/java-21/bin/java
storage:
  data_dir: /srv/craftd
tasks:
  - instance: lobby
    action: restart
    spec: "0 4 * * *"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Runtime.Backend != "process" {
		t.Errorf("expected process backend, got %s", cfg.Runtime.Backend)
	}
	if cfg.Runtime.PortRangeStart != 30000 || cfg.Runtime.PortRangeEnd != 30100 {
		t.Errorf("port range not loaded, got %d-%d", cfg.Runtime.PortRangeStart, cfg.Runtime.PortRangeEnd)
	}
	if cfg.Storage.DataDir != "/srv/craftd" {
		t.Errorf("data dir not loaded, got %s", cfg.Storage.DataDir)
	}
	if len(cfg.Tasks) != 1 || cfg.Tasks[0].Instance != "lobby" {
		t.Errorf("tasks not loaded, got %+v", cfg.Tasks)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CRAFTD_BACKEND", "process")
	t.Setenv("CRAFTD_DATA_DIR", "/tmp/craftd-data")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Runtime.Backend != "process" {
		t.Errorf("CRAFTD_BACKEND override ignored, got %s", cfg.Runtime.Backend)
	}
	if cfg.Storage.DataDir != "/tmp/craftd-data" {
		t.Errorf("CRAFTD_DATA_DIR override ignored, got %s", cfg.Storage.DataDir)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("LOG_LEVEL override ignored, got %s", cfg.Logging.Level)
	}
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	cfg := &Config{
		Runtime: RuntimeConfig{Backend: "vm", PortRangeStart: 25565, PortRangeEnd: 25600},
		Storage: StorageConfig{DataDir: "./data"},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected unknown backend to be rejected")
	}
}

func TestValidateRejectsBadPortRange(t *testing.T) {
	cfg := &Config{
		Runtime: RuntimeConfig{Backend: "process", PortRangeStart: 26000, PortRangeEnd: 25000},
		Storage: StorageConfig{DataDir: "./data"},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected inverted port range to be rejected")
	}
}

func TestValidateRejectsInvalidTask(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "craftd.yaml")
	content := `
tasks:
  - instance: lobby
    action: dance
    spec: "0 4 * * *"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected invalid task to fail validation")
	}
}
