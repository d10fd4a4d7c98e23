// Package config loads the daemon configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/craftd/craftd/internal/logging"
	"github.com/craftd/craftd/internal/schedule"
)

// Config represents the daemon configuration.
type Config struct {
	Runtime   RuntimeConfig   `yaml:"runtime" json:"runtime"`
	Docker    DockerConfig    `yaml:"docker" json:"docker"`
	Storage   StorageConfig   `yaml:"storage" json:"storage"`
	Provision ProvisionConfig `yaml:"provision" json:"provision"`
	History   HistoryConfig   `yaml:"history" json:"history"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	Tasks     []schedule.Task `yaml:"tasks" json:"tasks"`
}

// RuntimeConfig selects and tunes the execution backend.
type RuntimeConfig struct {
	// Backend is "container" or "process".
	Backend        string `yaml:"backend" json:"backend"`
	PortRangeStart int    `yaml:"port_range_start" json:"port_range_start"`
	PortRangeEnd   int    `yaml:"port_range_end" json:"port_range_end"`
	// StopDeadlineSeconds bounds a graceful stop before escalation.
	StopDeadlineSeconds int `yaml:"stop_deadline_seconds" json:"stop_deadline_seconds"`
	// StatsTTLSeconds bounds staleness of cached resource samples.
	StatsTTLSeconds int `yaml:"stats_ttl_seconds" json:"stats_ttl_seconds"`
	// JavaBinary is the process backend's default launcher.
	JavaBinary string `yaml:"java_binary" json:"java_binary"`
}

// DockerConfig contains container backend settings.
type DockerConfig struct {
	// Host is the engine endpoint; empty uses the environment default.
	Host  string `yaml:"host" json:"host"`
	Image string `yaml:"image" json:"image"`
	// UseNamedVolumes mounts named volumes instead of host binds.
	UseNamedVolumes bool   `yaml:"use_named_volumes" json:"use_named_volumes"`
	NetworkMode     string `yaml:"network_mode" json:"network_mode"`
}

// StorageConfig contains storage paths.
type StorageConfig struct {
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

// ProvisionConfig contains artifact provisioning settings.
type ProvisionConfig struct {
	// Command is the shell command that downloads server artifacts; it
	// receives SERVER_TYPE, SERVER_VERSION and INSTANCE_DIR in its
	// environment. Empty disables external provisioning.
	Command string `yaml:"command" json:"command"`
}

// HistoryConfig contains status/metrics history settings.
type HistoryConfig struct {
	Enabled       bool   `yaml:"enabled" json:"enabled"`
	Path          string `yaml:"path" json:"path"`
	RetentionDays int    `yaml:"retention_days" json:"retention_days"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"`
	File       string `yaml:"file" json:"file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
}

// Options maps the yaml logging section onto the logger's options.
func (c LoggingConfig) Options() logging.Options {
	return logging.Options{
		Level:      c.Level,
		Format:     c.Format,
		File:       c.File,
		MaxSizeMB:  c.MaxSize,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAge,
	}
}

// StopDeadline returns the graceful stop deadline as a duration.
func (c *RuntimeConfig) StopDeadline() time.Duration {
	return time.Duration(c.StopDeadlineSeconds) * time.Second
}

// StatsTTL returns the stats cache TTL as a duration.
func (c *RuntimeConfig) StatsTTL() time.Duration {
	return time.Duration(c.StatsTTLSeconds) * time.Second
}

// Load reads configuration from path (or the CONFIG_PATH/default lookup
// when path is empty), applies environment overrides and validates.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Runtime: RuntimeConfig{
			Backend:             "container",
			PortRangeStart:      25565,
			PortRangeEnd:        25665,
			StopDeadlineSeconds: 60,
			StatsTTLSeconds:     3,
			JavaBinary:          "java",
		},
		Docker: DockerConfig{
			Image: "itzg/minecraft-server:latest",
		},
		Storage: StorageConfig{
			DataDir: "./data/instances",
		},
		History: HistoryConfig{
			Enabled:       true,
			Path:          "./data/history.db",
			RetentionDays: 2,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
		},
	}

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = resolveConfigPath()
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Environment overrides win over the file.
	if backend := os.Getenv("CRAFTD_BACKEND"); backend != "" {
		cfg.Runtime.Backend = backend
	}
	if dataDir := os.Getenv("CRAFTD_DATA_DIR"); dataDir != "" {
		cfg.Storage.DataDir = dataDir
	}
	if host := os.Getenv("DOCKER_HOST"); host != "" && cfg.Docker.Host == "" {
		cfg.Docker.Host = host
	}
	if image := os.Getenv("CRAFTD_IMAGE"); image != "" {
		cfg.Docker.Image = image
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is usable.
func (c *Config) Validate() error {
	switch c.Runtime.Backend {
	case "container", "process":
	default:
		return fmt.Errorf("runtime backend must be \"container\" or \"process\", got %q", c.Runtime.Backend)
	}

	if c.Runtime.PortRangeStart <= 0 || c.Runtime.PortRangeStart > 65535 {
		return fmt.Errorf("port_range_start %d out of range", c.Runtime.PortRangeStart)
	}
	if c.Runtime.PortRangeEnd < c.Runtime.PortRangeStart || c.Runtime.PortRangeEnd > 65535 {
		return fmt.Errorf("invalid port range %d-%d", c.Runtime.PortRangeStart, c.Runtime.PortRangeEnd)
	}

	if c.Runtime.Backend == "container" && c.Docker.Image == "" {
		return fmt.Errorf("docker image is required for the container backend")
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage data_dir is required")
	}

	for i, task := range c.Tasks {
		if err := task.Validate(); err != nil {
			return fmt.Errorf("task %d: %w", i, err)
		}
	}
	return nil
}

// DataDir returns the absolute instance data directory.
func (c *Config) DataDir() (string, error) {
	abs, err := filepath.Abs(c.Storage.DataDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve data dir: %w", err)
	}
	return abs, nil
}

func resolveConfigPath() string {
	candidates := []string{"./craftd.yaml", "./configs/craftd.yaml", "/etc/craftd/craftd.yaml"}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return "./craftd.yaml"
}
