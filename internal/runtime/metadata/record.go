// Package metadata persists the per-instance sidecar record: the slice of
// configuration the backend substrate cannot retain across recreation
// (a removed container keeps no environment, a dead process keeps nothing).
package metadata

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FileName is the sidecar file stored inside each instance directory.
const FileName = ".craftd.json"

// Record is the durable sidecar for one instance. It is created on first
// provisioning, rewritten on every recreate/rename, and removed only
// alongside the instance directory.
type Record struct {
	Name          string            `json:"name"`
	Type          string            `json:"server_type"`
	Version       string            `json:"server_version"`
	LoaderVersion string            `json:"loader_version,omitempty"`
	MinRAM        string            `json:"min_ram,omitempty"`
	MaxRAM        string            `json:"max_ram,omitempty"`
	MinRAMMB      int               `json:"min_ram_mb,omitempty"`
	MaxRAMMB      int               `json:"max_ram_mb,omitempty"`
	HostPort      int               `json:"host_port,omitempty"`
	JavaVersion   string            `json:"java_version,omitempty"`
	JavaBinary    string            `json:"java_binary,omitempty"`
	JavaArgs      []string          `json:"java_args,omitempty"`
	EnvOverrides  map[string]string `json:"env_overrides,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	PreviousNames []string          `json:"previous_names,omitempty"`
	CustomID      string            `json:"custom_id,omitempty"`
	Labels        map[string]string `json:"labels,omitempty"`
}

// recordAliases covers the alternate key spellings older sidecars used.
type recordAliases struct {
	Name          string            `json:"name"`
	Type          string            `json:"type"`
	ServerType    string            `json:"server_type"`
	Version       string            `json:"version"`
	ServerVersion string            `json:"server_version"`
	LoaderVersion string            `json:"loader_version"`
	MinRAM        string            `json:"min_ram"`
	MaxRAM        string            `json:"max_ram"`
	MinRAMMB      int               `json:"min_ram_mb"`
	MaxRAMMB      int               `json:"max_ram_mb"`
	HostPort      int               `json:"host_port"`
	JavaVersion   string            `json:"java_version"`
	JavaBinary    string            `json:"java_binary"`
	JavaArgs      []string          `json:"java_args"`
	EnvOverrides  map[string]string `json:"env_overrides"`
	CreatedAt     string            `json:"created_at"`
	CreatedTS     int64             `json:"created_ts"`
	PreviousNames []string          `json:"previous_names"`
	CustomID      string            `json:"custom_id"`
	Labels        map[string]string `json:"labels"`
}

// UnmarshalJSON accepts both the canonical keys and the legacy aliases
// (type/server_type, version/server_version, created_at/created_ts).
func (r *Record) UnmarshalJSON(data []byte) error {
	var a recordAliases
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	r.Name = a.Name
	r.Type = firstNonEmpty(a.ServerType, a.Type)
	r.Version = firstNonEmpty(a.ServerVersion, a.Version)
	r.LoaderVersion = a.LoaderVersion
	r.MinRAM = a.MinRAM
	r.MaxRAM = a.MaxRAM
	r.MinRAMMB = a.MinRAMMB
	r.MaxRAMMB = a.MaxRAMMB
	r.HostPort = a.HostPort
	r.JavaVersion = a.JavaVersion
	r.JavaBinary = a.JavaBinary
	r.JavaArgs = a.JavaArgs
	r.EnvOverrides = a.EnvOverrides
	r.PreviousNames = a.PreviousNames
	r.CustomID = a.CustomID
	r.Labels = a.Labels

	if a.CreatedAt != "" {
		ts, err := time.Parse(time.RFC3339, a.CreatedAt)
		if err != nil {
			return fmt.Errorf("invalid created_at %q: %w", a.CreatedAt, err)
		}
		r.CreatedAt = ts
	} else if a.CreatedTS > 0 {
		r.CreatedAt = time.Unix(a.CreatedTS, 0).UTC()
	}

	// Human-readable RAM strings win only when the MB fields are absent.
	if r.MinRAMMB == 0 && r.MinRAM != "" {
		if mb, err := ParseRAM(r.MinRAM); err == nil {
			r.MinRAMMB = mb
		}
	}
	if r.MaxRAMMB == 0 && r.MaxRAM != "" {
		if mb, err := ParseRAM(r.MaxRAM); err == nil {
			r.MaxRAMMB = mb
		}
	}

	return nil
}

// ParseRAM converts a human RAM string like "2G", "2048M" or "2048" (MB)
// into megabytes.
func ParseRAM(value string) (int, error) {
	v := strings.TrimSpace(strings.ToUpper(value))
	if v == "" {
		return 0, fmt.Errorf("empty ram value")
	}

	multiplier := 1
	switch {
	case strings.HasSuffix(v, "G"):
		multiplier = 1024
		v = strings.TrimSuffix(v, "G")
	case strings.HasSuffix(v, "M"):
		v = strings.TrimSuffix(v, "M")
	}

	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid ram value %q: %w", value, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("ram value must be positive, got %q", value)
	}
	return n * multiplier, nil
}

// FormatRAM renders megabytes the way the instance environment expects,
// preferring whole gigabytes.
func FormatRAM(mb int) string {
	if mb <= 0 {
		return ""
	}
	if mb%1024 == 0 {
		return fmt.Sprintf("%dG", mb/1024)
	}
	return fmt.Sprintf("%dM", mb)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
