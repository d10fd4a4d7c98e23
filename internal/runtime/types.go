package runtime

import (
	"context"
	"time"
)

// BackendKind identifies which execution substrate hosts an instance.
type BackendKind string

const (
	BackendContainer BackendKind = "container"
	BackendProcess   BackendKind = "process"
)

// Status represents the lifecycle state of a server instance.
type Status string

const (
	StatusCreated  Status = "created"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusStopped  Status = "stopped"
	StatusError    Status = "error"
	// StatusNotFound is synthetic: the backend handle no longer resolves.
	StatusNotFound Status = "not_found"
)

// PortBinding maps a container/instance port to a host port.
type PortBinding struct {
	ContainerPort int    `json:"container_port"`
	Protocol      string `json:"protocol"`
	HostPort      int    `json:"host_port"`
	HostAddress   string `json:"host_address"`
	Primary       bool   `json:"primary"`
}

// ResourceLimits carries the RAM envelope for an instance, in megabytes.
type ResourceLimits struct {
	MinRAMMB int `json:"min_ram_mb"`
	MaxRAMMB int `json:"max_ram_mb"`
}

// JavaConfig carries Java runtime overrides baked in at creation time.
// Changing any of these requires a full recreation of the instance.
type JavaConfig struct {
	Version    string   `json:"version,omitempty"`
	BinaryPath string   `json:"binary_path,omitempty"`
	ExtraArgs  []string `json:"extra_args,omitempty"`
}

// ServerInstance is the unit of management.
type ServerInstance struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Backend       BackendKind       `json:"backend"`
	Status        Status            `json:"status"`
	Type          string            `json:"type"`
	Version       string            `json:"version"`
	LoaderVersion string            `json:"loader_version,omitempty"`
	Ports         []PortBinding     `json:"ports,omitempty"`
	Resources     ResourceLimits    `json:"resources"`
	Java          JavaConfig        `json:"java"`
	Labels        map[string]string `json:"labels,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// PrimaryPort returns the host port of the primary binding, or 0.
func (s *ServerInstance) PrimaryPort() int {
	for _, p := range s.Ports {
		if p.Primary {
			return p.HostPort
		}
	}
	if len(s.Ports) > 0 {
		return s.Ports[0].HostPort
	}
	return 0
}

// CreateSpec describes a new instance to provision.
type CreateSpec struct {
	Name          string
	Type          string
	Version       string
	LoaderVersion string
	// HostPort is the preferred game port; 0 lets the allocator decide.
	HostPort  int
	Resources ResourceLimits
	Java      JavaConfig
	// Env carries environment overrides merged into the instance environment.
	Env    map[string]string
	Labels map[string]string
}

// DeleteResult reports what Delete managed to clean up.
type DeleteResult struct {
	Deleted    bool `json:"deleted"`
	DirRemoved bool `json:"dir_removed"`
}

// ResourceUsage is one resource sample for an instance.
type ResourceUsage struct {
	CPUPercent       float64   `json:"cpu_percent"`
	MemoryUsedBytes  uint64    `json:"memory_used_bytes"`
	MemoryLimitBytes uint64    `json:"memory_limit_bytes"`
	MemoryPercent    float64   `json:"memory_percent"`
	NetworkRxBytes   uint64    `json:"network_rx_bytes"`
	NetworkTxBytes   uint64    `json:"network_tx_bytes"`
	SampledAt        time.Time `json:"sampled_at"`
}

// Backend is the runtime contract implemented by the container and process
// substrates. One backend is selected at startup; instances are never mixed
// across backends at runtime.
type Backend interface {
	Kind() BackendKind

	// Create provisions artifacts, allocates a port and creates the instance.
	Create(ctx context.Context, spec CreateSpec) (*ServerInstance, error)

	// CreateFromExisting recreates an instance over an existing data
	// directory, merging env overrides with the stored metadata record
	// (new keys win, unmentioned keys are preserved).
	CreateFromExisting(ctx context.Context, name string, spec CreateSpec) (*ServerInstance, error)

	Start(ctx context.Context, id string) (Status, error)

	// Stop performs a graceful shutdown: console stop command, status
	// polling up to the configured deadline, then escalation. Stopping an
	// already-stopped instance is a no-op returning the current status.
	Stop(ctx context.Context, id string, force bool) (Status, error)

	Restart(ctx context.Context, id string) (Status, error)
	Kill(ctx context.Context, id string) (Status, error)

	// Delete removes the backend handle and, best effort, the instance
	// directory. Deleting a missing instance is idempotent success.
	Delete(ctx context.Context, id string) (DeleteResult, error)

	// RemoveHandle discards the substrate handle (a container, a pid
	// file) while leaving the instance directory intact. Used by the
	// recreate and rename flows. Idempotent on missing handles.
	RemoveHandle(ctx context.Context, id string) error

	List(ctx context.Context) ([]ServerInstance, error)
	Get(ctx context.Context, id string) (*ServerInstance, error)
	Logs(ctx context.Context, id string, tail int) (string, error)

	// SendCommand delivers a console command through the fallback chain.
	SendCommand(ctx context.Context, id, command string) (string, error)

	Stats(ctx context.Context, id string) (*ResourceUsage, error)
	StatsAll(ctx context.Context) (map[string]*ResourceUsage, error)

	// InstanceDir returns the on-disk data directory for a named instance.
	InstanceDir(name string) string
}
