package docker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/craftd/craftd/internal/logging"
	"github.com/craftd/craftd/internal/provision"
	"github.com/craftd/craftd/internal/runtime"
	"github.com/craftd/craftd/internal/runtime/command"
	"github.com/craftd/craftd/internal/runtime/metadata"
	"github.com/craftd/craftd/internal/runtime/ports"
	"github.com/craftd/craftd/internal/runtime/stats"
)

const (
	// dataMountPath is where the instance directory lands inside the
	// container; fixed by the runtime image.
	dataMountPath = "/data"

	// createAttempts bounds the port-conflict retry loop during creation.
	createAttempts = 5

	listCacheTTL = 2 * time.Second

	// attachReadWindow is how long an attach send waits for immediate
	// output before letting go of the session.
	attachReadWindow = 500 * time.Millisecond
)

// Config carries the container backend's settings.
type Config struct {
	// Image is the fixed runtime image every instance runs.
	Image string
	// DataDir is the host directory holding one subdirectory per instance.
	DataDir string
	// UseNamedVolumes mounts a named volume instead of a host bind.
	UseNamedVolumes bool
	NetworkMode     string
	PortRangeStart  int
	PortRangeEnd    int
	StopDeadline    time.Duration
	StatsTTL        time.Duration
}

// Backend manages game server instances as containers.
type Backend struct {
	client *Client
	cfg    Config
	meta   *metadata.Store
	prov   provision.Provisioner
	alloc  *ports.Allocator

	listCache  *runtime.TTLCache[[]types.Container]
	statsCache *stats.Cache
	logger     *slog.Logger

	// engineCreate issues the actual container create; split out so the
	// port-retry loop is testable without an engine.
	engineCreate func(ctx context.Context, spec runtime.CreateSpec, hostPort int) (string, error)
}

// New returns a container backend over an established engine client.
func New(client *Client, cfg Config, prov provision.Provisioner) *Backend {
	if cfg.PortRangeStart <= 0 {
		cfg.PortRangeStart = ports.GamePort
	}
	if cfg.PortRangeEnd < cfg.PortRangeStart {
		cfg.PortRangeEnd = cfg.PortRangeStart + 1000
	}
	if cfg.StopDeadline <= 0 {
		cfg.StopDeadline = command.DefaultStopDeadline
	}

	b := &Backend{
		client:    client,
		cfg:       cfg,
		meta:      metadata.NewStore(cfg.DataDir),
		prov:      prov,
		listCache: runtime.NewTTLCache[[]types.Container](listCacheTTL),
		logger:    logging.ForComponent("container_backend"),
	}
	b.alloc = ports.New(b.usedPorts)
	b.statsCache = stats.NewCache(b.sampleStats, cfg.StatsTTL)
	b.engineCreate = b.tryCreate
	return b
}

func (b *Backend) Kind() runtime.BackendKind { return runtime.BackendContainer }

// InstanceDir returns the host-side data directory for a named instance.
func (b *Backend) InstanceDir(name string) string {
	return filepath.Join(b.cfg.DataDir, name)
}

// usedPorts scans every container on the host, managed or not, so the
// allocator never hands out a port the engine already published.
func (b *Backend) usedPorts() (map[int]bool, error) {
	list, err := b.client.API().ContainerList(context.Background(),
		container.ListOptions{All: true})
	if err != nil {
		return nil, err
	}

	used := make(map[int]bool)
	for _, c := range list {
		for _, p := range c.Ports {
			if p.PublicPort == 0 {
				continue
			}
			used[int(p.PublicPort)] = true
		}
	}
	return used, nil
}

// ensureImage verifies the runtime image is present, pulling it when the
// local store has no copy.
func (b *Backend) ensureImage(ctx context.Context) error {
	args := filters.NewArgs(filters.Arg("reference", b.cfg.Image))
	images, err := b.client.API().ImageList(ctx, image.ListOptions{Filters: args})
	if err != nil {
		return fmt.Errorf("failed to list images: %w", err)
	}
	if len(images) > 0 {
		return nil
	}

	b.logger.Info("pulling runtime image", "image", b.cfg.Image)
	reader, err := b.client.API().ImagePull(ctx, b.cfg.Image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", b.cfg.Image, err)
	}
	defer reader.Close()
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("image pull interrupted: %w", err)
	}
	return nil
}

// Create provisions artifacts, allocates a port and creates the container.
// A "port is already allocated" failure from the engine retries with the
// next free port, up to createAttempts.
func (b *Backend) Create(ctx context.Context, spec runtime.CreateSpec) (*runtime.ServerInstance, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("instance name is required")
	}
	if err := b.client.Ensure(ctx); err != nil {
		return nil, err
	}
	if _, err := b.client.API().ContainerInspect(ctx, spec.Name); err == nil {
		return nil, fmt.Errorf("instance %s already exists", spec.Name)
	}
	if err := b.ensureImage(ctx); err != nil {
		return nil, err
	}

	dir := b.InstanceDir(spec.Name)
	if b.prov != nil {
		if err := provision.EnsureArtifacts(ctx, b.prov, spec.Type, spec.Version, spec.LoaderVersion, dir); err != nil {
			return nil, err
		}
		if err := provision.AcceptEULA(dir); err != nil {
			return nil, err
		}
	}

	inst, hostPort, err := b.createContainer(ctx, spec)
	if err != nil {
		return nil, err
	}

	if _, err := b.meta.Update(spec.Name, func(rec *metadata.Record) {
		rec.Type = spec.Type
		rec.Version = spec.Version
		rec.LoaderVersion = spec.LoaderVersion
		rec.MinRAMMB = spec.Resources.MinRAMMB
		rec.MaxRAMMB = spec.Resources.MaxRAMMB
		rec.HostPort = hostPort
		rec.JavaVersion = spec.Java.Version
		rec.JavaBinary = spec.Java.BinaryPath
		rec.EnvOverrides = metadata.Merge(rec.EnvOverrides, spec.Env)
		rec.Labels = spec.Labels
	}); err != nil {
		b.logger.Warn("failed to persist instance metadata", "instance", spec.Name, "error", err)
	}

	b.warnJavaCompat(spec)
	b.listCache.Purge()
	return inst, nil
}

// createContainer runs the bounded create-retry loop and returns the
// instance handle plus the host port that finally stuck.
func (b *Backend) createContainer(ctx context.Context, spec runtime.CreateSpec) (*runtime.ServerInstance, int, error) {
	preferred := spec.HostPort

	var lastPort int
	for attempt := 1; attempt <= createAttempts; attempt++ {
		port, err := b.alloc.Pick(preferred, b.cfg.PortRangeStart, b.cfg.PortRangeEnd, true)
		if err != nil {
			return nil, 0, err
		}
		lastPort = port

		id, err := b.engineCreate(ctx, spec, port)
		if err == nil {
			inst := &runtime.ServerInstance{
				ID:      id,
				Name:    spec.Name,
				Backend: runtime.BackendContainer,
				Status:  runtime.StatusCreated,
				Type:    spec.Type,
				Version: spec.Version,
				Ports: []runtime.PortBinding{{
					ContainerPort: ports.GamePort,
					HostPort:      port,
					Protocol:      "tcp",
					Primary:       true,
				}},
				Resources: spec.Resources,
				Java:      spec.Java,
				CreatedAt: time.Now().UTC(),
			}
			return inst, port, nil
		}
		if !isPortAllocated(err) {
			return nil, 0, fmt.Errorf("failed to create container for %s: %w", spec.Name, err)
		}

		b.logger.Warn("host port collided at create, retrying with next port",
			"instance", spec.Name, "port", port, "attempt", attempt)
		b.removeLeftover(ctx, spec.Name)
		preferred = port + 1
	}

	return nil, 0, &runtime.PortConflictError{Port: lastPort}
}

func (b *Backend) tryCreate(ctx context.Context, spec runtime.CreateSpec, hostPort int) (string, error) {
	rconPort := 0
	rconEnabled := isRCONEnabled(spec.Env)
	if rconEnabled {
		if raw := spec.Env["RCON_PORT"]; raw != "" {
			rconPort, _ = strconv.Atoi(raw)
		}
	}
	exposed, bindings, err := portBindings(hostPort, rconEnabled, rconPort)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	cfg := &container.Config{
		Image:        b.cfg.Image,
		Env:          buildEnv(spec),
		Labels:       instanceLabels(spec, now),
		ExposedPorts: exposed,
		OpenStdin:    true,
	}

	hostCfg := &container.HostConfig{
		PortBindings: bindings,
		Mounts:       []mount.Mount{b.dataMount(spec.Name)},
		Resources: container.Resources{
			Memory: memoryLimitBytes(spec.Resources),
		},
	}
	if b.cfg.NetworkMode != "" {
		hostCfg.NetworkMode = container.NetworkMode(b.cfg.NetworkMode)
	}

	resp, err := b.client.API().ContainerCreate(ctx, cfg, hostCfg,
		&network.NetworkingConfig{}, nil, spec.Name)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (b *Backend) dataMount(name string) mount.Mount {
	if b.cfg.UseNamedVolumes {
		return mount.Mount{
			Type:   mount.TypeVolume,
			Source: "craftd-" + name,
			Target: dataMountPath,
		}
	}
	return mount.Mount{
		Type:   mount.TypeBind,
		Source: b.InstanceDir(name),
		Target: dataMountPath,
	}
}

// removeLeftover clears a half-created container so the retry can reuse the
// name.
func (b *Backend) removeLeftover(ctx context.Context, name string) {
	err := b.client.API().ContainerRemove(ctx, name, container.RemoveOptions{Force: true})
	if err != nil && !errdefs.IsNotFound(err) {
		b.logger.Warn("failed to remove half-created container", "instance", name, "error", err)
	}
}

// warnJavaCompat logs a warning when the runtime image's Java major is too
// old for the requested server version. Never fatal.
func (b *Backend) warnJavaCompat(spec runtime.CreateSpec) {
	major := imageJavaMajor(b.cfg.Image)
	if major == 0 {
		return
	}
	if ok, required := provision.CheckJavaCompat(spec.Type, spec.Version, major); !ok {
		b.logger.Warn("runtime image java version may be too old",
			"instance", spec.Name, "image_java", major, "required", required,
			"server_version", spec.Version)
	}
}

// imageJavaMajor extracts the Java major from image tags like
// "itzg/minecraft-server:java21". Zero when the tag carries no hint.
func imageJavaMajor(ref string) int {
	idx := strings.LastIndex(ref, ":")
	if idx < 0 {
		return 0
	}
	tag := ref[idx+1:]
	if !strings.HasPrefix(tag, "java") {
		return 0
	}
	digits := strings.TrimFunc(tag[len("java"):], func(r rune) bool {
		return r < '0' || r > '9'
	})
	major, _ := strconv.Atoi(digits)
	return major
}

func isRCONEnabled(env map[string]string) bool {
	v := strings.ToLower(strings.TrimSpace(env["ENABLE_RCON"]))
	return v == "true" || v == "yes" || v == "on" || v == "1"
}

// CreateFromExisting recreates an instance over its existing data directory.
// Stored metadata fills whatever the spec leaves zero, and env overrides are
// merged with new keys winning.
func (b *Backend) CreateFromExisting(ctx context.Context, name string, spec runtime.CreateSpec) (*runtime.ServerInstance, error) {
	rec, err := b.meta.Load(name)
	if err != nil && !errors.Is(err, metadata.ErrNoRecord) {
		return nil, err
	}
	if rec == nil {
		rec = &metadata.Record{Name: name}
	}

	spec.Name = name
	if spec.Type == "" {
		spec.Type = rec.Type
	}
	if spec.Version == "" {
		spec.Version = rec.Version
	}
	if spec.LoaderVersion == "" {
		spec.LoaderVersion = rec.LoaderVersion
	}
	if spec.HostPort == 0 {
		spec.HostPort = rec.HostPort
	}
	if spec.Resources.MinRAMMB == 0 {
		spec.Resources.MinRAMMB = rec.MinRAMMB
	}
	if spec.Resources.MaxRAMMB == 0 {
		spec.Resources.MaxRAMMB = rec.MaxRAMMB
	}
	if spec.Java.Version == "" {
		spec.Java.Version = rec.JavaVersion
	}
	if spec.Java.BinaryPath == "" {
		spec.Java.BinaryPath = rec.JavaBinary
	}
	spec.Env = metadata.Merge(rec.EnvOverrides, spec.Env)
	if spec.Labels == nil {
		spec.Labels = rec.Labels
	}

	return b.Create(ctx, spec)
}

// inspect resolves id (container id or instance name) and maps missing
// containers to ErrNotFound.
func (b *Backend) inspect(ctx context.Context, id string) (types.ContainerJSON, error) {
	info, err := b.client.API().ContainerInspect(ctx, id)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return types.ContainerJSON{}, fmt.Errorf("%w: %s", runtime.ErrNotFound, id)
		}
		return types.ContainerJSON{}, fmt.Errorf("failed to inspect %s: %w", id, err)
	}
	return info, nil
}

func (b *Backend) Start(ctx context.Context, id string) (runtime.Status, error) {
	if err := b.client.Ensure(ctx); err != nil {
		return runtime.StatusError, err
	}
	if err := b.client.API().ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		if errdefs.IsNotFound(err) {
			return runtime.StatusNotFound, fmt.Errorf("%w: %s", runtime.ErrNotFound, id)
		}
		return runtime.StatusError, fmt.Errorf("failed to start %s: %w", id, err)
	}
	b.listCache.Purge()
	return runtime.StatusRunning, nil
}

// Stop performs a graceful shutdown: console stop command, poll until the
// container exits or the deadline passes, then engine-level stop, then kill.
// Stopping a missing or already-stopped instance succeeds with the current
// status.
func (b *Backend) Stop(ctx context.Context, id string, force bool) (runtime.Status, error) {
	info, err := b.inspect(ctx, id)
	if runtime.IsNotFound(err) {
		return runtime.StatusNotFound, nil
	}
	if err != nil {
		return runtime.StatusError, err
	}
	if info.State == nil || !info.State.Running {
		return mapState(stateString(info)), nil
	}

	defer func() {
		b.listCache.Purge()
		b.statsCache.Invalidate(id)
		b.statsCache.Invalidate(info.ID)
	}()

	if force {
		return b.Kill(ctx, id)
	}

	if _, err := b.dispatcher(info).Dispatch(ctx, "stop"); err != nil {
		b.logger.Warn("stop command undeliverable, falling back to engine stop",
			"instance", instanceName(info), "error", err)
		return b.engineStop(ctx, id)
	}

	running := func(ctx context.Context) (bool, error) {
		cur, err := b.inspect(ctx, id)
		if runtime.IsNotFound(err) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return cur.State != nil && cur.State.Running, nil
	}

	if err := command.WaitForStop(ctx, running, b.cfg.StopDeadline); err != nil {
		b.logger.Warn("graceful stop timed out, escalating",
			"instance", instanceName(info), "deadline", b.cfg.StopDeadline)
		return b.engineStop(ctx, id)
	}
	return runtime.StatusStopped, nil
}

// engineStop asks the engine for a SIGTERM-then-SIGKILL stop with a short
// grace window; the console-level wait already happened.
func (b *Backend) engineStop(ctx context.Context, id string) (runtime.Status, error) {
	grace := 10
	err := b.client.API().ContainerStop(ctx, id, container.StopOptions{Timeout: &grace})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return runtime.StatusNotFound, nil
		}
		return runtime.StatusError, fmt.Errorf("failed to stop %s: %w", id, err)
	}
	return runtime.StatusStopped, nil
}

func (b *Backend) Restart(ctx context.Context, id string) (runtime.Status, error) {
	if _, err := b.Stop(ctx, id, false); err != nil {
		return runtime.StatusError, err
	}
	return b.Start(ctx, id)
}

func (b *Backend) Kill(ctx context.Context, id string) (runtime.Status, error) {
	err := b.client.API().ContainerKill(ctx, id, "SIGKILL")
	if err != nil {
		if errdefs.IsNotFound(err) {
			return runtime.StatusNotFound, nil
		}
		return runtime.StatusError, fmt.Errorf("failed to kill %s: %w", id, err)
	}
	b.listCache.Purge()
	b.statsCache.Invalidate(id)
	return runtime.StatusStopped, nil
}

// RemoveHandle force-removes the container while leaving the instance
// directory alone.
func (b *Backend) RemoveHandle(ctx context.Context, id string) error {
	err := b.client.API().ContainerRemove(ctx, id, container.RemoveOptions{Force: true})
	if err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("failed to remove container %s: %w", id, err)
	}
	b.listCache.Purge()
	b.statsCache.Invalidate(id)
	return nil
}

// Delete removes the container and, best effort, the instance directory.
// The directory removal follows symlinks only when the target stays under
// the data dir. Deleting a missing instance is idempotent success.
func (b *Backend) Delete(ctx context.Context, id string) (runtime.DeleteResult, error) {
	name := id
	if info, err := b.inspect(ctx, id); err == nil {
		name = instanceName(info)
	}

	res := runtime.DeleteResult{}
	err := b.client.API().ContainerRemove(ctx, id, container.RemoveOptions{Force: true})
	switch {
	case err == nil:
		res.Deleted = true
	case errdefs.IsNotFound(err):
		// Already gone; still try the directory below.
	default:
		return res, fmt.Errorf("failed to remove container %s: %w", id, err)
	}

	removed, err := runtime.RemoveInstanceDir(b.cfg.DataDir, b.InstanceDir(name))
	if err != nil {
		b.logger.Warn("failed to remove instance directory", "instance", name, "error", err)
	}
	res.DirRemoved = removed

	b.listCache.Purge()
	b.statsCache.Invalidate(id)
	return res, nil
}

// managedContainers lists every managed container, served from a short TTL
// cache to keep rapid dashboard polling off the engine.
func (b *Backend) managedContainers(ctx context.Context) ([]types.Container, error) {
	return b.listCache.GetOrFill("managed", func() ([]types.Container, error) {
		args := filters.NewArgs(filters.Arg("label", LabelManaged+"=true"))
		return b.client.API().ContainerList(ctx, container.ListOptions{
			All:     true,
			Filters: args,
		})
	})
}

func (b *Backend) List(ctx context.Context) ([]runtime.ServerInstance, error) {
	list, err := b.managedContainers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}

	instances := make([]runtime.ServerInstance, 0, len(list))
	for _, c := range list {
		inst := summaryToInstance(c)
		b.enrichFromMetadata(&inst)
		instances = append(instances, inst)
	}
	return instances, nil
}

func (b *Backend) Get(ctx context.Context, id string) (*runtime.ServerInstance, error) {
	info, err := b.inspect(ctx, id)
	if err != nil {
		return nil, err
	}
	if info.Config == nil || info.Config.Labels[LabelManaged] != "true" {
		return nil, fmt.Errorf("%w: %s is not managed", runtime.ErrNotFound, id)
	}

	inst := inspectToInstance(info)
	b.enrichFromMetadata(&inst)
	return &inst, nil
}

// enrichFromMetadata overlays sidecar fields the engine does not retain.
func (b *Backend) enrichFromMetadata(inst *runtime.ServerInstance) {
	rec, err := b.meta.Load(inst.Name)
	if err != nil {
		return
	}
	inst.Resources = runtime.ResourceLimits{MinRAMMB: rec.MinRAMMB, MaxRAMMB: rec.MaxRAMMB}
	inst.Java = runtime.JavaConfig{Version: rec.JavaVersion, BinaryPath: rec.JavaBinary}
	inst.LoaderVersion = rec.LoaderVersion
	inst.Labels = rec.Labels
	inst.CreatedAt = rec.CreatedAt
}

// Logs returns the last tail lines of the container's combined output.
func (b *Backend) Logs(ctx context.Context, id string, tail int) (string, error) {
	if tail <= 0 {
		tail = 100
	}
	reader, err := b.client.API().ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       strconv.Itoa(tail),
	})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return "", fmt.Errorf("%w: %s", runtime.ErrNotFound, id)
		}
		return "", fmt.Errorf("failed to read logs for %s: %w", id, err)
	}
	defer reader.Close()

	// The engine multiplexes stdout/stderr on non-tty containers.
	var buf bytes.Buffer
	if _, err := stdcopy.StdCopy(&buf, &buf, reader); err != nil {
		return "", fmt.Errorf("failed to demux logs for %s: %w", id, err)
	}
	return buf.String(), nil
}

// SendCommand delivers a console command through the fallback chain:
// RCON, attached stream, init stdin, PID-targeted stdin.
func (b *Backend) SendCommand(ctx context.Context, id, cmd string) (string, error) {
	info, err := b.inspect(ctx, id)
	if err != nil {
		return "", err
	}
	if info.State == nil || !info.State.Running {
		return "", fmt.Errorf("instance %s is not running", instanceName(info))
	}

	res, err := b.dispatcher(info).Dispatch(ctx, cmd)
	if err != nil {
		return "", err
	}
	return res.Output, nil
}

// dispatcher builds the per-instance fallback chain from inspect state.
func (b *Backend) dispatcher(info types.ContainerJSON) *command.Dispatcher {
	env := func(ctx context.Context) (map[string]string, error) {
		envMap := make(map[string]string)
		if info.Config != nil {
			lookup := envLookup(info.Config.Env)
			for _, key := range []string{"ENABLE_RCON", "RCON_PASSWORD", "RCON_PORT"} {
				if v := lookup(key); v != "" {
					envMap[key] = v
				}
			}
		}
		return envMap, nil
	}

	pid := func(ctx context.Context) (int, error) {
		if info.State == nil || info.State.Pid == 0 {
			return 0, fmt.Errorf("no live pid for %s", instanceName(info))
		}
		return info.State.Pid, nil
	}

	return command.NewDispatcher(
		&command.RCONChannel{Host: containerIP(info), Env: env},
		command.NewStreamChannel("attach", func(ctx context.Context, cmd string) (string, error) {
			return b.attachSend(ctx, info.ID, cmd)
		}),
		&command.InitStdinChannel{PID: pid},
		&command.PIDStdinChannel{RootPID: pid},
	)
}

// attachSend writes the command over a hijacked attach session, then reads
// briefly so immediate output makes it back to the caller.
func (b *Backend) attachSend(ctx context.Context, id, cmd string) (string, error) {
	resp, err := b.client.API().ContainerAttach(ctx, id, container.AttachOptions{
		Stream: true,
		Stdin:  true,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		return "", fmt.Errorf("attach to %s failed: %w", id, err)
	}
	defer resp.Close()

	if _, err := resp.Conn.Write([]byte(cmd + "\n")); err != nil {
		return "", fmt.Errorf("attach write to %s failed: %w", id, err)
	}

	_ = resp.Conn.SetReadDeadline(time.Now().Add(attachReadWindow))
	return drainAttachOutput(resp.Reader), nil
}

// drainAttachOutput demuxes whatever the session produced until the read
// deadline cuts it off. A timeout is the normal way out, not an error.
func drainAttachOutput(r io.Reader) string {
	var buf bytes.Buffer
	_, _ = stdcopy.StdCopy(&buf, &buf, r)
	return strings.TrimSpace(buf.String())
}

// sampleStats takes one non-streaming stats snapshot.
func (b *Backend) sampleStats(ctx context.Context, id string) (*runtime.ResourceUsage, error) {
	resp, err := b.client.API().ContainerStats(ctx, id, false)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", runtime.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to read stats for %s: %w", id, err)
	}
	defer resp.Body.Close()

	var raw container.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode stats for %s: %w", id, err)
	}
	return stats.FromContainerStats(&raw), nil
}

func (b *Backend) Stats(ctx context.Context, id string) (*runtime.ResourceUsage, error) {
	return b.statsCache.Get(ctx, id)
}

// StatsAll samples every running managed instance, serving cached values
// inside the TTL. Per-instance sampling failures are logged and skipped.
func (b *Backend) StatsAll(ctx context.Context) (map[string]*runtime.ResourceUsage, error) {
	list, err := b.managedContainers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}

	out := make(map[string]*runtime.ResourceUsage)
	for _, c := range list {
		if mapState(c.State) != runtime.StatusRunning {
			continue
		}
		usage, err := b.statsCache.Get(ctx, c.ID)
		if err != nil {
			b.logger.Debug("stats sample failed", "instance", c.Labels[LabelName], "error", err)
			continue
		}
		name := c.Labels[LabelName]
		if name == "" && len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}
		if name == "" {
			name = c.ID
		}
		out[name] = usage
	}
	return out, nil
}

func instanceName(info types.ContainerJSON) string {
	if info.Config != nil {
		if n := info.Config.Labels[LabelName]; n != "" {
			return n
		}
	}
	return strings.TrimPrefix(info.Name, "/")
}

func stateString(info types.ContainerJSON) string {
	if info.State == nil {
		return ""
	}
	return info.State.Status
}
