// Package process implements the local-process variant of the runtime
// backend: instances are java processes spawned in their own process group,
// with an append-only console log and a named control pipe for stdin.
package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/craftd/craftd/internal/logging"
	"github.com/craftd/craftd/internal/provision"
	"github.com/craftd/craftd/internal/runtime"
	"github.com/craftd/craftd/internal/runtime/command"
	"github.com/craftd/craftd/internal/runtime/metadata"
	"github.com/craftd/craftd/internal/runtime/ports"
	"github.com/craftd/craftd/internal/runtime/stats"
)

const (
	consoleLogName  = "console.log"
	controlPipeName = "console.in"

	// killGrace is how long SIGTERM gets before escalating to SIGKILL.
	killGrace = 10 * time.Second

	listCacheTTL = 2 * time.Second
)

// Config carries the process backend's settings.
type Config struct {
	// DataDir holds one subdirectory per instance.
	DataDir string
	// JavaBinary is the default launcher; per-instance overrides win.
	JavaBinary     string
	PortRangeStart int
	PortRangeEnd   int
	StopDeadline   time.Duration
	StatsTTL       time.Duration
}

// Backend manages game server instances as host processes. Instance ids
// are the instance names; there is no separate handle.
type Backend struct {
	cfg   Config
	meta  *metadata.Store
	prov  provision.Provisioner
	alloc *ports.Allocator

	listCache  *runtime.TTLCache[[]runtime.ServerInstance]
	statsCache *stats.Cache
	logger     *slog.Logger

	// mu serializes lifecycle transitions; concurrent stats and list
	// reads stay lock-free.
	mu sync.Mutex
}

// New returns a process backend rooted at cfg.DataDir.
func New(cfg Config, prov provision.Provisioner) *Backend {
	if cfg.JavaBinary == "" {
		cfg.JavaBinary = "java"
	}
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
		cfg:       cfg,
		meta:      metadata.NewStore(cfg.DataDir),
		prov:      prov,
		listCache: runtime.NewTTLCache[[]runtime.ServerInstance](listCacheTTL),
		logger:    logging.ForComponent("process_backend"),
	}
	// Bind-probing matters here: the game process binds the host port
	// directly, and non-managed processes share the same port space.
	b.alloc = ports.NewWithProbe(b.usedPorts)
	b.statsCache = stats.NewCache(b.sampleStats, cfg.StatsTTL)
	return b
}

func (b *Backend) Kind() runtime.BackendKind { return runtime.BackendProcess }

func (b *Backend) InstanceDir(name string) string {
	return filepath.Join(b.cfg.DataDir, name)
}

// usedPorts reports the game ports recorded for every managed instance.
// Ports held by unrelated host processes are caught by the bind probe.
func (b *Backend) usedPorts() (map[int]bool, error) {
	entries, err := os.ReadDir(b.cfg.DataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[int]bool{}, nil
		}
		return nil, fmt.Errorf("failed to scan data directory: %w", err)
	}

	used := make(map[int]bool)
	for _, e := range entries {
		if !e.IsDir() && e.Type()&os.ModeSymlink == 0 {
			continue
		}
		rec, err := b.meta.Load(e.Name())
		if err != nil {
			continue
		}
		if rec.HostPort > 0 {
			used[rec.HostPort] = true
		}
	}
	return used, nil
}

// Create provisions artifacts, allocates a port, wires server.properties
// and persists the metadata record. The process itself is spawned by Start.
func (b *Backend) Create(ctx context.Context, spec runtime.CreateSpec) (*runtime.ServerInstance, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("instance name is required")
	}
	if _, err := b.meta.Load(spec.Name); err == nil {
		return nil, fmt.Errorf("instance %s already exists", spec.Name)
	}
	return b.create(ctx, spec, nil)
}

// CreateFromExisting recreates an instance over its existing data
// directory. Stored metadata fills whatever the spec leaves zero, and env
// overrides are merged with new keys winning.
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
	if len(spec.Java.ExtraArgs) == 0 {
		spec.Java.ExtraArgs = rec.JavaArgs
	}
	spec.Env = metadata.Merge(rec.EnvOverrides, spec.Env)
	if spec.Labels == nil {
		spec.Labels = rec.Labels
	}

	return b.create(ctx, spec, rec)
}

func (b *Backend) create(ctx context.Context, spec runtime.CreateSpec, prior *metadata.Record) (*runtime.ServerInstance, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	dir := b.InstanceDir(spec.Name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create instance directory: %w", err)
	}

	if b.prov != nil {
		if err := provision.EnsureArtifacts(ctx, b.prov, spec.Type, spec.Version, spec.LoaderVersion, dir); err != nil {
			return nil, err
		}
	}
	if err := provision.AcceptEULA(dir); err != nil {
		return nil, err
	}

	// A recreation keeping its recorded port skips the free check: the
	// instance itself is the current holder of that port.
	preferred := spec.HostPort
	keepingOwnPort := prior != nil && preferred > 0 && preferred == prior.HostPort
	if !keepingOwnPort {
		port, err := b.alloc.Pick(preferred, b.cfg.PortRangeStart, b.cfg.PortRangeEnd, true)
		if err != nil {
			return nil, err
		}
		preferred = port
	}

	props := map[string]string{
		"server-port": strconv.Itoa(preferred),
	}
	if isTruthyEnv(spec.Env["ENABLE_RCON"]) {
		props["enable-rcon"] = "true"
		if pw := spec.Env["RCON_PASSWORD"]; pw != "" {
			props["rcon.password"] = pw
		}
		if rp := spec.Env["RCON_PORT"]; rp != "" {
			props["rcon.port"] = rp
		}
	}
	if err := setServerProperties(dir, props); err != nil {
		return nil, err
	}

	b.warnJavaCompat(ctx, spec)

	rec, err := b.meta.Update(spec.Name, func(rec *metadata.Record) {
		rec.Type = spec.Type
		rec.Version = spec.Version
		rec.LoaderVersion = spec.LoaderVersion
		rec.MinRAMMB = spec.Resources.MinRAMMB
		rec.MaxRAMMB = spec.Resources.MaxRAMMB
		rec.HostPort = preferred
		rec.JavaVersion = spec.Java.Version
		rec.JavaBinary = spec.Java.BinaryPath
		rec.JavaArgs = spec.Java.ExtraArgs
		rec.EnvOverrides = metadata.Merge(rec.EnvOverrides, spec.Env)
		rec.Labels = spec.Labels
	})
	if err != nil {
		return nil, err
	}

	b.listCache.Purge()
	inst := b.instanceFromRecord(rec)
	return &inst, nil
}

// warnJavaCompat checks the launcher's major version against the server
// version floor. Never fatal; a missing java binary only logs.
func (b *Backend) warnJavaCompat(ctx context.Context, spec runtime.CreateSpec) {
	bin := spec.Java.BinaryPath
	if bin == "" {
		bin = b.cfg.JavaBinary
	}
	out, err := exec.CommandContext(ctx, bin, "-version").CombinedOutput()
	if err != nil {
		b.logger.Warn("java version probe failed", "binary", bin, "error", err)
		return
	}
	major := provision.ParseJavaMajor(string(out))
	if major == 0 {
		return
	}
	if ok, required := provision.CheckJavaCompat(spec.Type, spec.Version, major); !ok {
		b.logger.Warn("java version may be too old for server version",
			"instance", spec.Name, "java", major, "required", required,
			"server_version", spec.Version)
	}
}

// javaArgs builds the launch command line from the stored record.
func javaArgs(rec *metadata.Record) []string {
	var args []string
	if rec.MinRAMMB > 0 {
		args = append(args, fmt.Sprintf("-Xms%dM", rec.MinRAMMB))
	}
	if rec.MaxRAMMB > 0 {
		args = append(args, fmt.Sprintf("-Xmx%dM", rec.MaxRAMMB))
	}
	args = append(args, rec.JavaArgs...)
	args = append(args, "-jar", provision.ArtifactName, "nogui")
	return args
}

// Start spawns the instance's java process detached in its own process
// group, appending output to the console log and reading stdin from the
// control pipe. Starting a running instance is a no-op.
func (b *Backend) Start(ctx context.Context, id string) (runtime.Status, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	dir := b.InstanceDir(id)
	rec, err := b.meta.Load(id)
	if err != nil {
		if errors.Is(err, metadata.ErrNoRecord) {
			return runtime.StatusNotFound, fmt.Errorf("%w: %s", runtime.ErrNotFound, id)
		}
		return runtime.StatusError, err
	}

	if pid, _ := readPIDFile(dir); pidAlive(pid) {
		return runtime.StatusRunning, nil
	}

	if err := provision.ValidateArtifact(filepath.Join(dir, provision.ArtifactName)); err != nil {
		return runtime.StatusError, &runtime.ProvisioningError{
			ServerType: rec.Type, Version: rec.Version, Err: err,
		}
	}

	logFile, err := os.OpenFile(filepath.Join(dir, consoleLogName),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return runtime.StatusError, fmt.Errorf("failed to open console log: %w", err)
	}

	pipe, err := openControlPipe(dir)
	if err != nil {
		_ = logFile.Close()
		return runtime.StatusError, err
	}

	bin := rec.JavaBinary
	if bin == "" {
		bin = b.cfg.JavaBinary
	}

	cmd := exec.Command(bin, javaArgs(rec)...)
	cmd.Dir = dir
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Stdin = pipe
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		_ = logFile.Close()
		_ = pipe.Close()
		return runtime.StatusError, fmt.Errorf("failed to start %s: %w", id, err)
	}

	pid := cmd.Process.Pid
	if err := writePIDFile(dir, pid); err != nil {
		b.logger.Warn("failed to persist pid file", "instance", id, "error", err)
	}
	b.logger.Info("instance started", "instance", id, "pid", pid)

	// Reap the child when it exits so it never lingers as a zombie, and
	// clear a pid file that still names it.
	go func() {
		_ = cmd.Wait()
		_ = logFile.Close()
		_ = pipe.Close()
		if stored, _ := readPIDFile(dir); stored == pid {
			removePIDFile(dir)
		}
		b.statsCache.Invalidate(id)
		b.listCache.Purge()
		b.logger.Info("instance exited", "instance", id, "pid", pid)
	}()

	b.listCache.Purge()
	return runtime.StatusRunning, nil
}

// openControlPipe creates (when missing) and opens the instance's stdin
// FIFO. Opening read-write means the open never blocks waiting for a
// writer and the pipe never reaches EOF between commands.
func openControlPipe(dir string) (*os.File, error) {
	path := filepath.Join(dir, controlPipeName)
	if err := syscall.Mkfifo(path, 0600); err != nil && !os.IsExist(err) {
		return nil, fmt.Errorf("failed to create control pipe: %w", err)
	}
	pipe, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open control pipe: %w", err)
	}
	return pipe, nil
}

// status derives the lifecycle state from on-disk evidence.
func (b *Backend) status(name string) runtime.Status {
	dir := b.InstanceDir(name)
	if _, err := os.Stat(dir); err != nil {
		return runtime.StatusNotFound
	}
	if pid, _ := readPIDFile(dir); pidAlive(pid) {
		return runtime.StatusRunning
	}
	if _, err := os.Stat(filepath.Join(dir, consoleLogName)); err == nil {
		return runtime.StatusStopped
	}
	return runtime.StatusCreated
}

// Stop performs a graceful shutdown: console stop command, liveness polling
// up to the deadline, then SIGTERM to the process group and SIGKILL as the
// last resort. Stopping a missing or stopped instance is a no-op.
func (b *Backend) Stop(ctx context.Context, id string, force bool) (runtime.Status, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stopLocked(ctx, id, force)
}

func (b *Backend) stopLocked(ctx context.Context, id string, force bool) (runtime.Status, error) {
	dir := b.InstanceDir(id)
	if _, err := os.Stat(dir); err != nil {
		return runtime.StatusNotFound, nil
	}

	pid, err := readPIDFile(dir)
	if err != nil {
		return runtime.StatusError, err
	}
	if !pidAlive(pid) {
		return b.status(id), nil
	}

	defer b.statsCache.Invalidate(id)
	defer b.listCache.Purge()

	if force {
		return b.killLocked(id, pid)
	}

	if _, err := b.dispatcher(id, dir).Dispatch(ctx, "stop"); err != nil {
		b.logger.Warn("stop command undeliverable, escalating to signals",
			"instance", id, "error", err)
		return b.terminate(ctx, id, pid)
	}

	running := func(ctx context.Context) (bool, error) {
		return pidAlive(pid), nil
	}
	if err := command.WaitForStop(ctx, running, b.cfg.StopDeadline); err != nil {
		b.logger.Warn("graceful stop timed out, escalating to signals",
			"instance", id, "deadline", b.cfg.StopDeadline)
		return b.terminate(ctx, id, pid)
	}

	removePIDFile(dir)
	return runtime.StatusStopped, nil
}

// terminate sends SIGTERM to the group, waits out the grace window, then
// SIGKILLs whatever survived.
func (b *Backend) terminate(ctx context.Context, id string, pid int) (runtime.Status, error) {
	if err := signalGroup(pid, syscall.SIGTERM); err != nil {
		b.logger.Debug("sigterm delivery failed", "instance", id, "error", err)
	}

	deadline := time.After(killGrace)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for pidAlive(pid) {
		select {
		case <-ctx.Done():
			return runtime.StatusStopping, ctx.Err()
		case <-deadline:
			return b.killLocked(id, pid)
		case <-ticker.C:
		}
	}

	removePIDFile(b.InstanceDir(id))
	return runtime.StatusStopped, nil
}

func (b *Backend) killLocked(id string, pid int) (runtime.Status, error) {
	if err := signalGroup(pid, syscall.SIGKILL); err != nil {
		return runtime.StatusError, err
	}
	removePIDFile(b.InstanceDir(id))
	b.statsCache.Invalidate(id)
	b.listCache.Purge()
	return runtime.StatusStopped, nil
}

func (b *Backend) Restart(ctx context.Context, id string) (runtime.Status, error) {
	if _, err := b.Stop(ctx, id, false); err != nil {
		return runtime.StatusError, err
	}
	return b.Start(ctx, id)
}

func (b *Backend) Kill(ctx context.Context, id string) (runtime.Status, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	dir := b.InstanceDir(id)
	if _, err := os.Stat(dir); err != nil {
		return runtime.StatusNotFound, nil
	}
	pid, err := readPIDFile(dir)
	if err != nil {
		return runtime.StatusError, err
	}
	if !pidAlive(pid) {
		return b.status(id), nil
	}
	return b.killLocked(id, pid)
}

// RemoveHandle clears the pid file after force-stopping any live process;
// for this backend the pid file is the only handle outside the data itself.
func (b *Backend) RemoveHandle(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	dir := b.InstanceDir(id)
	if pid, _ := readPIDFile(dir); pidAlive(pid) {
		if _, err := b.killLocked(id, pid); err != nil {
			return err
		}
	}
	removePIDFile(dir)
	b.listCache.Purge()
	return nil
}

// Delete force-stops a running instance, then removes the instance
// directory (symlink-safe). Deleting a missing instance is idempotent
// success.
func (b *Backend) Delete(ctx context.Context, id string) (runtime.DeleteResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	res := runtime.DeleteResult{}
	dir := b.InstanceDir(id)

	if pid, _ := readPIDFile(dir); pidAlive(pid) {
		if _, err := b.killLocked(id, pid); err != nil {
			return res, err
		}
	}

	removed, err := runtime.RemoveInstanceDir(b.cfg.DataDir, dir)
	if err != nil {
		return res, err
	}
	res.Deleted = removed
	res.DirRemoved = removed
	b.statsCache.Invalidate(id)
	b.listCache.Purge()
	return res, nil
}

// List scans the data directory, serving a short-lived cached snapshot so
// dashboard polling does not re-stat every pid on each call.
func (b *Backend) List(ctx context.Context) ([]runtime.ServerInstance, error) {
	return b.listCache.GetOrFill("all", func() ([]runtime.ServerInstance, error) {
		entries, err := os.ReadDir(b.cfg.DataDir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("failed to scan data directory: %w", err)
		}

		var instances []runtime.ServerInstance
		for _, e := range entries {
			if !e.IsDir() && e.Type()&os.ModeSymlink == 0 {
				continue
			}
			rec, err := b.meta.Load(e.Name())
			if err != nil {
				// Directories without a sidecar are not ours.
				continue
			}
			instances = append(instances, b.instanceFromRecord(rec))
		}
		return instances, nil
	})
}

func (b *Backend) Get(ctx context.Context, id string) (*runtime.ServerInstance, error) {
	rec, err := b.meta.Load(id)
	if err != nil {
		if errors.Is(err, metadata.ErrNoRecord) {
			return nil, fmt.Errorf("%w: %s", runtime.ErrNotFound, id)
		}
		return nil, err
	}
	inst := b.instanceFromRecord(rec)
	return &inst, nil
}

func (b *Backend) instanceFromRecord(rec *metadata.Record) runtime.ServerInstance {
	inst := runtime.ServerInstance{
		ID:            rec.Name,
		Name:          rec.Name,
		Backend:       runtime.BackendProcess,
		Status:        b.status(rec.Name),
		Type:          rec.Type,
		Version:       rec.Version,
		LoaderVersion: rec.LoaderVersion,
		Resources:     runtime.ResourceLimits{MinRAMMB: rec.MinRAMMB, MaxRAMMB: rec.MaxRAMMB},
		Java: runtime.JavaConfig{
			Version:    rec.JavaVersion,
			BinaryPath: rec.JavaBinary,
			ExtraArgs:  rec.JavaArgs,
		},
		Labels:    rec.Labels,
		CreatedAt: rec.CreatedAt,
	}
	if rec.HostPort > 0 {
		inst.Ports = []runtime.PortBinding{{
			ContainerPort: rec.HostPort,
			HostPort:      rec.HostPort,
			Protocol:      "tcp",
			Primary:       true,
		}}
	}
	return inst
}

// Logs returns the last tail lines of the instance's console log.
func (b *Backend) Logs(ctx context.Context, id string, tail int) (string, error) {
	dir := b.InstanceDir(id)
	if _, err := os.Stat(dir); err != nil {
		return "", fmt.Errorf("%w: %s", runtime.ErrNotFound, id)
	}
	path := filepath.Join(dir, consoleLogName)
	if _, err := os.Stat(path); err != nil {
		return "", nil
	}
	return tailFile(path, tail)
}

// SendCommand delivers a console command through the fallback chain:
// RCON, control pipe, init stdin, PID-targeted stdin.
func (b *Backend) SendCommand(ctx context.Context, id, cmd string) (string, error) {
	dir := b.InstanceDir(id)
	if _, err := os.Stat(dir); err != nil {
		return "", fmt.Errorf("%w: %s", runtime.ErrNotFound, id)
	}
	if pid, _ := readPIDFile(dir); !pidAlive(pid) {
		return "", fmt.Errorf("instance %s is not running", id)
	}

	res, err := b.dispatcher(id, dir).Dispatch(ctx, cmd)
	if err != nil {
		return "", err
	}
	return res.Output, nil
}

// dispatcher builds the per-instance fallback chain.
func (b *Backend) dispatcher(id, dir string) *command.Dispatcher {
	env := func(ctx context.Context) (map[string]string, error) {
		return b.rconEnv(id, dir), nil
	}
	pid := func(ctx context.Context) (int, error) {
		p, err := readPIDFile(dir)
		if err != nil {
			return 0, err
		}
		if !pidAlive(p) {
			return 0, fmt.Errorf("instance %s has no live process", id)
		}
		return p, nil
	}

	return command.NewDispatcher(
		&command.RCONChannel{Env: env},
		command.NewStreamChannel("control-pipe", func(ctx context.Context, cmd string) (string, error) {
			return "", writeControlPipe(dir, cmd)
		}),
		&command.InitStdinChannel{PID: pid},
		&command.PIDStdinChannel{RootPID: pid},
	)
}

// rconEnv assembles the RCON settings from the metadata record, falling
// back to what server.properties actually says.
func (b *Backend) rconEnv(id, dir string) map[string]string {
	env := make(map[string]string)
	if rec, err := b.meta.Load(id); err == nil {
		for _, key := range []string{"ENABLE_RCON", "RCON_PASSWORD", "RCON_PORT"} {
			if v := rec.EnvOverrides[key]; v != "" {
				env[key] = v
			}
		}
	}
	if env["ENABLE_RCON"] == "" && readServerProperty(dir, "enable-rcon") == "true" {
		env["ENABLE_RCON"] = "true"
		if env["RCON_PASSWORD"] == "" {
			env["RCON_PASSWORD"] = readServerProperty(dir, "rcon.password")
		}
		if env["RCON_PORT"] == "" {
			env["RCON_PORT"] = readServerProperty(dir, "rcon.port")
		}
	}
	return env
}

// writeControlPipe pushes a command into the instance's stdin FIFO.
// Opening non-blocking write-only fails fast when no reader holds the pipe.
func writeControlPipe(dir, cmd string) error {
	path := filepath.Join(dir, controlPipeName)
	f, err := os.OpenFile(path, os.O_WRONLY|syscall.O_NONBLOCK, 0)
	if err != nil {
		return fmt.Errorf("control pipe unavailable: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(cmd + "\n"); err != nil {
		return fmt.Errorf("control pipe write failed: %w", err)
	}
	return nil
}

// sampleStats sums CPU and RSS over the instance's process tree.
func (b *Backend) sampleStats(ctx context.Context, id string) (*runtime.ResourceUsage, error) {
	dir := b.InstanceDir(id)
	pid, err := readPIDFile(dir)
	if err != nil {
		return nil, err
	}
	if !pidAlive(pid) {
		return nil, fmt.Errorf("instance %s is not running", id)
	}

	var memLimit uint64
	if rec, err := b.meta.Load(id); err == nil && rec.MaxRAMMB > 0 {
		memLimit = uint64(rec.MaxRAMMB) * 1024 * 1024
	}
	return stats.SampleProcessTree(ctx, pid, memLimit)
}

func (b *Backend) Stats(ctx context.Context, id string) (*runtime.ResourceUsage, error) {
	return b.statsCache.Get(ctx, id)
}

// StatsAll samples every running instance; per-instance failures are
// logged and skipped.
func (b *Backend) StatsAll(ctx context.Context) (map[string]*runtime.ResourceUsage, error) {
	list, err := b.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*runtime.ResourceUsage)
	for _, inst := range list {
		if inst.Status != runtime.StatusRunning {
			continue
		}
		usage, err := b.statsCache.Get(ctx, inst.Name)
		if err != nil {
			b.logger.Debug("stats sample failed", "instance", inst.Name, "error", err)
			continue
		}
		out[inst.Name] = usage
	}
	return out, nil
}

func isTruthyEnv(v string) bool {
	switch v {
	case "true", "TRUE", "1", "yes", "on":
		return true
	default:
		return false
	}
}
