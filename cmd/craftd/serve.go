package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/craftd/craftd/internal/config"
	"github.com/craftd/craftd/internal/history"
	"github.com/craftd/craftd/internal/logging"
	"github.com/craftd/craftd/internal/provision"
	"github.com/craftd/craftd/internal/runtime"
	"github.com/craftd/craftd/internal/runtime/docker"
	"github.com/craftd/craftd/internal/runtime/process"
	"github.com/craftd/craftd/internal/schedule"
)

// sampleInterval is how often the monitor loop records resource samples.
const sampleInterval = time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the craftd daemon",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	logger, err := logging.Init(cfg.Logging.Options())
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Close()

	backend, cleanup, err := newBackend(cfg)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	var recorder *history.Recorder
	if cfg.History.Enabled {
		recorder, err = history.Open(cfg.History.Path)
		if err != nil {
			return err
		}
		defer recorder.Close()
	}

	scheduler := schedule.New(backend)
	for _, task := range cfg.Tasks {
		if _, err := scheduler.Add(task); err != nil {
			return err
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go monitor(ctx, backend, recorder, cfg.History.RetentionDays)

	logger.Info("craftd started",
		"backend", backend.Kind(), "version", version, "data_dir", cfg.Storage.DataDir)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	logger.Info("shutting down", "signal", s.String())
	return nil
}

// newBackend builds the configured backend and returns a cleanup func for
// any held connections.
func newBackend(cfg *config.Config) (runtime.Backend, func(), error) {
	dataDir, err := cfg.DataDir()
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	var prov provision.Provisioner
	if cfg.Provision.Command != "" {
		prov = provision.NewScriptProvisioner(cfg.Provision.Command)
	}

	switch cfg.Runtime.Backend {
	case "container":
		client, err := docker.NewClient(cfg.Docker.Host)
		if err != nil {
			return nil, nil, err
		}
		backend := docker.New(client, docker.Config{
			Image:           cfg.Docker.Image,
			DataDir:         dataDir,
			UseNamedVolumes: cfg.Docker.UseNamedVolumes,
			NetworkMode:     cfg.Docker.NetworkMode,
			PortRangeStart:  cfg.Runtime.PortRangeStart,
			PortRangeEnd:    cfg.Runtime.PortRangeEnd,
			StopDeadline:    cfg.Runtime.StopDeadline(),
			StatsTTL:        cfg.Runtime.StatsTTL(),
		}, prov)
		return backend, func() { _ = client.Close() }, nil

	case "process":
		backend := process.New(process.Config{
			DataDir:        dataDir,
			JavaBinary:     cfg.Runtime.JavaBinary,
			PortRangeStart: cfg.Runtime.PortRangeStart,
			PortRangeEnd:   cfg.Runtime.PortRangeEnd,
			StopDeadline:   cfg.Runtime.StopDeadline(),
			StatsTTL:       cfg.Runtime.StatsTTL(),
		}, prov)
		return backend, nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown runtime backend %q", cfg.Runtime.Backend)
	}
}

// monitor periodically records instance status and resource samples into
// the history database and prunes old rows. A nil recorder reduces this to
// a no-op loop.
func monitor(ctx context.Context, backend runtime.Backend, recorder *history.Recorder, retentionDays int) {
	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()

	lastStatus := make(map[string]runtime.Status)
	retention := time.Duration(retentionDays) * 24 * time.Hour

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		instances, err := backend.List(ctx)
		if err != nil {
			logging.L().Warn("monitor list failed", "error", err)
			continue
		}
		for _, inst := range instances {
			if lastStatus[inst.Name] != inst.Status {
				lastStatus[inst.Name] = inst.Status
				if err := recorder.RecordStatus(inst.Name, inst.Status); err != nil {
					logging.L().Warn("status record failed", "instance", inst.Name, "error", err)
				}
			}
		}

		usage, err := backend.StatsAll(ctx)
		if err != nil {
			logging.L().Warn("monitor stats failed", "error", err)
			continue
		}
		for name, sample := range usage {
			if err := recorder.RecordSample(name, sample); err != nil {
				logging.L().Warn("sample record failed", "instance", name, "error", err)
			}
		}

		if retention > 0 {
			if err := recorder.Cleanup(retention); err != nil {
				logging.L().Warn("history cleanup failed", "error", err)
			}
		}
	}
}
