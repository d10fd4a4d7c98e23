package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/craftd/craftd/internal/logging"
	"github.com/craftd/craftd/internal/runtime/metadata"
)

// Manager drives the multi-step flows that span a backend and the metadata
// store: renaming an instance and recreating it in place. Single-step
// operations go straight to the backend.
type Manager struct {
	backend Backend
	meta    *metadata.Store
	dataDir string
	logger  *slog.Logger
}

func NewManager(backend Backend, dataDir string) *Manager {
	return &Manager{
		backend: backend,
		meta:    metadata.NewStore(dataDir),
		dataDir: dataDir,
		logger:  logging.ForComponent("manager"),
	}
}

// Backend exposes the managed backend for single-step operations.
func (m *Manager) Backend() Backend { return m.backend }

// Rename moves an instance to a new name: capture settings, stop and remove
// the old handle (best effort), rename the directory, rewrite the metadata
// record with the old name appended to the naming history, and recreate
// under the new name. The target name is checked before anything is stopped
// or moved.
func (m *Manager) Rename(ctx context.Context, oldName, newName string) (*ServerInstance, error) {
	if newName == "" {
		return nil, fmt.Errorf("new instance name is required")
	}
	if newName == oldName {
		return nil, fmt.Errorf("instance is already named %s", oldName)
	}

	// Pre-flight: refuse before any state is mutated.
	if _, err := os.Stat(m.backend.InstanceDir(newName)); err == nil {
		return nil, fmt.Errorf("instance directory %s already exists", newName)
	}
	if _, err := m.backend.Get(ctx, newName); err == nil {
		return nil, fmt.Errorf("instance %s already exists", newName)
	} else if !IsNotFound(err) {
		return nil, err
	}

	oldDir := m.backend.InstanceDir(oldName)
	if _, err := os.Stat(oldDir); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, oldName)
	}

	if _, err := m.backend.Stop(ctx, oldName, false); err != nil {
		m.logger.Warn("stop before rename failed, continuing",
			"instance", oldName, "error", err)
	}
	if err := m.backend.RemoveHandle(ctx, oldName); err != nil {
		m.logger.Warn("handle removal before rename failed, continuing",
			"instance", oldName, "error", err)
	}

	if err := os.Rename(oldDir, m.backend.InstanceDir(newName)); err != nil {
		return nil, fmt.Errorf("failed to rename instance directory: %w", err)
	}

	// The sidecar travelled with the directory; rewrite it under the new
	// name and record where it came from.
	if _, err := m.meta.Rename(oldName, newName); err != nil {
		return nil, err
	}

	inst, err := m.backend.CreateFromExisting(ctx, newName, CreateSpec{})
	if err != nil {
		return nil, fmt.Errorf("failed to recreate %s after rename: %w", newName, err)
	}
	m.logger.Info("instance renamed", "from", oldName, "to", newName)
	return inst, nil
}

// Recreate tears down the instance's handle and rebuilds it over the same
// data directory, applying the supplied spec on top of the stored record.
// This is the only way settings baked in at creation time (Java binary,
// RAM limits, environment) take effect.
func (m *Manager) Recreate(ctx context.Context, name string, spec CreateSpec) (*ServerInstance, error) {
	if _, err := os.Stat(m.backend.InstanceDir(name)); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	if _, err := m.backend.Stop(ctx, name, false); err != nil {
		m.logger.Warn("stop before recreate failed, continuing",
			"instance", name, "error", err)
	}
	if err := m.backend.RemoveHandle(ctx, name); err != nil {
		return nil, err
	}

	inst, err := m.backend.CreateFromExisting(ctx, name, spec)
	if err != nil {
		return nil, err
	}
	m.logger.Info("instance recreated", "instance", name)
	return inst, nil
}
