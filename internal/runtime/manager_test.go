package runtime

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/craftd/craftd/internal/runtime/metadata"
)

// fakeBackend records lifecycle calls and serves instances from a map.
type fakeBackend struct {
	dataDir   string
	instances map[string]*ServerInstance

	stopped     []string
	removed     []string
	createdFrom []string
	lastSpec    CreateSpec
}

func newFakeBackend(dataDir string) *fakeBackend {
	return &fakeBackend{dataDir: dataDir, instances: map[string]*ServerInstance{}}
}

func (f *fakeBackend) Kind() BackendKind { return BackendProcess }

func (f *fakeBackend) Create(ctx context.Context, spec CreateSpec) (*ServerInstance, error) {
	inst := &ServerInstance{ID: spec.Name, Name: spec.Name, Status: StatusCreated}
	f.instances[spec.Name] = inst
	return inst, nil
}

func (f *fakeBackend) CreateFromExisting(ctx context.Context, name string, spec CreateSpec) (*ServerInstance, error) {
	f.createdFrom = append(f.createdFrom, name)
	f.lastSpec = spec
	inst := &ServerInstance{ID: name, Name: name, Status: StatusCreated}
	f.instances[name] = inst
	return inst, nil
}

func (f *fakeBackend) Start(ctx context.Context, id string) (Status, error) {
	return StatusRunning, nil
}

func (f *fakeBackend) Stop(ctx context.Context, id string, force bool) (Status, error) {
	f.stopped = append(f.stopped, id)
	return StatusStopped, nil
}

func (f *fakeBackend) Restart(ctx context.Context, id string) (Status, error) {
	return StatusRunning, nil
}

func (f *fakeBackend) Kill(ctx context.Context, id string) (Status, error) {
	return StatusStopped, nil
}

func (f *fakeBackend) Delete(ctx context.Context, id string) (DeleteResult, error) {
	delete(f.instances, id)
	return DeleteResult{Deleted: true}, nil
}

func (f *fakeBackend) RemoveHandle(ctx context.Context, id string) error {
	f.removed = append(f.removed, id)
	delete(f.instances, id)
	return nil
}

func (f *fakeBackend) List(ctx context.Context) ([]ServerInstance, error) {
	var out []ServerInstance
	for _, inst := range f.instances {
		out = append(out, *inst)
	}
	return out, nil
}

func (f *fakeBackend) Get(ctx context.Context, id string) (*ServerInstance, error) {
	if inst, ok := f.instances[id]; ok {
		return inst, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (f *fakeBackend) Logs(ctx context.Context, id string, tail int) (string, error) {
	return "", nil
}

func (f *fakeBackend) SendCommand(ctx context.Context, id, command string) (string, error) {
	return "", nil
}

func (f *fakeBackend) Stats(ctx context.Context, id string) (*ResourceUsage, error) {
	return &ResourceUsage{}, nil
}

func (f *fakeBackend) StatsAll(ctx context.Context) (map[string]*ResourceUsage, error) {
	return nil, nil
}

func (f *fakeBackend) InstanceDir(name string) string {
	return filepath.Join(f.dataDir, name)
}

func seedInstance(t *testing.T, f *fakeBackend, name string, rec *metadata.Record) {
	t.Helper()
	store := metadata.NewStore(f.dataDir)
	if err := store.Save(name, rec); err != nil {
		t.Fatalf("failed to seed %s: %v", name, err)
	}
	f.instances[name] = &ServerInstance{ID: name, Name: name, Status: StatusRunning}
}

func TestRenameHappyPath(t *testing.T) {
	dataDir := t.TempDir()
	fb := newFakeBackend(dataDir)
	m := NewManager(fb, dataDir)
	seedInstance(t, fb, "oldname", &metadata.Record{
		Type: "paper", Version: "1.21.1", HostPort: 25570,
		EnvOverrides: map[string]string{"MOTD": "hello"},
	})

	inst, err := m.Rename(context.Background(), "oldname", "newname")
	if err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if inst.Name != "newname" {
		t.Errorf("expected instance named newname, got %s", inst.Name)
	}

	if len(fb.stopped) != 1 || fb.stopped[0] != "oldname" {
		t.Errorf("expected oldname stopped, got %v", fb.stopped)
	}
	if len(fb.removed) != 1 || fb.removed[0] != "oldname" {
		t.Errorf("expected oldname handle removed, got %v", fb.removed)
	}
	if len(fb.createdFrom) != 1 || fb.createdFrom[0] != "newname" {
		t.Errorf("expected recreate under newname, got %v", fb.createdFrom)
	}

	if _, err := os.Stat(filepath.Join(dataDir, "oldname")); !os.IsNotExist(err) {
		t.Error("old directory still present")
	}

	rec, err := metadata.NewStore(dataDir).Load("newname")
	if err != nil {
		t.Fatalf("failed to load renamed record: %v", err)
	}
	if rec.Name != "newname" {
		t.Errorf("record name = %s, want newname", rec.Name)
	}
	if len(rec.PreviousNames) != 1 || rec.PreviousNames[0] != "oldname" {
		t.Errorf("previous names = %v, want [oldname]", rec.PreviousNames)
	}
	if rec.HostPort != 25570 {
		t.Errorf("host port not preserved, got %d", rec.HostPort)
	}
	if rec.EnvOverrides["MOTD"] != "hello" {
		t.Errorf("env overrides not preserved, got %v", rec.EnvOverrides)
	}
}

func TestRenameTargetExistsFailsBeforeAnyMutation(t *testing.T) {
	dataDir := t.TempDir()
	fb := newFakeBackend(dataDir)
	m := NewManager(fb, dataDir)
	seedInstance(t, fb, "oldname", &metadata.Record{Type: "paper", Version: "1.21.1"})
	seedInstance(t, fb, "taken", &metadata.Record{Type: "paper", Version: "1.21.1"})

	if _, err := m.Rename(context.Background(), "oldname", "taken"); err == nil {
		t.Fatal("expected rename to an existing name to fail")
	}

	if len(fb.stopped) != 0 {
		t.Errorf("nothing should be stopped on pre-flight failure, got %v", fb.stopped)
	}
	if len(fb.removed) != 0 {
		t.Errorf("nothing should be removed on pre-flight failure, got %v", fb.removed)
	}
	if _, err := os.Stat(filepath.Join(dataDir, "oldname")); err != nil {
		t.Error("source directory should be untouched")
	}
}

func TestRenameMissingSource(t *testing.T) {
	dataDir := t.TempDir()
	m := NewManager(newFakeBackend(dataDir), dataDir)

	if _, err := m.Rename(context.Background(), "ghost", "newname"); !IsNotFound(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestRenameSameName(t *testing.T) {
	dataDir := t.TempDir()
	m := NewManager(newFakeBackend(dataDir), dataDir)

	if _, err := m.Rename(context.Background(), "same", "same"); err == nil {
		t.Error("expected renaming to the same name to fail")
	}
}

func TestRecreateAppliesSpecOverStoredRecord(t *testing.T) {
	dataDir := t.TempDir()
	fb := newFakeBackend(dataDir)
	m := NewManager(fb, dataDir)
	seedInstance(t, fb, "alpha", &metadata.Record{Type: "fabric", Version: "1.20.4"})

	spec := CreateSpec{Env: map[string]string{"MAX_PLAYERS": "40"}}
	inst, err := m.Recreate(context.Background(), "alpha", spec)
	if err != nil {
		t.Fatalf("Recreate failed: %v", err)
	}
	if inst.Name != "alpha" {
		t.Errorf("expected alpha, got %s", inst.Name)
	}

	if len(fb.stopped) != 1 || len(fb.removed) != 1 {
		t.Errorf("expected one stop and one handle removal, got %v / %v", fb.stopped, fb.removed)
	}
	if fb.lastSpec.Env["MAX_PLAYERS"] != "40" {
		t.Errorf("spec env not passed through, got %v", fb.lastSpec.Env)
	}
}

func TestRecreateMissingInstance(t *testing.T) {
	dataDir := t.TempDir()
	m := NewManager(newFakeBackend(dataDir), dataDir)

	if _, err := m.Recreate(context.Background(), "ghost", CreateSpec{}); !IsNotFound(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
}
