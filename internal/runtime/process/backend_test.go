package process

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"syscall"
	"testing"

	"github.com/craftd/craftd/internal/runtime"
	"github.com/craftd/craftd/internal/runtime/metadata"
	"github.com/craftd/craftd/internal/runtime/ports"
)

func TestPIDFileRoundTrip(t *testing.T) {
	dir := t.TempDir()

	if pid, err := readPIDFile(dir); err != nil || pid != 0 {
		t.Fatalf("expected 0 pid for missing file, got %d err %v", pid, err)
	}

	if err := writePIDFile(dir, 4242); err != nil {
		t.Fatalf("writePIDFile failed: %v", err)
	}
	pid, err := readPIDFile(dir)
	if err != nil {
		t.Fatalf("readPIDFile failed: %v", err)
	}
	if pid != 4242 {
		t.Errorf("expected pid 4242, got %d", pid)
	}

	removePIDFile(dir)
	if pid, _ := readPIDFile(dir); pid != 0 {
		t.Errorf("expected pid file removed, got %d", pid)
	}
}

func TestReadPIDFileCorrupt(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(pidFilePath(dir), []byte("not-a-pid"), 0644); err != nil {
		t.Fatalf("failed to seed pid file: %v", err)
	}
	if _, err := readPIDFile(dir); err == nil {
		t.Error("expected error for corrupt pid file")
	}
}

func TestPIDAlive(t *testing.T) {
	if !pidAlive(os.Getpid()) {
		t.Error("own pid should be alive")
	}
	if pidAlive(0) || pidAlive(-1) {
		t.Error("non-positive pids are never alive")
	}
}

func TestJavaArgs(t *testing.T) {
	rec := &metadata.Record{
		MinRAMMB: 1024,
		MaxRAMMB: 4096,
		JavaArgs: []string{"-XX:+UseG1GC"},
	}
	got := javaArgs(rec)
	want := []string{"-Xms1024M", "-Xmx4096M", "-XX:+UseG1GC", "-jar", "server.jar", "nogui"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("javaArgs = %v, want %v", got, want)
	}
}

func TestJavaArgsNoLimits(t *testing.T) {
	got := javaArgs(&metadata.Record{})
	want := []string{"-jar", "server.jar", "nogui"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("javaArgs = %v, want %v", got, want)
	}
}

func TestStatusDerivation(t *testing.T) {
	b := New(Config{DataDir: t.TempDir()}, nil)

	if got := b.status("ghost"); got != runtime.StatusNotFound {
		t.Errorf("missing dir: expected not_found, got %s", got)
	}

	dir := b.InstanceDir("fresh")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if got := b.status("fresh"); got != runtime.StatusCreated {
		t.Errorf("fresh dir: expected created, got %s", got)
	}

	if err := os.WriteFile(filepath.Join(dir, consoleLogName), []byte("done\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if got := b.status("fresh"); got != runtime.StatusStopped {
		t.Errorf("dead instance with log: expected stopped, got %s", got)
	}

	if err := writePIDFile(dir, os.Getpid()); err != nil {
		t.Fatal(err)
	}
	if got := b.status("fresh"); got != runtime.StatusRunning {
		t.Errorf("live pid: expected running, got %s", got)
	}
}

func TestUsedPortsFromRecords(t *testing.T) {
	dataDir := t.TempDir()
	b := New(Config{DataDir: dataDir}, nil)
	store := metadata.NewStore(dataDir)

	if err := store.Save("alpha", &metadata.Record{Type: "paper", Version: "1.21.1", HostPort: 25565}); err != nil {
		t.Fatal(err)
	}
	if err := store.Save("beta", &metadata.Record{Type: "paper", Version: "1.21.1", HostPort: 25566}); err != nil {
		t.Fatal(err)
	}
	// A stray directory without a sidecar is not a managed instance.
	if err := os.MkdirAll(filepath.Join(dataDir, "stray"), 0755); err != nil {
		t.Fatal(err)
	}

	used, err := b.usedPorts()
	if err != nil {
		t.Fatalf("usedPorts failed: %v", err)
	}
	if !used[25565] || !used[25566] {
		t.Errorf("expected 25565 and 25566 used, got %v", used)
	}
	if len(used) != 2 {
		t.Errorf("expected exactly 2 used ports, got %v", used)
	}
}

func TestCreateFallsBackWhenPreferredPortTaken(t *testing.T) {
	dataDir := t.TempDir()
	b := New(Config{DataDir: dataDir, PortRangeStart: 25565, PortRangeEnd: 25600}, nil)
	// Record-based allocation only, so the host's actual port state cannot
	// skew the result.
	b.alloc = ports.New(b.usedPorts)

	first, err := b.Create(context.Background(), runtime.CreateSpec{
		Name: "alpha", Type: "paper", Version: "1.21.1", HostPort: 25565,
	})
	if err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if first.PrimaryPort() != 25565 {
		t.Fatalf("expected 25565 for first create, got %d", first.PrimaryPort())
	}

	second, err := b.Create(context.Background(), runtime.CreateSpec{
		Name: "beta", Type: "paper", Version: "1.21.1", HostPort: 25565,
	})
	if err != nil {
		t.Fatalf("second create failed: %v", err)
	}
	if second.PrimaryPort() != 25566 {
		t.Errorf("expected fallback to 25566, got %d", second.PrimaryPort())
	}
}

func TestListAndGet(t *testing.T) {
	dataDir := t.TempDir()
	b := New(Config{DataDir: dataDir}, nil)
	store := metadata.NewStore(dataDir)

	if err := store.Save("alpha", &metadata.Record{
		Type: "fabric", Version: "1.20.4", HostPort: 25565, MaxRAMMB: 2048,
	}); err != nil {
		t.Fatal(err)
	}

	list, err := b.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 instance, got %d", len(list))
	}
	if list[0].Name != "alpha" || list[0].Status != runtime.StatusCreated {
		t.Errorf("unexpected instance %+v", list[0])
	}
	if list[0].PrimaryPort() != 25565 {
		t.Errorf("expected primary port 25565, got %d", list[0].PrimaryPort())
	}

	inst, err := b.Get(context.Background(), "alpha")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if inst.Resources.MaxRAMMB != 2048 {
		t.Errorf("expected max ram 2048, got %d", inst.Resources.MaxRAMMB)
	}

	if _, err := b.Get(context.Background(), "ghost"); !runtime.IsNotFound(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestListServesCachedSnapshot(t *testing.T) {
	dataDir := t.TempDir()
	b := New(Config{DataDir: dataDir}, nil)
	store := metadata.NewStore(dataDir)

	if err := store.Save("alpha", &metadata.Record{Type: "paper", Version: "1.21.1"}); err != nil {
		t.Fatal(err)
	}
	list, err := b.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 instance, got %d", len(list))
	}

	// A record written behind the cache's back stays invisible until the
	// TTL lapses or a lifecycle operation purges the snapshot.
	if err := store.Save("beta", &metadata.Record{Type: "paper", Version: "1.21.1"}); err != nil {
		t.Fatal(err)
	}
	list, err = b.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("expected cached snapshot of 1 instance, got %d", len(list))
	}

	b.listCache.Purge()
	list, err = b.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("expected fresh scan of 2 instances, got %d", len(list))
	}
}

func TestStopMissingInstanceIsIdempotent(t *testing.T) {
	b := New(Config{DataDir: t.TempDir()}, nil)

	status, err := b.Stop(context.Background(), "ghost", false)
	if err != nil {
		t.Fatalf("Stop returned error for missing instance: %v", err)
	}
	if status != runtime.StatusNotFound {
		t.Errorf("expected not_found, got %s", status)
	}
}

func TestDeleteMissingInstanceIsIdempotent(t *testing.T) {
	b := New(Config{DataDir: t.TempDir()}, nil)

	res, err := b.Delete(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("Delete returned error for missing instance: %v", err)
	}
	if res.Deleted || res.DirRemoved {
		t.Errorf("expected nothing removed, got %+v", res)
	}
}

func TestDeleteRemovesDirectory(t *testing.T) {
	dataDir := t.TempDir()
	b := New(Config{DataDir: dataDir}, nil)
	store := metadata.NewStore(dataDir)
	if err := store.Save("alpha", &metadata.Record{Type: "paper", Version: "1.21.1"}); err != nil {
		t.Fatal(err)
	}

	res, err := b.Delete(context.Background(), "alpha")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !res.Deleted || !res.DirRemoved {
		t.Errorf("expected full removal, got %+v", res)
	}
	if _, err := os.Stat(b.InstanceDir("alpha")); !os.IsNotExist(err) {
		t.Error("instance directory still present")
	}
}

func TestControlPipeRoundTrip(t *testing.T) {
	dir := t.TempDir()

	pipe, err := openControlPipe(dir)
	if err != nil {
		t.Fatalf("openControlPipe failed: %v", err)
	}
	defer pipe.Close()

	if err := writeControlPipe(dir, "say hello"); err != nil {
		t.Fatalf("writeControlPipe failed: %v", err)
	}

	buf := make([]byte, 64)
	n, err := pipe.Read(buf)
	if err != nil {
		t.Fatalf("pipe read failed: %v", err)
	}
	if string(buf[:n]) != "say hello\n" {
		t.Errorf("expected newline-terminated command, got %q", buf[:n])
	}
}

func TestWriteControlPipeWithoutReader(t *testing.T) {
	dir := t.TempDir()
	if err := syscall.Mkfifo(filepath.Join(dir, controlPipeName), 0600); err != nil {
		t.Fatalf("mkfifo failed: %v", err)
	}

	if err := writeControlPipe(dir, "stop"); err == nil {
		t.Error("expected error writing to pipe with no reader")
	}
}
