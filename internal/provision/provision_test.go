package provision

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/craftd/craftd/internal/runtime"
)

// fakeProvisioner records calls and optionally writes a valid artifact.
type fakeProvisioner struct {
	calls  int
	repair bool
	err    error
}

func (f *fakeProvisioner) PrepareFiles(ctx context.Context, serverType, version, dir, loaderVersion, installerVersion string) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	if f.repair {
		return writeValidArtifact(dir)
	}
	return nil
}

func writeValidArtifact(dir string) error {
	data := make([]byte, MinArtifactSize+512)
	copy(data, []byte{'P', 'K', 0x03, 0x04})
	return os.WriteFile(filepath.Join(dir, ArtifactName), data, 0644)
}

func TestValidateArtifactAcceptsValidJar(t *testing.T) {
	dir := t.TempDir()
	if err := writeValidArtifact(dir); err != nil {
		t.Fatalf("fixture failed: %v", err)
	}
	if err := ValidateArtifact(filepath.Join(dir, ArtifactName)); err != nil {
		t.Fatalf("expected valid artifact, got %v", err)
	}
}

func TestValidateArtifactRejectsTinyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ArtifactName)
	if err := os.WriteFile(path, []byte("PK tiny jar"), 0644); err != nil {
		t.Fatalf("fixture failed: %v", err)
	}
	if err := ValidateArtifact(path); err == nil {
		t.Fatalf("expected size check to fail")
	}
}

func TestValidateArtifactRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ArtifactName)
	data := bytes.Repeat([]byte{'X'}, MinArtifactSize+1)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("fixture failed: %v", err)
	}
	if err := ValidateArtifact(path); err == nil {
		t.Fatalf("expected magic byte check to fail")
	}
}

func TestValidateArtifactMissing(t *testing.T) {
	if err := ValidateArtifact(filepath.Join(t.TempDir(), ArtifactName)); err == nil {
		t.Fatalf("expected missing artifact error")
	}
}

func TestEnsureArtifactsRepairsOnce(t *testing.T) {
	dir := t.TempDir()
	// A 10-byte server.jar fails both the size and magic checks.
	if err := os.WriteFile(filepath.Join(dir, ArtifactName), []byte("0123456789"), 0644); err != nil {
		t.Fatalf("fixture failed: %v", err)
	}

	p := &fakeProvisioner{repair: true}
	if err := EnsureArtifacts(context.Background(), p, "PAPER", "1.20.4", "", dir); err != nil {
		t.Fatalf("expected repair to succeed, got %v", err)
	}
	if p.calls != 1 {
		t.Fatalf("expected exactly one repair attempt, got %d", p.calls)
	}
}

func TestEnsureArtifactsFatalWhenRepairFails(t *testing.T) {
	dir := t.TempDir()
	p := &fakeProvisioner{err: errors.New("upstream 404")}

	err := EnsureArtifacts(context.Background(), p, "PAPER", "1.20.4", "", dir)
	if err == nil {
		t.Fatalf("expected provisioning error")
	}
	var provErr *runtime.ProvisioningError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProvisioningError, got %T: %v", err, err)
	}
	if provErr.ServerType != "PAPER" || provErr.Version != "1.20.4" {
		t.Fatalf("error should carry provisioning identity: %v", provErr)
	}
	if p.calls != 1 {
		t.Fatalf("expected exactly one repair attempt, got %d", p.calls)
	}
}

func TestEnsureArtifactsFatalWhenRepairProducesGarbage(t *testing.T) {
	dir := t.TempDir()
	p := &fakeProvisioner{} // "succeeds" but writes nothing

	err := EnsureArtifacts(context.Background(), p, "FORGE", "1.12.2", "", dir)
	var provErr *runtime.ProvisioningError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProvisioningError, got %v", err)
	}
	if p.calls != 1 {
		t.Fatalf("expected exactly one repair attempt, got %d", p.calls)
	}
}

func TestEnsureArtifactsSkipsRepairWhenValid(t *testing.T) {
	dir := t.TempDir()
	if err := writeValidArtifact(dir); err != nil {
		t.Fatalf("fixture failed: %v", err)
	}
	p := &fakeProvisioner{}
	if err := EnsureArtifacts(context.Background(), p, "PAPER", "1.20.4", "", dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.calls != 0 {
		t.Fatalf("expected no repair attempts, got %d", p.calls)
	}
}

func TestAcceptEULA(t *testing.T) {
	dir := t.TempDir()
	if err := AcceptEULA(dir); err != nil {
		t.Fatalf("accept eula failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "eula.txt"))
	if err != nil {
		t.Fatalf("eula file missing: %v", err)
	}
	if string(data) != "eula=true\n" {
		t.Fatalf("unexpected eula content: %q", data)
	}
}

func TestRequiredJavaMajor(t *testing.T) {
	cases := []struct {
		typ, version string
		want         int
		known        bool
	}{
		{"PAPER", "1.20.4", 17, true},
		{"PAPER", "1.21", 21, true},
		{"VANILLA", "1.16.5", 8, true},
		{"VANILLA", "1.17.1", 16, true},
		{"FORGE", "1.12.2", 8, true},
		{"paper", "1.18.2", 17, true},
		{"CUSTOM", "1.20.4", 0, false},
		{"PAPER", "garbage", 0, false},
	}

	for _, tc := range cases {
		got, known := RequiredJavaMajor(tc.typ, tc.version)
		if known != tc.known || got != tc.want {
			t.Fatalf("RequiredJavaMajor(%s, %s) = (%d, %v), want (%d, %v)",
				tc.typ, tc.version, got, known, tc.want, tc.known)
		}
	}
}

func TestCheckJavaCompat(t *testing.T) {
	if ok, req := CheckJavaCompat("PAPER", "1.20.4", 17); !ok || req != 17 {
		t.Fatalf("java 17 should satisfy 1.20.4, got ok=%v req=%d", ok, req)
	}
	if ok, _ := CheckJavaCompat("PAPER", "1.20.4", 8); ok {
		t.Fatalf("java 8 should not satisfy 1.20.4")
	}
	if ok, _ := CheckJavaCompat("PAPER", "1.20.4", 0); !ok {
		t.Fatalf("unknown java version should pass the advisory check")
	}
}

func TestParseJavaMajor(t *testing.T) {
	cases := map[string]int{
		"21":        21,
		"17.0.9":    17,
		"1.8.0_392": 8,
		"":          0,
		"latest":    0,
	}
	for in, want := range cases {
		if got := ParseJavaMajor(in); got != want {
			t.Fatalf("ParseJavaMajor(%q) = %d, want %d", in, got, want)
		}
	}
}
