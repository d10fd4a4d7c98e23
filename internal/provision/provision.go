// Package provision owns the narrow contract with the artifact downloader
// and the validity checks the runtime performs before trusting an instance
// directory: a runnable jar/installer must exist, look like a real archive,
// and the EULA must be accepted.
package provision

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/craftd/craftd/internal/runtime"
)

// ArtifactName is the primary provisioning artifact inside an instance dir.
const ArtifactName = "server.jar"

// MinArtifactSize is the smallest size a real server jar can plausibly be.
const MinArtifactSize = 100 * 1024

// zipMagic is the ZIP local-file-header signature; jar files are ZIP files.
var zipMagic = []byte{'P', 'K'}

// Provisioner resolves and downloads server artifacts for a type/version.
// The implementation (upstream URL resolution, installer execution) lives
// outside the runtime core; this core only requires that after PrepareFiles
// a runnable artifact exists in dir and the EULA file is accepted.
type Provisioner interface {
	PrepareFiles(ctx context.Context, serverType, version, dir, loaderVersion, installerVersion string) error
}

// ValidateArtifact checks the artifact at path for the minimum size and the
// ZIP magic bytes. It returns a descriptive error when the file is missing
// or fails either check.
func ValidateArtifact(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("artifact missing: %w", err)
	}
	if info.Size() < MinArtifactSize {
		return fmt.Errorf("artifact %s is too small (%d bytes, minimum %d)", filepath.Base(path), info.Size(), MinArtifactSize)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open artifact: %w", err)
	}
	defer f.Close()

	header := make([]byte, 2)
	if _, err := f.Read(header); err != nil {
		return fmt.Errorf("failed to read artifact header: %w", err)
	}
	if header[0] != zipMagic[0] || header[1] != zipMagic[1] {
		return fmt.Errorf("artifact %s has invalid magic bytes %q", filepath.Base(path), header)
	}
	return nil
}

// EnsureArtifacts verifies the instance directory holds a valid artifact,
// attempting exactly one repair through the provisioner when it is missing
// or fails validation. A failed repair is fatal.
func EnsureArtifacts(ctx context.Context, p Provisioner, serverType, version, loaderVersion, dir string) error {
	artifact := filepath.Join(dir, ArtifactName)

	err := ValidateArtifact(artifact)
	if err == nil {
		return nil
	}
	slog.Warn("provisioning artifact invalid, attempting repair",
		"dir", dir, "type", serverType, "version", version, "reason", err)

	if p == nil {
		return &runtime.ProvisioningError{
			ServerType: serverType,
			Version:    version,
			Source:     artifact,
			Err:        fmt.Errorf("no provisioner configured: %w", err),
		}
	}

	if repairErr := p.PrepareFiles(ctx, serverType, version, dir, loaderVersion, ""); repairErr != nil {
		return &runtime.ProvisioningError{
			ServerType: serverType,
			Version:    version,
			Source:     artifact,
			Err:        fmt.Errorf("repair failed: %w", repairErr),
		}
	}

	if err := ValidateArtifact(artifact); err != nil {
		return &runtime.ProvisioningError{
			ServerType: serverType,
			Version:    version,
			Source:     artifact,
			Err:        fmt.Errorf("artifact still invalid after repair: %w", err),
		}
	}

	slog.Info("provisioning artifact repaired", "dir", dir, "type", serverType, "version", version)
	return nil
}

// AcceptEULA writes the Mojang EULA acceptance file into dir.
func AcceptEULA(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create instance directory: %w", err)
	}
	path := filepath.Join(dir, "eula.txt")
	if err := os.WriteFile(path, []byte("eula=true\n"), 0644); err != nil {
		return fmt.Errorf("failed to accept EULA: %w", err)
	}
	return nil
}
