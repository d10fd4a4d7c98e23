package runtime

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RemoveInstanceDir removes an instance directory best effort. A symlinked
// directory is resolved first: the link itself is always removed, but the
// target is only removed when it lives under dataDir, so shared targets
// outside the managed tree are never deleted.
func RemoveInstanceDir(dataDir, dir string) (bool, error) {
	info, err := os.Lstat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat instance directory: %w", err)
	}

	if info.Mode()&os.ModeSymlink == 0 {
		if err := os.RemoveAll(dir); err != nil {
			return false, fmt.Errorf("failed to remove instance directory: %w", err)
		}
		return true, nil
	}

	target, err := filepath.EvalSymlinks(dir)
	if err != nil {
		// Broken link: deleting the link is all we can do.
		if rmErr := os.Remove(dir); rmErr != nil {
			return false, fmt.Errorf("failed to remove dangling symlink: %w", rmErr)
		}
		return true, nil
	}

	if err := os.Remove(dir); err != nil {
		return false, fmt.Errorf("failed to remove symlink: %w", err)
	}

	absData, err := filepath.Abs(dataDir)
	if err != nil {
		return true, nil
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return true, nil
	}
	// Strictly under dataDir: a link resolving to dataDir itself would
	// otherwise wipe every instance.
	if absTarget != absData && strings.HasPrefix(absTarget, absData+string(filepath.Separator)) {
		if err := os.RemoveAll(absTarget); err != nil {
			return true, fmt.Errorf("failed to remove symlink target: %w", err)
		}
	}

	return true, nil
}
