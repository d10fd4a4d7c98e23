package process

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// pidFileName is the sidecar holding the root pid of a spawned instance.
const pidFileName = "server.pid"

func pidFilePath(dir string) string {
	return filepath.Join(dir, pidFileName)
}

func writePIDFile(dir string, pid int) error {
	if err := os.WriteFile(pidFilePath(dir), []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write pid file: %w", err)
	}
	return nil
}

// readPIDFile returns the stored pid, or 0 when no pid file exists.
func readPIDFile(dir string) (int, error) {
	data, err := os.ReadFile(pidFilePath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read pid file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("corrupt pid file %s: %w", pidFilePath(dir), err)
	}
	return pid, nil
}

func removePIDFile(dir string) {
	_ = os.Remove(pidFilePath(dir))
}

// pidAlive probes the process with signal 0. EPERM still means alive.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}
	return err == syscall.EPERM
}

// signalGroup delivers sig to the instance's whole process group.
func signalGroup(pid int, sig syscall.Signal) error {
	if pid <= 0 {
		return fmt.Errorf("invalid pid %d", pid)
	}
	if err := syscall.Kill(-pid, sig); err != nil {
		// Group may already be gone; fall back to the root process.
		if err := syscall.Kill(pid, sig); err != nil {
			return fmt.Errorf("failed to signal pid %d: %w", pid, err)
		}
	}
	return nil
}
