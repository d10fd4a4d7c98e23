package command

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// PIDFunc resolves the instance's init (pid-1-equivalent) process id on the
// host.
type PIDFunc func(ctx context.Context) (int, error)

// InitStdinChannel writes the command straight into the init process's
// standard input through its /proc fd handle. Works when the init process
// is the game server itself.
type InitStdinChannel struct {
	PID PIDFunc
}

func (c *InitStdinChannel) Name() string { return "init-stdin" }

func (c *InitStdinChannel) TrySend(ctx context.Context, cmd string) (*Result, error) {
	pid, err := c.PID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve init pid: %w", err)
	}
	if err := writeProcStdin(pid, cmd); err != nil {
		return nil, err
	}
	return &Result{Channel: c.Name()}, nil
}

// PIDStdinChannel locates the actual game-server process inside the
// instance (the init process may be a wrapper script) by scanning the init
// process's tree for a known executable name, then writes to that process's
// stdin. Last resort in the chain.
type PIDStdinChannel struct {
	RootPID PIDFunc
	// ProcessName is the executable to look for; defaults to "java".
	ProcessName string
}

func (c *PIDStdinChannel) Name() string { return "pid-stdin" }

func (c *PIDStdinChannel) TrySend(ctx context.Context, cmd string) (*Result, error) {
	rootPID, err := c.RootPID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve init pid: %w", err)
	}

	name := c.ProcessName
	if name == "" {
		name = "java"
	}

	pid, err := findProcessByName(ctx, int32(rootPID), name)
	if err != nil {
		return nil, err
	}
	if err := writeProcStdin(int(pid), cmd); err != nil {
		return nil, err
	}
	return &Result{Channel: c.Name()}, nil
}

// findProcessByName walks the process tree below rootPID (inclusive) and
// returns the first pid whose executable name contains name.
func findProcessByName(ctx context.Context, rootPID int32, name string) (int32, error) {
	root, err := process.NewProcessWithContext(ctx, rootPID)
	if err != nil {
		return 0, fmt.Errorf("process %d not found: %w", rootPID, err)
	}

	queue := []*process.Process{root}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]

		if pname, err := p.NameWithContext(ctx); err == nil &&
			strings.Contains(strings.ToLower(pname), strings.ToLower(name)) {
			return p.Pid, nil
		}

		children, err := p.ChildrenWithContext(ctx)
		if err == nil {
			queue = append(queue, children...)
		}
	}

	return 0, fmt.Errorf("no %q process found under pid %d", name, rootPID)
}

// writeProcStdin writes a newline-terminated command into the process's
// stdin via its proc filesystem handle.
func writeProcStdin(pid int, cmd string) error {
	path := fmt.Sprintf("/proc/%d/fd/0", pid)
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("failed to open stdin of pid %d: %w", pid, err)
	}
	defer f.Close()

	if _, err := f.WriteString(cmd + "\n"); err != nil {
		return fmt.Errorf("failed to write to stdin of pid %d: %w", pid, err)
	}
	return nil
}
