// Package command delivers console commands to a running instance through
// an ordered fallback chain of channels, and drives graceful shutdown.
// Channels are tried strictly in order; a channel failure is logged and the
// next one is attempted. Only when every channel fails does the caller see
// an error.
package command

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/craftd/craftd/internal/runtime"
)

// Result is the outcome of a successful delivery.
type Result struct {
	// Channel names the mechanism that delivered the command.
	Channel string
	// Output holds whatever immediate console output the channel captured.
	Output string
}

// Channel is one delivery mechanism in the fallback chain.
type Channel interface {
	Name() string
	// TrySend attempts delivery. A non-nil Result means the command was
	// delivered; an error means this channel cannot deliver it and the
	// next channel should be tried.
	TrySend(ctx context.Context, command string) (*Result, error)
}

// Dispatcher iterates a fallback chain. Adding, removing or reordering
// channels is a data change on construction, not a control-flow rewrite.
type Dispatcher struct {
	channels []Channel
}

func NewDispatcher(channels ...Channel) *Dispatcher {
	return &Dispatcher{channels: channels}
}

// Dispatch tries each channel in order until one delivers the command.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd string) (*Result, error) {
	var attempted []string
	var lastErr error

	for _, ch := range d.channels {
		res, err := ch.TrySend(ctx, cmd)
		if err != nil {
			slog.Debug("command channel failed, trying next",
				"channel", ch.Name(), "error", err)
			attempted = append(attempted, ch.Name())
			lastErr = err
			continue
		}
		if res != nil {
			slog.Debug("command delivered", "channel", res.Channel)
			return res, nil
		}
		attempted = append(attempted, ch.Name())
	}

	return nil, &runtime.CommandDispatchError{
		Command:  cmd,
		Channels: attempted,
		LastErr:  lastErr,
	}
}

// ErrStopDeadline reports that the instance was still running when the
// graceful-stop deadline expired; callers escalate to a forced stop.
var ErrStopDeadline = errors.New("graceful stop deadline exceeded")

// DefaultStopDeadline bounds how long a graceful stop waits before
// escalation.
const DefaultStopDeadline = 60 * time.Second

// RunningFunc reports whether the instance is still running.
type RunningFunc func(ctx context.Context) (bool, error)

// WaitForStop polls the instance once per second until it reports stopped
// or the deadline elapses. Transient status errors are logged and the poll
// continues; the deadline is the only terminal failure.
func WaitForStop(ctx context.Context, running RunningFunc, deadline time.Duration) error {
	if deadline <= 0 {
		deadline = DefaultStopDeadline
	}

	timeout := time.After(deadline)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		alive, err := running(ctx)
		if err != nil {
			slog.Debug("status poll failed during shutdown wait", "error", err)
		} else if !alive {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			return ErrStopDeadline
		case <-ticker.C:
		}
	}
}
