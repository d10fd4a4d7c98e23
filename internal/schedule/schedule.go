// Package schedule runs cron-expression tasks against managed instances:
// nightly restarts, timed stops, periodic console commands.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/craftd/craftd/internal/logging"
	"github.com/craftd/craftd/internal/runtime"
)

// Action is what a task does to its instance when it fires.
type Action string

const (
	ActionRestart Action = "restart"
	ActionStop    Action = "stop"
	ActionCommand Action = "command"
)

// Task is one scheduled operation against a named instance.
type Task struct {
	Instance string `yaml:"instance" json:"instance"`
	Action   Action `yaml:"action" json:"action"`
	// Command is the console line to send; required for ActionCommand.
	Command string `yaml:"command,omitempty" json:"command,omitempty"`
	// Spec is a standard 5-field cron expression.
	Spec string `yaml:"spec" json:"spec"`
}

// Validate rejects malformed tasks before they are handed to the cron
// runner.
func (t Task) Validate() error {
	if t.Instance == "" {
		return fmt.Errorf("task instance is required")
	}
	switch t.Action {
	case ActionRestart, ActionStop:
		// No command.
	case ActionCommand:
		if t.Command == "" {
			return fmt.Errorf("task action %q requires a command", t.Action)
		}
	default:
		return fmt.Errorf("unknown task action %q", t.Action)
	}
	if _, err := cron.ParseStandard(t.Spec); err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", t.Spec, err)
	}
	return nil
}

// taskTimeout bounds one task execution.
const taskTimeout = 5 * time.Minute

// Scheduler owns the cron runner and executes tasks on the backend.
type Scheduler struct {
	cron    *cron.Cron
	backend runtime.Backend
	logger  *slog.Logger
}

func New(backend runtime.Backend) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		backend: backend,
		logger:  logging.ForComponent("scheduler"),
	}
}

// Add validates and registers a task.
func (s *Scheduler) Add(task Task) (cron.EntryID, error) {
	if err := task.Validate(); err != nil {
		return 0, err
	}
	id, err := s.cron.AddFunc(task.Spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
		defer cancel()
		s.execute(ctx, task)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to schedule task: %w", err)
	}
	s.logger.Info("task scheduled",
		"instance", task.Instance, "action", task.Action, "spec", task.Spec)
	return id, nil
}

// execute runs one task. Failures are logged; cron fires the task again on
// its next slot regardless.
func (s *Scheduler) execute(ctx context.Context, task Task) {
	var err error
	switch task.Action {
	case ActionRestart:
		_, err = s.backend.Restart(ctx, task.Instance)
	case ActionStop:
		_, err = s.backend.Stop(ctx, task.Instance, false)
	case ActionCommand:
		_, err = s.backend.SendCommand(ctx, task.Instance, task.Command)
	}
	if err != nil {
		s.logger.Error("scheduled task failed",
			"instance", task.Instance, "action", task.Action, "error", err)
		return
	}
	s.logger.Info("scheduled task completed",
		"instance", task.Instance, "action", task.Action)
}

// Start begins firing tasks on their schedules.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the runner and waits for in-flight tasks.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
