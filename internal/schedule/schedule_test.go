package schedule

import (
	"context"
	"fmt"
	"testing"

	"github.com/craftd/craftd/internal/runtime"
)

// fakeBackend implements just the operations tasks use; everything else
// panics via the embedded nil interface.
type fakeBackend struct {
	runtime.Backend
	restarted []string
	stopped   []string
	commands  []string
	fail      bool
}

func (f *fakeBackend) Restart(ctx context.Context, id string) (runtime.Status, error) {
	if f.fail {
		return runtime.StatusError, fmt.Errorf("boom")
	}
	f.restarted = append(f.restarted, id)
	return runtime.StatusRunning, nil
}

func (f *fakeBackend) Stop(ctx context.Context, id string, force bool) (runtime.Status, error) {
	f.stopped = append(f.stopped, id)
	return runtime.StatusStopped, nil
}

func (f *fakeBackend) SendCommand(ctx context.Context, id, command string) (string, error) {
	f.commands = append(f.commands, id+":"+command)
	return "", nil
}

func TestTaskValidate(t *testing.T) {
	cases := []struct {
		name    string
		task    Task
		wantErr bool
	}{
		{"valid restart", Task{Instance: "alpha", Action: ActionRestart, Spec: "0 4 * * *"}, false},
		{"valid stop", Task{Instance: "alpha", Action: ActionStop, Spec: "@daily"}, false},
		{"valid command", Task{Instance: "alpha", Action: ActionCommand, Command: "save-all", Spec: "*/5 * * * *"}, false},
		{"missing instance", Task{Action: ActionRestart, Spec: "0 4 * * *"}, true},
		{"unknown action", Task{Instance: "alpha", Action: "dance", Spec: "0 4 * * *"}, true},
		{"command without command", Task{Instance: "alpha", Action: ActionCommand, Spec: "0 4 * * *"}, true},
		{"bad cron spec", Task{Instance: "alpha", Action: ActionRestart, Spec: "not cron"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.task.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestAddRejectsInvalidTask(t *testing.T) {
	s := New(&fakeBackend{})
	if _, err := s.Add(Task{Instance: "alpha", Action: ActionRestart, Spec: "bogus"}); err == nil {
		t.Error("expected invalid task to be rejected")
	}
}

func TestExecuteActions(t *testing.T) {
	fb := &fakeBackend{}
	s := New(fb)
	ctx := context.Background()

	s.execute(ctx, Task{Instance: "alpha", Action: ActionRestart})
	s.execute(ctx, Task{Instance: "beta", Action: ActionStop})
	s.execute(ctx, Task{Instance: "gamma", Action: ActionCommand, Command: "save-all"})

	if len(fb.restarted) != 1 || fb.restarted[0] != "alpha" {
		t.Errorf("restart not executed, got %v", fb.restarted)
	}
	if len(fb.stopped) != 1 || fb.stopped[0] != "beta" {
		t.Errorf("stop not executed, got %v", fb.stopped)
	}
	if len(fb.commands) != 1 || fb.commands[0] != "gamma:save-all" {
		t.Errorf("command not executed, got %v", fb.commands)
	}
}

func TestExecuteFailureIsAbsorbed(t *testing.T) {
	fb := &fakeBackend{fail: true}
	s := New(fb)

	// Must not panic or propagate; cron will fire the task again.
	s.execute(context.Background(), Task{Instance: "alpha", Action: ActionRestart})
	if len(fb.restarted) != 0 {
		t.Error("failed restart should not be recorded")
	}
}
