package runtime

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound reports that a referenced instance no longer resolves.
// Stop and Delete treat it as already-satisfied rather than an error.
var ErrNotFound = errors.New("instance not found")

// IsNotFound reports whether err is, or wraps, ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ProvisioningError is fatal to create/recreate: the artifact is missing or
// corrupt and the single repair attempt failed.
type ProvisioningError struct {
	ServerType string
	Version    string
	Source     string
	Err        error
}

func (e *ProvisioningError) Error() string {
	msg := fmt.Sprintf("provisioning failed for %s %s", e.ServerType, e.Version)
	if e.Source != "" {
		msg += fmt.Sprintf(" (source: %s)", e.Source)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// PortConflictError is raised only after the retry/scan budget is exhausted,
// or when a preferred port is taken and fallback is disabled.
type PortConflictError struct {
	Port int
}

func (e *PortConflictError) Error() string {
	return fmt.Sprintf("port %d is already in use", e.Port)
}

// BackendUnavailableError means the underlying engine is unreachable after a
// reconnect attempt.
type BackendUnavailableError struct {
	Backend string
	Err     error
}

func (e *BackendUnavailableError) Error() string {
	return fmt.Sprintf("%s backend unavailable: %v", e.Backend, e.Err)
}

func (e *BackendUnavailableError) Unwrap() error { return e.Err }

// CommandDispatchError is raised only when every channel in the fallback
// chain failed. Individual channel failures are logged, not propagated.
type CommandDispatchError struct {
	Command  string
	Channels []string
	LastErr  error
}

func (e *CommandDispatchError) Error() string {
	return fmt.Sprintf("command dispatch failed on all channels [%s]: %v",
		strings.Join(e.Channels, ", "), e.LastErr)
}

func (e *CommandDispatchError) Unwrap() error { return e.LastErr }
