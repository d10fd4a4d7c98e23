package command

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gorcon/rcon"
)

// Environment keys the game server image understands for RCON.
const (
	envEnableRCON   = "ENABLE_RCON"
	envRCONPassword = "RCON_PASSWORD"
	envRCONPort     = "RCON_PORT"

	defaultRCONPort = 25575
)

// EnvFunc returns the live environment of the instance's process.
type EnvFunc func(ctx context.Context) (map[string]string, error)

// RCONChannel delivers commands over a short-lived authenticated RCON
// session. It is only attempted when the instance environment marks RCON
// enabled and carries a password.
type RCONChannel struct {
	// Host defaults to 127.0.0.1; the container backend substitutes the
	// container's bridge address.
	Host string
	Env  EnvFunc
	// Timeout bounds both dial and command execution; defaults to 5s.
	Timeout time.Duration
}

func (r *RCONChannel) Name() string { return "rcon" }

func (r *RCONChannel) TrySend(ctx context.Context, cmd string) (*Result, error) {
	env, err := r.Env(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read instance environment: %w", err)
	}

	if !isTruthy(env[envEnableRCON]) {
		return nil, fmt.Errorf("rcon not enabled for instance")
	}
	password := env[envRCONPassword]
	if password == "" {
		return nil, fmt.Errorf("rcon enabled but no password configured")
	}

	port := defaultRCONPort
	if raw := env[envRCONPort]; raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s value %q", envRCONPort, raw)
		}
		port = p
	}

	host := r.Host
	if host == "" {
		host = "127.0.0.1"
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := rcon.Dial(addr, password,
		rcon.SetDialTimeout(timeout),
		rcon.SetDeadline(timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("rcon dial %s failed: %w", addr, err)
	}
	defer conn.Close()

	output, err := conn.Execute(cmd)
	if err != nil {
		return nil, fmt.Errorf("rcon execute failed: %w", err)
	}

	return &Result{Channel: r.Name(), Output: output}, nil
}

func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "yes", "on", "1":
		return true
	default:
		return false
	}
}
