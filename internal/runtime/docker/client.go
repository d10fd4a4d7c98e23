// Package docker implements the container variant of the runtime backend on
// top of the Docker Engine API.
package docker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/docker/docker/client"

	"github.com/craftd/craftd/internal/logging"
	"github.com/craftd/craftd/internal/runtime"
)

// Client wraps the engine client with connection verification and a single
// reconnect attempt before surfacing BackendUnavailableError.
type Client struct {
	mu     sync.Mutex
	cli    *client.Client
	host   string
	logger *slog.Logger
}

// NewClient connects to the engine at host (empty means the environment
// default) and verifies the daemon responds.
func NewClient(host string) (*Client, error) {
	cli, err := newEngineClient(host)
	if err != nil {
		return nil, &runtime.BackendUnavailableError{Backend: "container", Err: err}
	}

	c := &Client{
		cli:    cli,
		host:   host,
		logger: logging.ForComponent("docker_client"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		_ = cli.Close()
		return nil, &runtime.BackendUnavailableError{Backend: "container", Err: err}
	}

	c.logger.Info("connected to container engine", "host", hostLabel(host), "api_version", cli.ClientVersion())
	return c, nil
}

func newEngineClient(host string) (*client.Client, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	} else {
		opts = append(opts, client.FromEnv)
	}
	return client.NewClientWithOpts(opts...)
}

func hostLabel(host string) string {
	if host == "" {
		return "env-default"
	}
	return host
}

// API returns the raw engine client.
func (c *Client) API() *client.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cli
}

// Ensure pings the daemon, retrying once through a reconnect. A failure
// after the reconnect is surfaced as BackendUnavailableError, never
// swallowed.
func (c *Client) Ensure(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.cli.Ping(ctx); err == nil {
		return nil
	}

	c.logger.Warn("container engine ping failed, reconnecting once")
	_ = c.cli.Close()

	cli, err := newEngineClient(c.host)
	if err != nil {
		return &runtime.BackendUnavailableError{Backend: "container", Err: err}
	}
	if _, err := cli.Ping(ctx); err != nil {
		_ = cli.Close()
		return &runtime.BackendUnavailableError{Backend: "container", Err: err}
	}

	c.cli = cli
	c.logger.Info("reconnected to container engine")
	return nil
}

// Close releases the engine connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cli.Close()
}
