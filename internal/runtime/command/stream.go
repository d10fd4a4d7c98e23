package command

import "context"

// SendFunc pushes a command over a backend-specific raw stream (a docker
// attach session, a control pipe) and returns any immediate output.
type SendFunc func(ctx context.Context, cmd string) (string, error)

// StreamChannel adapts a backend-provided stream writer into the fallback
// chain.
type StreamChannel struct {
	name string
	send SendFunc
}

func NewStreamChannel(name string, send SendFunc) *StreamChannel {
	return &StreamChannel{name: name, send: send}
}

func (c *StreamChannel) Name() string { return c.name }

func (c *StreamChannel) TrySend(ctx context.Context, cmd string) (*Result, error) {
	output, err := c.send(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return &Result{Channel: c.name, Output: output}, nil
}
