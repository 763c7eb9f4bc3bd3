package remote

import (
	"context"
	"io"
	"time"
)

// Runner runs shell commands on the remote host. Implementations open a new
// channel per call.
type Runner interface {
	// Run returns the command's complete standard output.
	Run(ctx context.Context, command string) ([]byte, error)
	// Stream copies the command's standard output into w.
	Stream(ctx context.Context, command string, w io.Writer) (int64, error)
}

// Commander is the Runner backed by a connected Session.
type Commander struct {
	Session  *Session
	Executor Executor
	// Timeout bounds each command; zero means no limit.
	Timeout time.Duration
}

func (c Commander) Run(ctx context.Context, command string) ([]byte, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	ch, err := c.Session.OpenChannel()
	if err != nil {
		return nil, err
	}
	return c.Executor.Execute(ctx, ch, command)
}

func (c Commander) Stream(ctx context.Context, command string, w io.Writer) (int64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	ch, err := c.Session.OpenChannel()
	if err != nil {
		return 0, err
	}
	return c.Executor.Stream(ctx, ch, command, w)
}

func (c Commander) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout > 0 {
		return context.WithTimeout(ctx, c.Timeout)
	}
	return context.WithCancel(ctx)
}
