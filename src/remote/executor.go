package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"

	"oci-volume-backup/src/errdefs"
)

// DefaultStderrLimit caps how much remote stderr is kept for error messages.
const DefaultStderrLimit = 64 << 10

// Executor runs a single command on a Channel. The channel is consumed and
// closed by every call.
type Executor struct {
	Logger zerolog.Logger
	// IgnoreExitStatus makes a non-zero remote exit status count as success,
	// returning whatever output was produced.
	IgnoreExitStatus bool
	StderrLimit      int64
}

// Execute runs command and returns its complete standard output.
func (x Executor) Execute(ctx context.Context, ch *Channel, command string) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := x.Stream(ctx, ch, command, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Stream runs command and copies its standard output into w as it arrives.
// It returns the number of bytes written to w.
func (x Executor) Stream(ctx context.Context, ch *Channel, command string, w io.Writer) (int64, error) {
	defer ch.Close()

	out := &countingWriter{w: w, abort: func() { _ = ch.s.Close() }}
	limit := x.StderrLimit
	if limit <= 0 {
		limit = DefaultStderrLimit
	}
	stderr := &limitedBuffer{limit: limit}
	ch.s.Stdout = out
	ch.s.Stderr = stderr

	x.Logger.Debug().Str("command", command).Msg("Running remote command")
	if err := ch.s.Start(command); err != nil {
		return 0, fmt.Errorf("%w: start %q: %v", errdefs.ErrRemoteExecution, command, err)
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = ch.s.Close()
		case <-done:
		}
	}()
	err := ch.s.Wait()
	close(done)

	if ctx.Err() != nil {
		return out.n, fmt.Errorf("%w: %q: %w", errdefs.ErrRemoteExecution, command, ctx.Err())
	}
	if out.err != nil {
		return out.n, fmt.Errorf("%w: write output of %q: %v", errdefs.ErrLocalIO, command, out.err)
	}
	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			if x.IgnoreExitStatus {
				x.Logger.Warn().Str("command", command).Int("status", exitErr.ExitStatus()).Msg("Ignoring non-zero exit status")
				return out.n, nil
			}
			return out.n, &errdefs.ExitError{Command: command, Status: exitErr.ExitStatus(), Stderr: stderr.String()}
		}
		return out.n, fmt.Errorf("%w: %q: %v", errdefs.ErrRemoteExecution, command, err)
	}
	// Without pipefail only the last pipeline stage sets the status.
	if msg := stderr.String(); msg != "" {
		x.Logger.Warn().Str("command", command).Str("stderr", msg).Msg("Remote command wrote to stderr")
	}
	x.Logger.Debug().Str("command", command).Int64("bytes", out.n).Msg("Remote command finished")
	return out.n, nil
}

// countingWriter records the first write error and closes the channel through
// abort. Later writes are discarded so the session's copy loop keeps draining
// and Wait returns.
type countingWriter struct {
	w     io.Writer
	n     int64
	err   error
	abort func()
}

func (c *countingWriter) Write(p []byte) (int, error) {
	if c.err != nil {
		return len(p), nil
	}
	n, err := c.w.Write(p)
	c.n += int64(n)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	if err != nil {
		c.err = err
		if c.abort != nil {
			c.abort()
		}
	}
	return len(p), nil
}

// limitedBuffer keeps the first limit bytes and silently drops the rest so
// the remote side is never blocked on stderr.
type limitedBuffer struct {
	buf   bytes.Buffer
	limit int64
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - int64(b.buf.Len()); room > 0 {
		if int64(len(p)) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string { return b.buf.String() }
