package errdefs

import (
	"errors"
	"fmt"
	"strings"
)

// Error categories. Every error returned by this module wraps exactly one of
// these so callers can classify failures with errors.Is.
var (
	ErrConfiguration   = errors.New("configuration error")
	ErrConnection      = errors.New("connection error")
	ErrAuthentication  = errors.New("authentication error")
	ErrChannel         = errors.New("channel error")
	ErrRemoteExecution = errors.New("remote execution error")
	ErrDecoding        = errors.New("decoding error")
	ErrLocalIO         = errors.New("local I/O error")
)

// ExitError reports a remote command that ran to completion with a non-zero
// exit status.
type ExitError struct {
	Command string
	Status  int
	Stderr  string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("remote command exited with status %d", e.Status)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *ExitError) Unwrap() error { return ErrRemoteExecution }

// Category returns the sentinel wrapped by err, or nil if err is not
// classified.
func Category(err error) error {
	for _, c := range []error{
		ErrConfiguration,
		ErrConnection,
		ErrAuthentication,
		ErrChannel,
		ErrRemoteExecution,
		ErrDecoding,
		ErrLocalIO,
	} {
		if errors.Is(err, c) {
			return c
		}
	}
	return nil
}
