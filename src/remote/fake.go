package remote

import (
	"context"
	"fmt"
	"io"
	"sync"

	"oci-volume-backup/src/errdefs"
)

// FakeRunner is an in-memory Runner for unit tests. Outputs maps a command to
// its stdout; Errors maps a command to a failure returned after any output in
// Outputs has been written.
type FakeRunner struct {
	Outputs map[string][]byte
	Errors  map[string]error

	mu       sync.Mutex
	Commands []string
}

func NewFake() *FakeRunner {
	return &FakeRunner{Outputs: map[string][]byte{}, Errors: map[string]error{}}
}

func (f *FakeRunner) Run(ctx context.Context, command string) ([]byte, error) {
	f.record(command)
	if err := f.Errors[command]; err != nil {
		return nil, err
	}
	return f.Outputs[command], nil
}

func (f *FakeRunner) Stream(ctx context.Context, command string, w io.Writer) (int64, error) {
	f.record(command)
	n, err := w.Write(f.Outputs[command])
	if err != nil {
		return int64(n), fmt.Errorf("%w: %v", errdefs.ErrLocalIO, err)
	}
	if err := f.Errors[command]; err != nil {
		return int64(n), err
	}
	return int64(n), nil
}

func (f *FakeRunner) record(command string) {
	f.mu.Lock()
	f.Commands = append(f.Commands, command)
	f.mu.Unlock()
}
