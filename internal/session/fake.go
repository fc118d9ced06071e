package session

import (
	"context"
	"fmt"
	"sync"

	cwerrors "github.com/yairfalse/cfgwatch/internal/errors"
)

// FakeOpener is an in-memory Opener for tests and dry runs. Outputs maps a
// command to its output; Failures maps a command to an error.
type FakeOpener struct {
	mu       sync.Mutex
	Outputs  map[string]string
	Failures map[string]error
	OpenErr  error

	Opened   int
	Closed   int
	Commands []string
}

// NewFakeOpener creates a FakeOpener with empty command tables
func NewFakeOpener() *FakeOpener {
	return &FakeOpener{
		Outputs:  make(map[string]string),
		Failures: make(map[string]error),
	}
}

// SetOutput sets the output of command
func (f *FakeOpener) SetOutput(command, output string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Outputs[command] = output
}

// SetFailure makes command fail with err
func (f *FakeOpener) SetFailure(command string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Failures[command] = err
}

// SetOpenError makes Open fail; nil restores success
func (f *FakeOpener) SetOpenError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.OpenErr = err
}

// Open implements Opener
func (f *FakeOpener) Open(ctx context.Context, target Target) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.OpenErr != nil {
		return nil, cwerrors.ConnectionError(target.Address(), f.OpenErr)
	}
	f.Opened++
	return &fakeSession{opener: f}, nil
}

// Balanced reports whether every opened session was closed
func (f *FakeOpener) Balanced() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Opened == f.Closed
}

type fakeSession struct {
	opener *FakeOpener
	closed bool
}

func (s *fakeSession) Execute(ctx context.Context, command string) (string, error) {
	f := s.opener
	f.mu.Lock()
	defer f.mu.Unlock()

	if s.closed {
		return "", cwerrors.CommandError(command, fmt.Errorf("session closed"))
	}
	f.Commands = append(f.Commands, command)

	if err, ok := f.Failures[command]; ok {
		return "", cwerrors.CommandError(command, err)
	}
	out, ok := f.Outputs[command]
	if !ok {
		return "", cwerrors.CommandError(command, fmt.Errorf("%% Invalid input detected"))
	}
	return out, nil
}

func (s *fakeSession) Close() error {
	f := s.opener
	f.mu.Lock()
	defer f.mu.Unlock()

	if !s.closed {
		s.closed = true
		f.Closed++
	}
	return nil
}
