package sysexec

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// Call records one invocation made through a Stub.
type Call struct {
	Name string
	Args []string
}

// String returns the command line of the call.
func (c Call) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Stub is a scripted Runner for tests and dry runs. Programs listed in
// Installed resolve through LookPath; Handler answers Run calls.
type Stub struct {
	mu        sync.Mutex
	Installed map[string]bool
	Handler   func(ctx context.Context, name string, args []string) (Result, error)
	calls     []Call
}

// Run records the call and delegates to Handler.
func (s *Stub) Run(ctx context.Context, name string, args ...string) (Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Name: name, Args: append([]string(nil), args...)})
	handler := s.Handler
	s.mu.Unlock()

	if handler == nil {
		return Result{ExitCode: -1}, fmt.Errorf("run %s: %w", name, exec.ErrNotFound)
	}
	return handler(ctx, name, args)
}

// LookPath reports programs listed in Installed.
func (s *Stub) LookPath(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Installed[name] {
		return "/usr/bin/" + name, nil
	}
	return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
}

// Calls returns the recorded invocations.
func (s *Stub) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Output returns a handler that prints out for every call.
func Output(out string) func(context.Context, string, []string) (Result, error) {
	return func(context.Context, string, []string) (Result, error) {
		return Result{Stdout: []byte(out)}, nil
	}
}
