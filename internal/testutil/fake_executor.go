package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/vk/gridrun/internal/shell"
)

// FakeExecutor is a scriptable shell.Executor that records every
// invocation instead of spawning processes. Unstubbed commands succeed.
type FakeExecutor struct {
	mu    sync.Mutex
	calls []shell.Spec
	stubs map[string]stubbedCall
}

type stubbedCall struct {
	result *shell.Result
	err    error
}

// NewFakeExecutor creates an empty fake.
func NewFakeExecutor() *FakeExecutor {
	return &FakeExecutor{stubs: make(map[string]stubbedCall)}
}

// Stub fixes the response for a specific command line.
func (f *FakeExecutor) Stub(command string, result *shell.Result, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stubs[command] = stubbedCall{result: result, err: err}
}

// StubExit is shorthand for stubbing a command with a plain exit code.
func (f *FakeExecutor) StubExit(command string, exitCode int) {
	f.Stub(command, &shell.Result{ExitCode: exitCode, Duration: time.Millisecond}, nil)
}

// Exec implements shell.Executor.
func (f *FakeExecutor) Exec(ctx context.Context, spec shell.Spec) (*shell.Result, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	f.mu.Lock()
	f.calls = append(f.calls, spec)
	stub, ok := f.stubs[spec.Command]
	f.mu.Unlock()

	if ok {
		return stub.result, stub.err
	}
	return &shell.Result{ExitCode: 0, Duration: time.Millisecond}, nil
}

// Calls returns a copy of every recorded invocation, in order.
func (f *FakeExecutor) Calls() []shell.Spec {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]shell.Spec, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns how many times the given command line was executed.
func (f *FakeExecutor) CallCount(command string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Command == command {
			n++
		}
	}
	return n
}
