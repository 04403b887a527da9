// Package shell is the command-execution collaborator: it runs one
// externally supplied command to completion or to a timeout and reports
// the captured exit status. Everything the command does is opaque to the
// engine.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/google/shlex"
	"github.com/vk/gridrun/internal/ctxlog"
)

// Spec describes one command invocation.
type Spec struct {
	// Command is the opaque command line to execute.
	Command string
	// Dir is the working directory. Empty means the process's own.
	Dir string
	// Env entries ("K=V") are appended to the inherited environment.
	Env []string
	// Timeout bounds execution. Zero means unbounded.
	Timeout time.Duration
	// Shell wraps the command in `sh -c` instead of splitting it into an
	// argv list.
	Shell bool
}

// Result is the observed outcome of a completed invocation. A nonzero
// exit status is a normal Result, not an error; errors are reserved for
// commands that could not even be launched.
type Result struct {
	ExitCode int
	Duration time.Duration
	TimedOut bool
	// Output holds the combined stdout/stderr of the command.
	Output string
}

// LaunchError reports a command that failed before producing any exit
// status: an unparseable command line, a missing binary, or a fork/exec
// failure.
type LaunchError struct {
	Command string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch command %q: %v", e.Command, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// Executor runs commands. The concrete implementation is Local; tests
// substitute a recording fake.
type Executor interface {
	// Exec runs the command described by spec. It returns a Result for
	// any command that was launched, including nonzero exits and
	// timeouts. A non-nil error means the command never ran, or the
	// parent context was canceled.
	Exec(ctx context.Context, spec Spec) (*Result, error)
}

// Local executes commands as child processes of the engine.
type Local struct{}

// NewLocal creates the process-based executor.
func NewLocal() *Local {
	return &Local{}
}

// Exec implements Executor using os/exec. On timeout the child is
// forcibly terminated; WaitDelay guarantees the wait returns and
// resources are released even if the child ignores the kill.
func (l *Local) Exec(ctx context.Context, spec Spec) (*Result, error) {
	logger := ctxlog.FromContext(ctx)

	runCtx := ctx
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	var argv []string
	if spec.Shell {
		argv = []string{"sh", "-c", spec.Command}
	} else {
		var err error
		argv, err = shlex.Split(spec.Command)
		if err != nil {
			return nil, &LaunchError{Command: spec.Command, Err: err}
		}
		if len(argv) == 0 {
			return nil, &LaunchError{Command: spec.Command, Err: errors.New("empty command")}
		}
	}

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.WaitDelay = 5 * time.Second

	// Each command gets its own process group so a timeout kills the
	// whole tree, not just the immediate child.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	logger.Debug("Executing command.", "command", spec.Command, "timeout", spec.Timeout)
	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	switch {
	case err == nil:
		return &Result{ExitCode: 0, Duration: elapsed, Output: out.String()}, nil

	case spec.Timeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		logger.Debug("Command timed out.", "command", spec.Command, "elapsed", elapsed)
		return &Result{ExitCode: -1, Duration: elapsed, TimedOut: true, Output: out.String()}, nil

	case ctx.Err() != nil:
		// The run as a whole was aborted, not this command in particular.
		return nil, ctx.Err()

	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &Result{ExitCode: exitErr.ExitCode(), Duration: elapsed, Output: out.String()}, nil
		}
		return nil, &LaunchError{Command: spec.Command, Err: err}
	}
}
