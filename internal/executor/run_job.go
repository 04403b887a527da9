package executor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/vk/gridrun/internal/ctxlog"
	"github.com/vk/gridrun/internal/node"
	"github.com/vk/gridrun/internal/shell"
)

// runJob executes one instance's steps strictly in declared order and
// rolls the per-step results up into a job outcome. All step results are
// retained on the node for reporting, even though only the rolled-up
// outcome drives scheduling.
func (e *Executor) runJob(ctx context.Context, n *node.Node) (node.Outcome, error) {
	logger := ctxlog.FromContext(ctx).With("job", n.ID())
	logger.Info("▶️ Starting job")

	rn, err := e.pool.Select(n.Job.RunsOn)
	if err != nil {
		// Selection failure is distinct from step failure, but cascades
		// the same way: the job cannot start.
		logger.Error("No runner matches job constraint.", "runs_on", n.Job.RunsOn)
		return node.Failed, err
	}
	logger.Debug("Runner selected.", "runner", rn.Name)

	evalCtx := buildEvalContext(n)

	for _, step := range n.Job.Steps {
		if ctx.Err() != nil {
			return node.Canceled, ctx.Err()
		}
		stepLogger := logger.With("step", step.Name)

		if step.If != nil {
			run, guardErr := evalGuard(step.If, evalCtx)
			if guardErr != nil {
				n.RecordStep(node.StepResult{Name: step.Name, Status: node.StepFailed, ExitCode: -1, Err: guardErr})
				return node.Failed, fmt.Errorf("step %q: %w", step.Name, guardErr)
			}
			if !run {
				stepLogger.Info("⏭️ Step skipped by guard")
				n.RecordStep(node.StepResult{Name: step.Name, Status: node.StepSkipped})
				continue
			}
		}

		timeout := step.Timeout
		if timeout == 0 {
			timeout = n.Job.Timeout
		}

		stepLogger.Info("▶️ Running step", "command", step.Run)
		res, execErr := e.shell.Exec(ctx, shell.Spec{
			Command: step.Run,
			Dir:     rn.Workdir,
			Env:     mergeEnv(rn.Env, step.Env),
			Timeout: timeout,
			Shell:   step.Shell,
		})

		if execErr != nil {
			if ctx.Err() != nil && errors.Is(execErr, ctx.Err()) {
				return node.Canceled, execErr
			}
			// Launch failures are reported distinctly from nonzero exits
			// but fail the step the same way.
			stepLogger.Error("Step could not be launched.", "error", execErr)
			n.RecordStep(node.StepResult{Name: step.Name, Status: node.StepFailed, ExitCode: -1, Err: execErr})
			if !step.ContinueOnError {
				return node.Failed, fmt.Errorf("step %q: %w", step.Name, execErr)
			}
			continue
		}

		if res.TimedOut {
			stepLogger.Error("Step timed out.", "timeout", timeout, "elapsed", res.Duration)
			timeoutErr := &StepTimeoutError{Step: step.Name, Timeout: timeout}
			n.RecordStep(node.StepResult{Name: step.Name, Status: node.StepTimedOut, ExitCode: res.ExitCode, Duration: res.Duration, Err: timeoutErr})
			return node.TimedOut, timeoutErr
		}

		if res.ExitCode != 0 {
			stepLogger.Error("Step failed.", "exit_code", res.ExitCode, "elapsed", res.Duration)
			stepErr := fmt.Errorf("step %q exited with status %d", step.Name, res.ExitCode)
			n.RecordStep(node.StepResult{Name: step.Name, Status: node.StepFailed, ExitCode: res.ExitCode, Duration: res.Duration, Err: stepErr})
			if !step.ContinueOnError {
				return node.Failed, stepErr
			}
			stepLogger.Warn("Continuing past failed step.")
			continue
		}

		stepLogger.Info("✅ Step finished", "elapsed", res.Duration)
		n.RecordStep(node.StepResult{Name: step.Name, Status: node.StepSucceeded, Duration: res.Duration})
	}

	logger.Info("✅ Job finished")
	return node.Succeeded, nil
}

// StepTimeoutError reports a step that exceeded its effective timeout.
// It is a distinct terminal condition from a step failure: the job rolls
// up to TimedOut, not Failed.
type StepTimeoutError struct {
	Step    string
	Timeout time.Duration
}

func (e *StepTimeoutError) Error() string {
	return fmt.Sprintf("step %q exceeded timeout of %s", e.Step, e.Timeout)
}

// mergeEnv flattens the step's env map over the runner's base env into
// "K=V" entries. Order within the step's own entries is stable.
func mergeEnv(base []string, overlay map[string]string) []string {
	if len(overlay) == 0 {
		return base
	}
	out := make([]string, 0, len(base)+len(overlay))
	out = append(out, base...)
	keys := make([]string, 0, len(overlay))
	for k := range overlay {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+overlay[k])
	}
	return out
}
