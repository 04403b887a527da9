package executor

import (
	"context"
	"fmt"

	"github.com/vk/gridrun/internal/ctxlog"
	"github.com/vk/gridrun/internal/node"
)

// UpstreamError explains why an instance was skipped without running.
type UpstreamError struct {
	Dependency string
	Outcome    node.Outcome
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("skipped: dependency '%s' %s", e.Dependency, e.Outcome)
}

// worker is the core processing loop for a single concurrent worker.
func (e *Executor) worker(ctx context.Context, readyChan chan *node.Node, workerID int) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "workerID", workerID)

	for n := range readyChan {
		workerLogger := logger.With("workerID", workerID, "job", n.ID())

		// A global abort turns not-yet-started work into Canceled, and
		// everything gated on it into Skipped.
		if ctx.Err() != nil {
			if n.Finish(node.Canceled, ctx.Err(), &e.wg) {
				workerLogger.Warn("Run aborted, canceling job.")
				e.reporter.JobCompleted(ctx, n)
				e.skipDependents(ctx, n)
			}
			continue
		}

		// The node may have been finished by a cascade while queued.
		if n.Outcome().Terminal() {
			continue
		}

		workerLogger.Debug("Worker picked up job for execution.")
		n.SetOutcome(node.Running)

		outcome, err := e.runJob(ctx, n)

		if outcome == node.Succeeded {
			if n.Finish(node.Succeeded, nil, &e.wg) {
				workerLogger.Debug("Job succeeded.")
				e.reporter.JobCompleted(ctx, n)
				for _, dependent := range n.Dependents {
					if dependent.DecrementDepCount() == 0 {
						workerLogger.Debug("Unlocking dependent job.", "dependent", dependent.ID())
						readyChan <- dependent
					}
				}
			}
			continue
		}

		if n.Finish(outcome, err, &e.wg) {
			workerLogger.Error("Job did not succeed.", "outcome", outcome.String(), "error", err)
			e.reporter.JobCompleted(ctx, n)
			e.skipDependents(ctx, n)
		}
	}
	logger.Debug("Worker finished.", "workerID", workerID)
}
