// Package report turns execution results into human-facing output: live
// per-job progress lines while the run is in flight, and a final summary
// table once the graph has drained.
package report

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/vk/gridrun/internal/ctxlog"
	"github.com/vk/gridrun/internal/dag"
	"github.com/vk/gridrun/internal/node"
)

// Console is a Reporter that logs each completed instance through the
// context logger. It is safe for concurrent use; slog handlers
// serialize their own output.
type Console struct{}

// NewConsole creates a console progress reporter.
func NewConsole() *Console {
	return &Console{}
}

// JobCompleted logs one line per terminal instance, at a level matching
// the outcome.
func (c *Console) JobCompleted(ctx context.Context, n *node.Node) {
	logger := ctxlog.FromContext(ctx)

	attrs := []any{"job", n.ID(), "outcome", n.Outcome().String()}
	if n.Err != nil {
		attrs = append(attrs, "error", n.Err)
	}

	switch n.Outcome() {
	case node.Succeeded:
		logger.Info("Job finished.", attrs...)
	case node.Skipped:
		logger.Warn("Job skipped.", attrs...)
	default:
		logger.Error("Job failed.", attrs...)
	}
}

// Summary writes the final result table for every instance in the
// graph, in declaration order, followed by per-step detail for
// instances that ran.
func Summary(w io.Writer, g *dag.Graph) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "JOB\tOUTCOME\tSTEPS\tDURATION")

	for _, n := range g.Ordered() {
		steps := n.StepResults()
		var total time.Duration
		ran := 0
		for _, s := range steps {
			total += s.Duration
			if s.Status != node.StepSkipped {
				ran++
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%s\n",
			n.ID(), n.Outcome().String(), ran, len(steps), total.Round(time.Millisecond))
	}
	tw.Flush()

	for _, n := range g.Ordered() {
		for _, s := range n.StepResults() {
			if s.Status == node.StepSucceeded || s.Status == node.StepSkipped {
				continue
			}
			fmt.Fprintf(w, "  %s / %s: %s", n.ID(), s.Name, s.Status)
			if s.Err != nil {
				fmt.Fprintf(w, " (%v)", s.Err)
			} else if s.Status == node.StepFailed {
				fmt.Fprintf(w, " (exit code %d)", s.ExitCode)
			}
			fmt.Fprintln(w)
		}
	}
}

// ExitCode derives the process exit status from a drained graph: zero
// only when every required instance succeeded. Instances of templates
// marked not required may fail or be skipped without affecting it.
func ExitCode(g *dag.Graph) int {
	for _, n := range g.Ordered() {
		if !n.Job.Required {
			continue
		}
		if n.Outcome() != node.Succeeded {
			return 1
		}
	}
	return 0
}
