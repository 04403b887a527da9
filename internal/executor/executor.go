// Package executor drives the execution graph: it dispatches job
// instances whose dependencies have all succeeded, skips the transitive
// dependents of anything that did not succeed, and runs independent
// instances concurrently on a bounded worker pool.
//
// The executor is the single writer of job outcomes. Job runners report
// completion through Node.Finish, which is consumed exactly once per
// instance whether it ran, was skipped, or was canceled.
package executor

import (
	"context"
	"sync"

	"github.com/vk/gridrun/internal/ctxlog"
	"github.com/vk/gridrun/internal/dag"
	"github.com/vk/gridrun/internal/node"
	"github.com/vk/gridrun/internal/runners"
	"github.com/vk/gridrun/internal/shell"
)

// Reporter receives completion notifications for human- and
// machine-facing status. Implementations must be safe for concurrent
// use.
type Reporter interface {
	// JobCompleted is called exactly once per instance, after it reaches
	// a terminal outcome.
	JobCompleted(ctx context.Context, n *node.Node)
}

// noopReporter is used when the caller does not care about progress.
type noopReporter struct{}

func (noopReporter) JobCompleted(context.Context, *node.Node) {}

// Executor orchestrates one run over a built graph.
type Executor struct {
	graph      *dag.Graph
	numWorkers int
	shell      shell.Executor
	pool       *runners.Pool
	reporter   Reporter

	wg sync.WaitGroup
}

// New creates an executor for the given graph. A nil reporter is
// replaced with a no-op one.
func New(graph *dag.Graph, workers int, sh shell.Executor, pool *runners.Pool, rep Reporter) *Executor {
	if workers < 1 {
		workers = 1
	}
	if rep == nil {
		rep = noopReporter{}
	}
	return &Executor{
		graph:      graph,
		numWorkers: workers,
		shell:      sh,
		pool:       pool,
		reporter:   rep,
	}
}

// Run executes the entire graph and blocks until every instance has
// reached a terminal outcome. A failing instance only skips its own
// transitive dependents; independent subgraphs always run to
// completion. Run itself returns an error only when it could not drive
// the graph at all; per-job failures are recorded on the nodes.
func (e *Executor) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	readyChan := make(chan *node.Node, len(e.graph.Nodes))

	logger.Debug("Initializing executor, finding root nodes.")
	roots := e.graph.Roots()
	for _, n := range roots {
		readyChan <- n
	}
	logger.Debug("Found all root nodes.", "count", len(roots))

	e.wg.Add(len(e.graph.Nodes))

	logger.Debug("Starting worker pool.", "workers", e.numWorkers)
	for i := 0; i < e.numWorkers; i++ {
		go e.worker(ctx, readyChan, i)
	}

	logger.Info("Waiting for all jobs to complete...")
	e.wg.Wait()
	close(readyChan)
	logger.Info("All jobs completed.")

	return nil
}

// skipDependents recursively marks all downstream instances as Skipped.
// Skip cascades: a skipped dependency is itself a non-success terminal
// state for anything gated on it.
func (e *Executor) skipDependents(ctx context.Context, n *node.Node) {
	logger := ctxlog.FromContext(ctx)
	for _, dependent := range n.Dependents {
		err := &UpstreamError{Dependency: n.ID(), Outcome: n.Outcome()}
		if dependent.Finish(node.Skipped, err, &e.wg) {
			logger.Warn("Skipping job due to upstream outcome.",
				"job", dependent.ID(), "dependency", n.ID(), "dependency_outcome", n.Outcome().String())
			e.reporter.JobCompleted(ctx, dependent)
			e.skipDependents(ctx, dependent)
		}
	}
}
