package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/vk/gridrun/internal/ctxlog"
	"github.com/vk/gridrun/internal/dag"
	"github.com/vk/gridrun/internal/executor"
	"github.com/vk/gridrun/internal/report"
	"github.com/vk/gridrun/internal/runners"
)

// ErrJobsFailed signals a run that completed but left at least one
// required instance in a non-success outcome. The caller maps it to the
// failure exit code; it is not a malfunction of the engine itself.
var ErrJobsFailed = errors.New("one or more required jobs did not succeed")

// Run executes the main application logic based on the App's configuration.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	loader := LoaderFor(a.config.PipelinePath)
	model, err := loader.Load(ctx, a.config.PipelinePath)
	if err != nil {
		return fmt.Errorf("failed to load pipeline configuration: %w", err)
	}
	a.logger.Debug("Configuration loaded and translated into unified model.")

	a.logger.Debug("Building execution graph from config model...")
	graph, err := dag.Build(ctx, model)
	if err != nil {
		return fmt.Errorf("failed to build execution graph: %w", err)
	}
	a.logger.Debug("Execution graph built.", "node_count", len(graph.Nodes))

	if a.config.DryRun {
		a.printPlan(graph)
		return nil
	}

	if len(graph.Nodes) == 0 {
		a.logger.Warn("No job instances in graph, execution not required.")
		return nil
	}

	if a.config.StatusPort > 0 {
		a.startStatusServer(a.config.StatusPort, graph)
	}

	pool := runners.NewPool(model.Runners)

	a.logger.Info("🚀 Starting concurrent execution...")
	exec := executor.New(graph, a.config.Workers, a.shell, pool, a.reporter)
	if err := exec.Run(ctx); err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}
	a.logger.Info("🏁 Execution finished.")

	report.Summary(a.outW, graph)

	if report.ExitCode(graph) != 0 {
		return ErrJobsFailed
	}
	return nil
}

// printPlan writes the resolved execution order without running anything.
func (a *App) printPlan(graph *dag.Graph) {
	fmt.Fprintln(a.outW, "Execution plan:")
	for i, n := range graph.TopologicalOrder() {
		line := fmt.Sprintf("%3d. %s", i+1, n.ID())
		if len(n.Deps) > 0 {
			deps := make([]string, 0, len(n.Deps))
			for _, dep := range n.Deps {
				deps = append(deps, dep.ID())
			}
			sort.Strings(deps)
			line += " (after " + strings.Join(deps, ", ") + ")"
		}
		fmt.Fprintln(a.outW, line)
	}
}
