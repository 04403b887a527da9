package dag

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"github.com/vk/gridrun/internal/config"
	"github.com/vk/gridrun/internal/ctxlog"
	"github.com/vk/gridrun/internal/matrix"
	"github.com/vk/gridrun/internal/node"
)

// Build constructs a complete, validated dependency graph from a config
// model. Validation failures are aggregated so a broken configuration
// reports every problem at once, and nothing is ever dispatched from a
// graph that failed to build.
func Build(ctx context.Context, model *config.Model) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Build: starting graph construction.")

	graph := &Graph{
		Nodes:               make(map[string]*node.Node),
		instancesByTemplate: make(map[string][]*node.Node),
	}

	var errs *multierror.Error
	if err := validateModel(model); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	// First pass: expand every template and create instance nodes.
	createNodes(ctx, model.Pipeline, graph)
	logger.Debug("Build: node creation complete.", "node_count", len(graph.Nodes))

	// Second pass: fan template-level needs out into instance-level edges.
	if err := linkNodes(ctx, model.Pipeline, graph); err != nil {
		return nil, err
	}
	logger.Debug("Build: node linking complete.")

	// Third pass: initialize the unmet-dependency counters.
	for _, n := range graph.Nodes {
		n.SetDepCount(int32(len(n.Deps)))
	}

	if err := graph.detectCycles(); err != nil {
		return nil, err
	}
	logger.Debug("Build: cycle detection passed.")

	logger.Debug("Build: graph construction successful.")
	return graph, nil
}

// validateModel checks the template-level invariants that do not depend
// on expansion: unique job names and well-formed matrices.
func validateModel(model *config.Model) error {
	var errs *multierror.Error

	seen := make(map[string]bool)
	for _, job := range model.Pipeline.Jobs {
		if seen[job.Name] {
			errs = multierror.Append(errs, &DuplicateJobError{Job: job.Name})
		}
		seen[job.Name] = true

		if job.Matrix != nil {
			axes := make(map[string]bool)
			for _, axis := range job.Matrix.Axes {
				if axis.Name == "" {
					errs = multierror.Append(errs, &MalformedMatrixError{
						Job:    job.Name,
						Reason: "axis with empty name",
					})
				}
				if axes[axis.Name] {
					errs = multierror.Append(errs, &MalformedMatrixError{
						Job:    job.Name,
						Reason: "duplicate axis '" + axis.Name + "'",
					})
				}
				axes[axis.Name] = true

				// A repeated value would expand into two instances sharing
				// one ID, breaking the one-node-per-assignment invariant the
				// scheduler's accounting relies on.
				values := make(map[string]bool)
				for _, v := range axis.Values {
					if values[v] {
						errs = multierror.Append(errs, &MalformedMatrixError{
							Job:    job.Name,
							Reason: "axis '" + axis.Name + "' repeats value '" + v + "'",
						})
					}
					values[v] = true
				}
			}
		}
	}
	return errs.ErrorOrNil()
}

// createNodes performs the first pass of graph creation: one node per
// expanded assignment, in declaration-then-expansion order.
func createNodes(ctx context.Context, pipeline *config.Pipeline, graph *Graph) {
	logger := ctxlog.FromContext(ctx)
	declIndex := 0
	for _, job := range pipeline.Jobs {
		assignments := matrix.Expand(job.Matrix)
		if len(assignments) == 0 {
			logger.Warn("Job matrix expanded to zero instances.", "job", job.Name)
		}
		graph.instancesByTemplate[job.Name] = nil
		for _, assignment := range assignments {
			n := node.New(job, assignment, declIndex)
			declIndex++
			graph.Nodes[n.ID()] = n
			graph.ordered = append(graph.ordered, n)
			graph.instancesByTemplate[job.Name] = append(graph.instancesByTemplate[job.Name], n)
		}
	}
}

// linkNodes performs the second pass, establishing dependency links. A
// needs entry refers to a template; when that template expanded into
// multiple instances the dependent is gated on every one of them.
func linkNodes(ctx context.Context, pipeline *config.Pipeline, graph *Graph) error {
	logger := ctxlog.FromContext(ctx)
	var errs *multierror.Error

	for _, job := range pipeline.Jobs {
		instances := graph.instancesByTemplate[job.Name]
		for _, needed := range job.Needs {
			neededInstances, ok := graph.Instances(needed)
			if !ok {
				errs = multierror.Append(errs, &UnresolvedDependencyError{
					Job:   job.Name,
					Needs: needed,
				})
				continue
			}
			for _, n := range instances {
				for _, dep := range neededInstances {
					if _, exists := n.Deps[dep.ID()]; exists {
						continue
					}
					logger.Debug("Linking dependency.", "from", n.ID(), "to", dep.ID())
					n.Deps[dep.ID()] = dep
					dep.Dependents[n.ID()] = n
				}
			}
		}
	}
	return errs.ErrorOrNil()
}
