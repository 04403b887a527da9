package dag

import (
	"sort"

	"github.com/vk/gridrun/internal/node"
)

// Graph is the complete, validated execution plan: every job instance
// keyed by its canonical ID, plus the deterministic creation order.
type Graph struct {
	// Nodes provides fast ID-based lookup for any instance in the graph.
	Nodes map[string]*node.Node

	// ordered holds instances in declaration-then-expansion order.
	ordered []*node.Node

	// instancesByTemplate maps a template name to all of its instances,
	// in expansion order. Templates that expanded to zero instances are
	// present with an empty slice.
	instancesByTemplate map[string][]*node.Node
}

// Ordered returns all instances in declaration-then-expansion order.
func (g *Graph) Ordered() []*node.Node {
	out := make([]*node.Node, len(g.ordered))
	copy(out, g.ordered)
	return out
}

// Instances returns all instances of the named template in expansion
// order, and whether the template exists at all.
func (g *Graph) Instances(template string) ([]*node.Node, bool) {
	nodes, ok := g.instancesByTemplate[template]
	return nodes, ok
}

// Roots returns all instances with no dependencies, in declaration order.
func (g *Graph) Roots() []*node.Node {
	var roots []*node.Node
	for _, n := range g.ordered {
		if len(n.Deps) == 0 {
			roots = append(roots, n)
		}
	}
	return roots
}

// TopologicalOrder returns a valid linearization of the graph. Among the
// dispatchable candidates at each point, declaration order breaks ties,
// so the result is fully deterministic for a given configuration.
//
// Build has already rejected cyclic graphs, so this always covers every
// node.
func (g *Graph) TopologicalOrder() []*node.Node {
	remaining := make(map[string]int, len(g.Nodes))
	for id, n := range g.Nodes {
		remaining[id] = len(n.Deps)
	}

	candidates := make([]*node.Node, 0, len(g.ordered))
	for _, n := range g.ordered {
		if remaining[n.ID()] == 0 {
			candidates = append(candidates, n)
		}
	}

	out := make([]*node.Node, 0, len(g.Nodes))
	for len(candidates) > 0 {
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].DeclIndex < candidates[j].DeclIndex
		})
		n := candidates[0]
		candidates = candidates[1:]
		out = append(out, n)

		for _, dependent := range n.Dependents {
			remaining[dependent.ID()]--
			if remaining[dependent.ID()] == 0 {
				candidates = append(candidates, dependent)
			}
		}
	}
	return out
}

// detectCycles checks for circular dependencies in the graph using DFS.
// The returned error names the members of the first cycle found.
func (g *Graph) detectCycles() error {
	visiting := make(map[string]bool)
	visited := make(map[string]bool)
	var stack []string

	var visit func(n *node.Node) error
	visit = func(n *node.Node) error {
		visiting[n.ID()] = true
		stack = append(stack, n.ID())

		for _, depID := range sortedKeys(n.Deps) {
			dep := n.Deps[depID]
			if visiting[dep.ID()] {
				return &CyclicDependencyError{Cycle: cycleFrom(stack, dep.ID())}
			}
			if !visited[dep.ID()] {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		stack = stack[:len(stack)-1]
		delete(visiting, n.ID())
		visited[n.ID()] = true
		return nil
	}

	for _, n := range g.ordered {
		if !visited[n.ID()] {
			if err := visit(n); err != nil {
				return err
			}
		}
	}
	return nil
}

// cycleFrom slices the DFS stack down to the segment forming the cycle
// and closes the loop with the repeated node.
func cycleFrom(stack []string, repeat string) []string {
	for i, id := range stack {
		if id == repeat {
			cycle := append([]string{}, stack[i:]...)
			return append(cycle, repeat)
		}
	}
	return append([]string{}, repeat)
}

// sortedKeys gives a stable iteration order over a node map, keeping
// cycle reports deterministic.
func sortedKeys(m map[string]*node.Node) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
