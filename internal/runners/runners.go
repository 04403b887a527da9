// Package runners implements the runner-selection collaborator: given a
// job's runs_on constraint it returns the execution context (labels,
// environment, working directory) its steps operate in.
package runners

import (
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/vk/gridrun/internal/config"
)

// Runner is one execution context jobs can be placed on.
type Runner struct {
	Name    string
	Labels  []string
	Env     []string
	Workdir string
}

// SelectionError reports a runs_on constraint no registered runner
// satisfies. It is a distinct failure from anything a step can produce:
// the job never starts.
type SelectionError struct {
	Constraint []string
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("no runner matches constraint [%s]", strings.Join(e.Constraint, ", "))
}

// Pool holds the registered runners in registration order; the first
// match wins, so selection is deterministic.
type Pool struct {
	runners []*Runner
}

// NewPool builds a pool from the configured runner definitions. When the
// configuration declares none, the pool contains only the default local
// runner.
func NewPool(defs map[string]*config.RunnerDef) *Pool {
	if len(defs) == 0 {
		return &Pool{runners: []*Runner{localRunner()}}
	}

	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)

	p := &Pool{}
	for _, name := range names {
		def := defs[name]
		env := make([]string, 0, len(def.Env))
		for k, v := range def.Env {
			env = append(env, k+"="+v)
		}
		sort.Strings(env)
		p.runners = append(p.runners, &Runner{
			Name:    def.Name,
			Labels:  def.Labels,
			Env:     env,
			Workdir: def.Workdir,
		})
	}
	return p
}

// localRunner describes the engine's own host: the platform and
// architecture it runs on, tagged "local".
func localRunner() *Runner {
	return &Runner{
		Name:   "local",
		Labels: []string{"local", runtime.GOOS, runtime.GOARCH},
	}
}

// Select returns the first registered runner whose label set covers
// every label in the constraint. An empty constraint matches the first
// runner. No match yields a *SelectionError.
func (p *Pool) Select(constraint []string) (*Runner, error) {
	for _, r := range p.runners {
		if covers(r.Labels, constraint) {
			return r, nil
		}
	}
	return nil, &SelectionError{Constraint: constraint}
}

// covers reports whether every wanted label appears in have.
func covers(have, want []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
