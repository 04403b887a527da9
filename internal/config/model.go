package config

import (
	"time"

	"github.com/hashicorp/hcl/v2"
)

// Model is the unified, format-agnostic representation of the entire
// pipeline configuration: the jobs to run plus the runner definitions
// they may be placed on.
type Model struct {
	Pipeline *Pipeline
	Runners  map[string]*RunnerDef
}

// Pipeline is the user's job graph definition. Jobs preserve declaration
// order, which drives deterministic expansion and topological tie-breaking.
type Pipeline struct {
	Name string
	Jobs []*Job
}

// Job is the format-agnostic representation of one job template.
type Job struct {
	// Name is the template identifier referenced by other jobs' Needs.
	Name string
	// Needs lists template identifiers that must succeed before any
	// instance of this job may start.
	Needs []string
	// RunsOn is the runner-selection constraint: every label listed here
	// must be carried by the selected runner.
	RunsOn []string
	// Timeout is the default per-step timeout for this job. Zero means
	// unbounded.
	Timeout time.Duration
	// Required marks the job as contributing to the process exit code.
	Required bool
	// Matrix is the optional expansion specification. Nil means the job
	// yields exactly one instance.
	Matrix *Matrix
	// Steps run strictly in declaration order.
	Steps []*Step
}

// Matrix is a set of named axes. Instances are the cartesian product of
// the axis values, with the first declared axis varying slowest.
type Matrix struct {
	Axes []Axis
}

// Axis is one named, ordered list of values. Values are kept in their
// canonical string form regardless of the source format.
type Axis struct {
	Name   string
	Values []string
}

// Step is a single command within a job.
type Step struct {
	Name string
	// Run is the command to execute. It is opaque to the engine.
	Run string
	// If is the optional guard expression, evaluated against the
	// instance's matrix assignment. Nil means the step always runs.
	If hcl.Expression
	// Timeout overrides the job default for this step. Zero means
	// "inherit".
	Timeout time.Duration
	// ContinueOnError records the step's failure without failing the job.
	ContinueOnError bool
	// Shell runs the command through `sh -c` instead of splitting it into
	// an argv list.
	Shell bool
	// Env is merged over the runner environment for this step.
	Env map[string]string
}

// RunnerDef describes an execution context jobs can be placed on.
type RunnerDef struct {
	Name string
	// Labels advertise the runner's capabilities (platform, arch, custom
	// tags). A job's RunsOn constraint must be a subset of these.
	Labels []string
	// Env is the base environment for commands on this runner.
	Env map[string]string
	// Workdir is the working directory for commands on this runner.
	// Empty means the engine process's working directory.
	Workdir string
}
