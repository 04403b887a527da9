// Package schema defines the HCL block structures for pipeline files.
// These are the raw decoding targets; the hcl loader translates them
// into the format-agnostic config model.
package schema

import (
	"github.com/hashicorp/hcl/v2"
)

// MatrixBlock holds the raw body of a `matrix` block. Axes are its
// attributes; the loader extracts them in source order.
type MatrixBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// Step represents a `step` block inside a job.
type Step struct {
	Name            string            `hcl:"name,label"`
	Run             string            `hcl:"run"`
	If              hcl.Expression    `hcl:"if,optional"`
	Timeout         string            `hcl:"timeout,optional"`
	ContinueOnError bool              `hcl:"continue_on_error,optional"`
	Shell           bool              `hcl:"shell,optional"`
	Env             map[string]string `hcl:"env,optional"`
}

// Job represents a `job` block from a pipeline file.
type Job struct {
	Name     string       `hcl:"name,label"`
	Needs    []string     `hcl:"needs,optional"`
	RunsOn   []string     `hcl:"runs_on,optional"`
	Timeout  string       `hcl:"timeout,optional"`
	Required *bool        `hcl:"required,optional"`
	Matrix   *MatrixBlock `hcl:"matrix,block"`
	Steps    []*Step      `hcl:"step,block"`
}

// Runner represents a `runner` block declaring an execution context.
type Runner struct {
	Name    string            `hcl:"name,label"`
	Labels  []string          `hcl:"labels"`
	Env     map[string]string `hcl:"env,optional"`
	Workdir string            `hcl:"workdir,optional"`
}

// PipelineConfig represents the top-level structure of a pipeline file.
type PipelineConfig struct {
	Name    string    `hcl:"name,optional"`
	Jobs    []*Job    `hcl:"job,block"`
	Runners []*Runner `hcl:"runner,block"`
	Body    hcl.Body  `hcl:",remain"`
}
