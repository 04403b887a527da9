// Package yaml implements a pipeline loader for GitHub-Actions-flavored
// YAML documents, feeding the same format-agnostic model as the native
// HCL loader. Guard strings from `if:` are parsed with the HCL
// expression syntax so both formats share one guard language.
package yaml

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/vk/gridrun/internal/config"
	"github.com/vk/gridrun/internal/ctxlog"
	"github.com/vk/gridrun/internal/fsutil"
	"gopkg.in/yaml.v3"
)

// Loader is the YAML implementation of config.Loader.
type Loader struct{}

// NewLoader creates a new YAML loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads every .yml/.yaml file under the given paths and merges
// them into a single model. The document is walked as a yaml.Node tree
// rather than unmarshaled into maps, so job and matrix-axis declaration
// order is preserved.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)

	model := &config.Model{
		Pipeline: &config.Pipeline{},
		Runners:  make(map[string]*config.RunnerDef),
	}

	for _, path := range paths {
		files, err := fsutil.FindFilesByExtensions(path, ".yml", ".yaml")
		if err != nil {
			return nil, fmt.Errorf("finding pipeline files in %q: %w", path, err)
		}
		for _, file := range files {
			logger.Debug("Parsing pipeline file.", "file", file)
			if err := loadFile(file, model); err != nil {
				return nil, err
			}
		}
	}

	if len(model.Pipeline.Jobs) == 0 {
		return nil, fmt.Errorf("no jobs defined in %v", paths)
	}
	logger.Debug("Pipeline configuration loaded.", "jobs", len(model.Pipeline.Jobs))
	return model, nil
}

func loadFile(path string, model *config.Model) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(doc.Content) == 0 {
		return nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("%s: top level must be a mapping", path)
	}

	for i := 0; i < len(root.Content)-1; i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		switch key.Value {
		case "name":
			if model.Pipeline.Name == "" {
				model.Pipeline.Name = value.Value
			}
		case "jobs":
			if value.Kind != yaml.MappingNode {
				return fmt.Errorf("%s: jobs must be a mapping", path)
			}
			for j := 0; j < len(value.Content)-1; j += 2 {
				jobName, jobNode := value.Content[j], value.Content[j+1]
				job, err := translateJob(jobName.Value, jobNode)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				model.Pipeline.Jobs = append(model.Pipeline.Jobs, job)
			}
		}
	}
	return nil
}

func translateJob(name string, n *yaml.Node) (*config.Job, error) {
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("job %q must be a mapping", name)
	}

	job := &config.Job{Name: name, Required: true}

	for i := 0; i < len(n.Content)-1; i += 2 {
		key, value := n.Content[i], n.Content[i+1]
		switch key.Value {
		case "needs":
			needs, err := stringList(value)
			if err != nil {
				return nil, fmt.Errorf("job %q needs: %w", name, err)
			}
			job.Needs = needs
		case "runs-on":
			runsOn, err := stringList(value)
			if err != nil {
				return nil, fmt.Errorf("job %q runs-on: %w", name, err)
			}
			job.RunsOn = runsOn
		case "timeout-minutes":
			d, err := minutes(value)
			if err != nil {
				return nil, fmt.Errorf("job %q timeout-minutes: %w", name, err)
			}
			job.Timeout = d
		case "required":
			var required bool
			if err := value.Decode(&required); err != nil {
				return nil, fmt.Errorf("job %q required: %w", name, err)
			}
			job.Required = required
		case "strategy":
			m, err := translateStrategy(name, value)
			if err != nil {
				return nil, err
			}
			job.Matrix = m
		case "steps":
			if value.Kind != yaml.SequenceNode {
				return nil, fmt.Errorf("job %q steps must be a sequence", name)
			}
			for idx, stepNode := range value.Content {
				step, err := translateStep(name, idx, stepNode)
				if err != nil {
					return nil, err
				}
				job.Steps = append(job.Steps, step)
			}
		}
	}
	return job, nil
}

// translateStrategy extracts strategy.matrix with axis declaration order
// intact.
func translateStrategy(jobName string, n *yaml.Node) (*config.Matrix, error) {
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("job %q strategy must be a mapping", jobName)
	}
	for i := 0; i < len(n.Content)-1; i += 2 {
		if n.Content[i].Value != "matrix" {
			continue
		}
		matrixNode := n.Content[i+1]
		if matrixNode.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("job %q matrix must be a mapping", jobName)
		}
		m := &config.Matrix{}
		for j := 0; j < len(matrixNode.Content)-1; j += 2 {
			axisName, valuesNode := matrixNode.Content[j], matrixNode.Content[j+1]
			values, err := stringList(valuesNode)
			if err != nil {
				return nil, fmt.Errorf("job %q matrix axis %q: %w", jobName, axisName.Value, err)
			}
			m.Axes = append(m.Axes, config.Axis{Name: axisName.Value, Values: values})
		}
		return m, nil
	}
	return nil, nil
}

func translateStep(jobName string, index int, n *yaml.Node) (*config.Step, error) {
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("job %q step %d must be a mapping", jobName, index+1)
	}

	// YAML steps run through the shell by default, matching the CI
	// systems this format imitates.
	step := &config.Step{Shell: true}

	for i := 0; i < len(n.Content)-1; i += 2 {
		key, value := n.Content[i], n.Content[i+1]
		switch key.Value {
		case "name":
			step.Name = value.Value
		case "run":
			step.Run = value.Value
		case "if":
			expr, err := parseGuard(value.Value)
			if err != nil {
				return nil, fmt.Errorf("job %q step %d if: %w", jobName, index+1, err)
			}
			step.If = expr
		case "timeout-minutes":
			d, err := minutes(value)
			if err != nil {
				return nil, fmt.Errorf("job %q step %d timeout-minutes: %w", jobName, index+1, err)
			}
			step.Timeout = d
		case "continue-on-error":
			var cont bool
			if err := value.Decode(&cont); err != nil {
				return nil, fmt.Errorf("job %q step %d continue-on-error: %w", jobName, index+1, err)
			}
			step.ContinueOnError = cont
		case "env":
			env := make(map[string]string)
			if err := value.Decode(&env); err != nil {
				return nil, fmt.Errorf("job %q step %d env: %w", jobName, index+1, err)
			}
			step.Env = env
		}
	}

	if step.Run == "" {
		return nil, fmt.Errorf("job %q step %d has no run command", jobName, index+1)
	}
	if step.Name == "" {
		step.Name = fmt.Sprintf("step-%d", index+1)
	}
	return step, nil
}

// parseGuard parses an `if:` string as an HCL expression.
func parseGuard(src string) (hcl.Expression, error) {
	expr, diags := hclsyntax.ParseExpression([]byte(src), "if", hcl.InitialPos)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing guard %q: %w", src, diags)
	}
	return expr, nil
}

// stringList accepts either a scalar or a sequence of scalars.
func stringList(n *yaml.Node) ([]string, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return []string{n.Value}, nil
	case yaml.SequenceNode:
		out := []string{}
		for _, elem := range n.Content {
			if elem.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("expected scalar values")
			}
			out = append(out, elem.Value)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a scalar or a sequence")
	}
}

// minutes decodes a timeout-minutes scalar into a duration.
func minutes(n *yaml.Node) (time.Duration, error) {
	var m float64
	if err := n.Decode(&m); err != nil {
		return 0, err
	}
	if m < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return time.Duration(m * float64(time.Minute)), nil
}
