package hcl

import (
	"fmt"
	"sort"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/gridrun/internal/config"
	"github.com/vk/gridrun/internal/schema"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// translateJob converts the HCL-specific job schema into the agnostic model.
func (l *Loader) translateJob(s *schema.Job) (*config.Job, error) {
	timeout, err := parseTimeout(s.Timeout)
	if err != nil {
		return nil, fmt.Errorf("job %q: %w", s.Name, err)
	}

	m, err := l.translateMatrix(s.Name, s.Matrix)
	if err != nil {
		return nil, err
	}

	required := true
	if s.Required != nil {
		required = *s.Required
	}

	job := &config.Job{
		Name:     s.Name,
		Needs:    s.Needs,
		RunsOn:   s.RunsOn,
		Timeout:  timeout,
		Required: required,
		Matrix:   m,
	}

	for _, rawStep := range s.Steps {
		step, err := translateStep(rawStep)
		if err != nil {
			return nil, fmt.Errorf("job %q: %w", s.Name, err)
		}
		job.Steps = append(job.Steps, step)
	}
	return job, nil
}

// translateStep converts one step block.
func translateStep(s *schema.Step) (*config.Step, error) {
	timeout, err := parseTimeout(s.Timeout)
	if err != nil {
		return nil, fmt.Errorf("step %q: %w", s.Name, err)
	}
	return &config.Step{
		Name:            s.Name,
		Run:             s.Run,
		If:              normalizeExpr(s.If),
		Timeout:         timeout,
		ContinueOnError: s.ContinueOnError,
		Shell:           s.Shell,
		Env:             s.Env,
	}, nil
}

// translateMatrix extracts the axes of a matrix block. Axes are the
// block's attributes, ordered by source position so that declaration
// order is preserved; each value must statically evaluate to a list of
// primitives, stored in canonical string form.
func (l *Loader) translateMatrix(jobName string, block *schema.MatrixBlock) (*config.Matrix, error) {
	if block == nil {
		return nil, nil
	}

	attrs, diags := block.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("job %q matrix: %w", jobName, diags)
	}

	ordered := make([]*hcl.Attribute, 0, len(attrs))
	for _, attr := range attrs {
		ordered = append(ordered, attr)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Range.Start.Byte < ordered[j].Range.Start.Byte
	})

	m := &config.Matrix{}
	for _, attr := range ordered {
		values, err := axisValues(attr)
		if err != nil {
			return nil, fmt.Errorf("job %q matrix axis %q: %w", jobName, attr.Name, err)
		}
		m.Axes = append(m.Axes, config.Axis{Name: attr.Name, Values: values})
	}
	return m, nil
}

// axisValues statically evaluates one axis attribute to its value list.
func axisValues(attr *hcl.Attribute) ([]string, error) {
	val, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("evaluating values: %w", diags)
	}
	if !val.CanIterateElements() {
		return nil, fmt.Errorf("values must be a list, got %s", val.Type().FriendlyName())
	}

	// An explicitly empty axis is allowed; expansion turns it into zero
	// instances.
	values := []string{}
	for it := val.ElementIterator(); it.Next(); {
		_, elem := it.Element()
		strVal, err := convert.Convert(elem, cty.String)
		if err != nil {
			return nil, fmt.Errorf("value is not a primitive: %w", err)
		}
		if strVal.IsNull() {
			return nil, fmt.Errorf("value must not be null")
		}
		values = append(values, strVal.AsString())
	}
	return values, nil
}

// normalizeExpr maps the "attribute absent" expression gohcl produces
// for optional fields back to nil, so downstream code can treat nil as
// "no guard".
func normalizeExpr(expr hcl.Expression) hcl.Expression {
	if expr == nil {
		return nil
	}
	if len(expr.Variables()) == 0 {
		if val, diags := expr.Value(nil); !diags.HasErrors() && val.IsNull() {
			return nil
		}
	}
	return expr
}

// parseTimeout parses an optional duration string; empty means zero.
func parseTimeout(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("timeout %q must not be negative", s)
	}
	return d, nil
}
