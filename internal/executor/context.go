package executor

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/gridrun/internal/node"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// buildEvalContext creates the HCL evaluation context for an instance's
// guard expressions. Guards see the matrix assignment under `matrix` and
// the job identity under `job`, and nothing else.
func buildEvalContext(n *node.Node) *hcl.EvalContext {
	vars := map[string]cty.Value{
		"matrix": n.Assignment.ObjectVal(),
		"job": cty.ObjectVal(map[string]cty.Value{
			"name": cty.StringVal(n.Job.Name),
		}),
	}
	return &hcl.EvalContext{Variables: vars}
}

// evalGuard evaluates a step guard to a boolean. Anything other than a
// known boolean value (after conversion) is an error, never a silent
// skip.
func evalGuard(expr hcl.Expression, evalCtx *hcl.EvalContext) (bool, error) {
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return false, fmt.Errorf("guard evaluation: %w", diags)
	}

	val, err := convert.Convert(val, cty.Bool)
	if err != nil {
		return false, fmt.Errorf("guard did not produce a boolean: %w", err)
	}
	if val.IsNull() || !val.IsKnown() {
		return false, fmt.Errorf("guard produced a null or unknown value")
	}
	return val.True(), nil
}
