// Package matrix expands a job's axis specification into the concrete
// assignments that become job instances.
package matrix

import (
	"strings"

	"github.com/vk/gridrun/internal/config"
	"github.com/zclconf/go-cty/cty"
)

// Assignment is one concrete choice of value for every declared axis.
// Keys preserve axis declaration order.
type Assignment struct {
	Keys   []string
	Values map[string]string
}

// Empty reports whether the assignment carries no axis values.
func (a Assignment) Empty() bool {
	return len(a.Keys) == 0
}

// Get returns the value assigned to the named axis.
func (a Assignment) Get(axis string) (string, bool) {
	v, ok := a.Values[axis]
	return v, ok
}

// String renders the assignment as "k=v,k=v" in axis declaration order.
// An empty assignment renders as "".
func (a Assignment) String() string {
	if a.Empty() {
		return ""
	}
	var sb strings.Builder
	for i, k := range a.Keys {
		if i > 0 {
			sb.WriteRune(',')
		}
		sb.WriteString(k)
		sb.WriteRune('=')
		sb.WriteString(a.Values[k])
	}
	return sb.String()
}

// ObjectVal converts the assignment into a cty object for guard
// expression evaluation. An empty assignment yields an empty object.
func (a Assignment) ObjectVal() cty.Value {
	if a.Empty() {
		return cty.EmptyObjectVal
	}
	vals := make(map[string]cty.Value, len(a.Keys))
	for k, v := range a.Values {
		vals[k] = cty.StringVal(v)
	}
	return cty.ObjectVal(vals)
}

// Expand produces the cartesian product of the matrix axes as a slice of
// assignments. Expansion order follows axis declaration order, then value
// order within each axis, with the first axis varying slowest.
//
// A nil matrix (or one with zero axes) yields exactly one empty
// assignment. An axis with an empty value list yields zero assignments:
// the product of anything with an empty set is empty, and that is an
// explicit policy choice rather than an error.
func Expand(m *config.Matrix) []Assignment {
	if m == nil || len(m.Axes) == 0 {
		return []Assignment{{}}
	}

	total := 1
	for _, axis := range m.Axes {
		total *= len(axis.Values)
	}
	if total == 0 {
		return nil
	}

	keys := make([]string, len(m.Axes))
	for i, axis := range m.Axes {
		keys[i] = axis.Name
	}

	out := make([]Assignment, 0, total)
	indices := make([]int, len(m.Axes))
	for {
		values := make(map[string]string, len(m.Axes))
		for i, axis := range m.Axes {
			values[axis.Name] = axis.Values[indices[i]]
		}
		out = append(out, Assignment{Keys: keys, Values: values})

		// Advance the odometer, last axis fastest.
		i := len(indices) - 1
		for ; i >= 0; i-- {
			indices[i]++
			if indices[i] < len(m.Axes[i].Values) {
				break
			}
			indices[i] = 0
		}
		if i < 0 {
			return out
		}
	}
}
