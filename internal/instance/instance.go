// Package instance defines the structured identifier for a concrete job
// instance: the owning template plus its matrix assignment.
package instance

import (
	"fmt"

	"github.com/vk/gridrun/internal/matrix"
)

// ID is the structured representation of a unique job-instance
// identifier. Two IDs built from the same template and an identical
// assignment are the same instance, which makes expansion idempotent.
type ID struct {
	// Template is the job template name from the configuration.
	Template string
	// Assignment is the concrete axis-value choice, possibly empty.
	Assignment matrix.Assignment
}

// New builds the instance ID for a template and assignment.
func New(template string, assignment matrix.Assignment) ID {
	return ID{Template: template, Assignment: assignment}
}

// String serializes the ID into its canonical form:
// "job.<name>" for non-matrix jobs, "job.<name>[k=v,...]" otherwise.
func (id ID) String() string {
	if id.Assignment.Empty() {
		return fmt.Sprintf("job.%s", id.Template)
	}
	return fmt.Sprintf("job.%s[%s]", id.Template, id.Assignment.String())
}

// Equal reports whether two IDs identify the same instance.
func (id ID) Equal(other ID) bool {
	return id.String() == other.String()
}
