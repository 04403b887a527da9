package dag

import (
	"fmt"
	"strings"
)

// UnresolvedDependencyError reports a needs entry that does not name any
// declared job template.
type UnresolvedDependencyError struct {
	Job   string
	Needs string
}

func (e *UnresolvedDependencyError) Error() string {
	return fmt.Sprintf("job '%s' needs non-existent job '%s'", e.Job, e.Needs)
}

// CyclicDependencyError reports a dependency cycle, naming its members in
// traversal order.
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// DuplicateJobError reports two job templates declared with the same name.
type DuplicateJobError struct {
	Job string
}

func (e *DuplicateJobError) Error() string {
	return fmt.Sprintf("job '%s' is declared more than once", e.Job)
}

// MalformedMatrixError reports an invalid matrix specification, such as a
// duplicate axis name.
type MalformedMatrixError struct {
	Job    string
	Reason string
}

func (e *MalformedMatrixError) Error() string {
	return fmt.Sprintf("job '%s' has a malformed matrix: %s", e.Job, e.Reason)
}
