package node

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/vk/gridrun/internal/config"
	"github.com/vk/gridrun/internal/instance"
	"github.com/vk/gridrun/internal/matrix"
)

// Node is a single vertex in the execution graph, representing one
// concrete job instance produced by matrix expansion.
type Node struct {
	// id is the unique, machine-readable identifier for the instance.
	id instance.ID
	// Job is the template this instance was expanded from.
	Job *config.Job
	// Assignment is the instance's matrix assignment, possibly empty.
	Assignment matrix.Assignment
	// DeclIndex orders instances by template declaration order, then
	// expansion order. Used for deterministic topological tie-breaking.
	DeclIndex int

	// Deps holds the set of nodes this node is gated on (predecessors).
	Deps map[string]*Node
	// Dependents holds the set of nodes gated on this node (successors).
	Dependents map[string]*Node

	// Err stores the error that drove the node to a non-success outcome.
	Err error

	// --- Internal state management ---

	// depCount is an atomic counter of unmet dependencies.
	depCount atomic.Int32
	// outcome is the node's current lifecycle state, managed atomically.
	// The executor is the only writer once scheduling begins.
	outcome atomic.Int32
	// finishOnce guarantees the one-shot completion signal: a node is
	// accounted exactly once whether it ran, was skipped, or was canceled.
	finishOnce sync.Once

	// stepsMu guards Steps while the owning job runner appends results.
	stepsMu sync.Mutex
	steps   []StepResult
}

// New creates a node for the given template instance.
func New(job *config.Job, assignment matrix.Assignment, declIndex int) *Node {
	return &Node{
		id:         instance.New(job.Name, assignment),
		Job:        job,
		Assignment: assignment,
		DeclIndex:  declIndex,
		Deps:       make(map[string]*Node),
		Dependents: make(map[string]*Node),
	}
}

// ID returns the canonical string form of the instance identifier.
func (n *Node) ID() string {
	return n.id.String()
}

// Instance returns the structured instance identifier.
func (n *Node) Instance() instance.ID {
	return n.id
}

// SetDepCount initializes the unmet-dependency counter.
func (n *Node) SetDepCount(count int32) {
	n.depCount.Store(count)
}

// DepCount atomically returns the current number of unmet dependencies.
func (n *Node) DepCount() int32 {
	return n.depCount.Load()
}

// DecrementDepCount atomically decrements the dependency counter and
// returns the new value. The node is dispatchable when it reaches zero.
func (n *Node) DecrementDepCount() int32 {
	return n.depCount.Add(-1)
}

// SetOutcome atomically sets the node's lifecycle state.
func (n *Node) SetOutcome(o Outcome) {
	n.outcome.Store(int32(o))
}

// Outcome atomically retrieves the node's lifecycle state.
func (n *Node) Outcome() Outcome {
	return Outcome(n.outcome.Load())
}

// Finish transitions the node to a terminal outcome exactly once and
// consumes one unit of the given WaitGroup. It returns true if this call
// performed the transition.
func (n *Node) Finish(o Outcome, err error, wg *sync.WaitGroup) bool {
	var first bool
	n.finishOnce.Do(func() {
		// Err is published before the atomic outcome store so readers
		// that observe a terminal outcome also observe the error.
		n.Err = err
		n.SetOutcome(o)
		wg.Done()
		first = true
	})
	return first
}

// RecordStep appends one step result to the node's retained step list.
func (n *Node) RecordStep(r StepResult) {
	n.stepsMu.Lock()
	defer n.stepsMu.Unlock()
	n.steps = append(n.steps, r)
}

// StepResults returns the ordered step results recorded so far.
func (n *Node) StepResults() []StepResult {
	n.stepsMu.Lock()
	defer n.stepsMu.Unlock()
	out := make([]StepResult, len(n.steps))
	copy(out, n.steps)
	return out
}

// StepResult is the retained record of one step's execution within a job
// instance.
type StepResult struct {
	Name     string
	Status   StepStatus
	ExitCode int
	Duration time.Duration
	Err      error
}

// StepStatus is the terminal per-step state.
type StepStatus int

const (
	// StepSucceeded indicates the step's command exited zero.
	StepSucceeded StepStatus = iota
	// StepFailed indicates a nonzero exit or a launch failure.
	StepFailed
	// StepSkipped indicates the step's guard evaluated false; no command
	// was executed.
	StepSkipped
	// StepTimedOut indicates the step exceeded its effective timeout.
	StepTimedOut
)

// String returns the human-readable step status name.
func (s StepStatus) String() string {
	switch s {
	case StepSucceeded:
		return "succeeded"
	case StepFailed:
		return "failed"
	case StepSkipped:
		return "skipped"
	case StepTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}
