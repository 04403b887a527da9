package node

// Outcome is the lifecycle state of a job instance.
type Outcome int32

const (
	// Pending indicates the instance is waiting for its dependencies.
	Pending Outcome = iota
	// Running indicates the instance is currently executing its steps.
	Running
	// Succeeded indicates every non-skipped step completed successfully.
	Succeeded
	// Failed indicates a step failed, or the instance could not start
	// (e.g. no matching runner).
	Failed
	// Skipped indicates the instance never ran because an upstream
	// dependency did not succeed.
	Skipped
	// TimedOut indicates a step exceeded its effective timeout.
	TimedOut
	// Canceled indicates the instance was aborted while running or about
	// to run, e.g. on a global abort request.
	Canceled
)

// String returns the human-readable outcome name.
func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	case TimedOut:
		return "timed_out"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can occur from o.
func (o Outcome) Terminal() bool {
	switch o {
	case Succeeded, Failed, Skipped, TimedOut, Canceled:
		return true
	default:
		return false
	}
}
