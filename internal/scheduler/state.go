package scheduler

// State is the lifecycle position of a run.
type State int

// Run states. Checkpointing is entered and left repeatedly while Running.
const (
	StateNotStarted State = iota
	StateRunning
	StateCheckpointing
	StateCompleted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateRunning:
		return "running"
	case StateCheckpointing:
		return "checkpointing"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether the run has finished.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateAborted
}
