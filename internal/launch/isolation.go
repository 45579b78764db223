package launch

// Outcome of requesting a private PID namespace for the child.
type IsolationState int

const (

	// The child runs in its own PID namespace.
	Isolated IsolationState = iota

	// The platform has no PID namespaces.
	Unsupported

	// Namespaces exist but one could not be created, usually for lack of
	// privileges. The child ran in the caller's namespace.
	Failed
)

func (s IsolationState) String() string {
	switch s {
	case Isolated:
		return "isolated"
	case Unsupported:
		return "unsupported"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Isolation outcome for one launch.
type Isolation struct {
	State  IsolationState
	Reason string // Why isolation was not obtained. Empty when Isolated.
}
