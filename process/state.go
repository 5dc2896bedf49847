package process

// State represents the current lifecycle state of a process
type State int

const (
	// StateCreated indicates the process was constructed but not configured
	StateCreated State = iota
	// StateConfigured indicates configuration was absorbed and validated
	StateConfigured
	// StateInitialized indicates one-time setup completed
	StateInitialized
	// StateStepping indicates the process is currently executing a step
	StateStepping
	// StateIdle indicates the process is between steps
	StateIdle
	// StateComplete indicates the process will produce no more data
	StateComplete
	// StateFailed indicates the process failed during a lifecycle operation
	StateFailed
)

// String returns a string representation of the process state
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateConfigured:
		return "configured"
	case StateInitialized:
		return "initialized"
	case StateStepping:
		return "stepping"
	case StateIdle:
		return "idle"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// legalTransitions maps each state to the states it may move to.
// Any state may additionally move to StateFailed.
var legalTransitions = map[State][]State{
	StateCreated:     {StateConfigured},
	StateConfigured:  {StateInitialized},
	StateInitialized: {StateStepping, StateIdle, StateComplete, StateInitialized},
	StateStepping:    {StateIdle, StateComplete},
	StateIdle:        {StateStepping, StateComplete, StateInitialized},
	StateComplete:    {StateInitialized},
	StateFailed:      {},
}

// CanTransition reports whether moving from one state to another is legal
func CanTransition(from, to State) bool {
	if to == StateFailed {
		return true
	}
	for _, s := range legalTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// StepStatus is the result of one unit of work
type StepStatus int

const (
	// StepOK indicates the step produced or consumed data normally
	StepOK StepStatus = iota
	// StepComplete indicates the process will produce no more data; it has
	// pushed an end-of-data marker on every output it owns
	StepComplete
	// StepError indicates the process signalled an internal failure
	StepError
)

// String returns a string representation of the step status
func (s StepStatus) String() string {
	switch s {
	case StepOK:
		return "ok"
	case StepComplete:
		return "complete"
	case StepError:
		return "error"
	default:
		return "unknown"
	}
}
