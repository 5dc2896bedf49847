package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/c360/flowkit/errors"
	"github.com/c360/flowkit/process"
)

// State represents the scheduler lifecycle state
type State int

const (
	// StateIdle indicates the scheduler has not started
	StateIdle State = iota
	// StateRunning indicates the scheduler is stepping processes
	StateRunning
	// StateStopped indicates the run finished or was stopped cleanly
	StateStopped
	// StateFailed indicates the run ended with a pipeline error
	StateFailed
)

// String returns a string representation of the scheduler state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Scheduler drives process stepping according to a concurrency policy
type Scheduler interface {
	// Run steps the pipeline to completion or failure. It blocks until
	// every process reports complete, the context is cancelled, Stop is
	// called, or a step error stops the run.
	Run(ctx context.Context) error
	// Stop requests an orderly shutdown; safe to call from any goroutine
	Stop()
	// State returns the current scheduler state
	State() State
}

// StallPolicy bounds how long a stamp mismatch between the inputs of a
// synchronized process may persist.
type StallPolicy struct {
	// MaxConsecutiveStalls is the number of consecutive stalled step
	// attempts tolerated per process before the mismatch is reported as
	// a fatal pipeline error. Zero means stall indefinitely.
	MaxConsecutiveStalls int
	// StallDelay is how long a stalled process waits before retrying.
	// Zero selects a small default.
	StallDelay time.Duration
}

// delay returns the effective retry delay
func (sp StallPolicy) delay() time.Duration {
	if sp.StallDelay <= 0 {
		return 10 * time.Millisecond
	}
	return sp.StallDelay
}

// exceeded reports whether a stall count has passed the policy bound
func (sp StallPolicy) exceeded(stalls int) bool {
	return sp.MaxConsecutiveStalls > 0 && stalls >= sp.MaxConsecutiveStalls
}

// stallFault builds the fatal error for a mismatch that persisted beyond
// the policy bound.
func (sp StallPolicy) stallFault(processName string, stalls int, cause error) error {
	return errors.WrapFatal(
		fmt.Errorf("%w: process %q stalled %d consecutive times: %v",
			errors.ErrStampMismatch, processName, stalls, cause),
		"Scheduler", "step", "stall policy")
}

// stepModer is implemented by process.Base; schedulers use it to select
// blocking or cooperative edge behavior before a run.
type stepModer interface {
	SetBlockingStepMode(blocking bool)
}

// stateSetter is implemented by process.Base; schedulers use it to move
// processes between stepping and idle around each step.
type stateSetter interface {
	SetState(process.State) error
}

// completer is implemented by process.Base; schedulers use it to drive the
// completion path when a process's required input closed.
type completer interface {
	MarkComplete() error
}

// stepOnce executes one step on a process with the stepping/idle
// transitions around it.
func stepOnce(p process.Process) (process.StepStatus, error) {
	setter, ok := p.(stateSetter)
	if ok {
		if err := setter.SetState(process.StateStepping); err != nil {
			return process.StepError, err
		}
	}

	status, err := p.Step()

	if ok && p.State() == process.StateStepping {
		if serr := setter.SetState(process.StateIdle); serr != nil && err == nil {
			return process.StepError, serr
		}
	}
	return status, err
}

// completeProcess drives a process's completion path after its required
// input closed: the process pushes end-of-data markers downstream and
// moves to the complete state.
func completeProcess(p process.Process) error {
	if c, ok := p.(completer); ok {
		return c.MarkComplete()
	}
	return nil
}

// setStepMode applies the step mode to every process that supports it
func setStepMode(procs []process.Process, blocking bool) {
	for _, p := range procs {
		if m, ok := p.(stepModer); ok {
			m.SetBlockingStepMode(blocking)
		}
	}
}
