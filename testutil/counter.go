package testutil

import (
	"sync"

	"github.com/c360/flowkit/edge"
	"github.com/c360/flowkit/process"
)

// StepCounter wraps any process and counts its Step invocations while
// delegating everything else, including the binding and scheduling hooks
// the pipeline and schedulers discover by assertion.
type StepCounter struct {
	process.Process
	mu    sync.Mutex
	steps int
}

// NewStepCounter wraps a process
func NewStepCounter(p process.Process) *StepCounter {
	return &StepCounter{Process: p}
}

// Step counts the invocation and delegates
func (c *StepCounter) Step() (process.StepStatus, error) {
	c.mu.Lock()
	c.steps++
	c.mu.Unlock()
	return c.Process.Step()
}

// Steps returns how many times Step has been invoked
func (c *StepCounter) Steps() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.steps
}

// BindInput delegates edge binding to the wrapped process
func (c *StepCounter) BindInput(port string, e *edge.Edge) error {
	if b, ok := c.Process.(process.Binder); ok {
		return b.BindInput(port, e)
	}
	return nil
}

// BindOutput delegates edge binding to the wrapped process
func (c *StepCounter) BindOutput(port string, e *edge.Edge) error {
	if b, ok := c.Process.(process.Binder); ok {
		return b.BindOutput(port, e)
	}
	return nil
}

// SetState delegates the lifecycle transition to the wrapped process
func (c *StepCounter) SetState(s process.State) error {
	if x, ok := c.Process.(interface{ SetState(process.State) error }); ok {
		return x.SetState(s)
	}
	return nil
}

// SetBlockingStepMode delegates the step mode to the wrapped process
func (c *StepCounter) SetBlockingStepMode(blocking bool) {
	if x, ok := c.Process.(interface{ SetBlockingStepMode(bool) }); ok {
		x.SetBlockingStepMode(blocking)
	}
}

// MarkComplete delegates the completion path to the wrapped process
func (c *StepCounter) MarkComplete() error {
	if x, ok := c.Process.(interface{ MarkComplete() error }); ok {
		return x.MarkComplete()
	}
	return nil
}
