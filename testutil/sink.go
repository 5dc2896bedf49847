package testutil

import (
	"sync"

	"github.com/c360/flowkit/datum"
	"github.com/c360/flowkit/process"
)

// Sink consumes one input and records everything it receives. It is a
// terminal process: the end-of-data marker reaching it drives orderly
// completion through the scheduler.
type Sink struct {
	*process.Base
	mu       sync.Mutex
	received []datum.Datum
}

// NewSink creates a sink with a single required input of the given type
func NewSink(name, typ string) *Sink {
	s := &Sink{
		Base: process.NewBase(name, "test-sink"),
	}
	s.DeclareInputPort("in", typ, true, "recorded values")
	return s
}

// Step consumes and records one datum
func (s *Sink) Step() (process.StepStatus, error) {
	in, err := s.SyncInputs()
	if err != nil {
		return process.StepOK, err
	}
	s.mu.Lock()
	s.received = append(s.received, in["in"])
	s.mu.Unlock()
	return process.StepOK, nil
}

// Received returns a copy of everything recorded so far
func (s *Sink) Received() []datum.Datum {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]datum.Datum, len(s.received))
	copy(out, s.received)
	return out
}

// Values returns the recorded payloads in arrival order
func (s *Sink) Values() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]any, len(s.received))
	for i, d := range s.received {
		out[i] = d.Value
	}
	return out
}
