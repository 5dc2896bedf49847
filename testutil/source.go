package testutil

import (
	"github.com/c360/flowkit/datum"
	"github.com/c360/flowkit/process"
)

// Source emits a fixed number of datums stamped 0..count-1, then completes.
// It has no inputs, so it carries the unsynchronized property.
type Source struct {
	*process.Base
	count   int
	emitted int
	value   func(i int) any
}

// NewSource creates a source producing count datums of the given port type.
// The value factory is called with the emission index; a nil factory emits
// the index itself.
func NewSource(name, typ string, count int, value func(i int) any) *Source {
	if value == nil {
		value = func(i int) any { return i }
	}
	s := &Source{
		Base: process.NewBase(name, "test-source",
			process.WithProperty(process.PropertyUnsynchronized)),
		count: count,
		value: value,
	}
	s.DeclareOutputPort("out", typ, true, "generated values")
	s.DeclareConfigKey("count", "", "overrides the number of datums to emit", false)
	return s
}

// Initialize honors a "count" configuration override
func (s *Source) Initialize() error {
	if cfg := s.Config(); cfg != nil {
		if n, err := cfg.GetInt("count"); err == nil {
			s.count = n
		}
	}
	return s.Base.Initialize()
}

// Step emits one datum, or reports completion once count datums are out
func (s *Source) Step() (process.StepStatus, error) {
	if s.emitted >= s.count {
		return process.StepComplete, nil
	}

	d := datum.New(s.OutputStamp(), s.value(s.emitted))
	if err := s.PushToPort("out", d); err != nil {
		// Downstream full or shutting down; nothing was consumed
		return process.StepOK, err
	}
	s.AdvanceStamp()
	s.emitted++
	return process.StepOK, nil
}

// Emitted returns how many datums have been produced so far
func (s *Source) Emitted() int { return s.emitted }
