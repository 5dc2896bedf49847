package testutil

import (
	"github.com/c360/flowkit/datum"
	"github.com/c360/flowkit/process"
)

// PassThrough forwards its input to its output unchanged, stamp included
type PassThrough struct {
	*process.Base
}

// NewPassThrough creates a one-in one-out identity transform
func NewPassThrough(name, typ string) *PassThrough {
	p := &PassThrough{
		Base: process.NewBase(name, "test-passthrough"),
	}
	p.DeclareInputPort("in", typ, true, "values to forward")
	p.DeclareOutputPort("out", typ, true, "forwarded values")
	return p
}

// Step forwards one datum
func (p *PassThrough) Step() (process.StepStatus, error) {
	in, err := p.SyncInputs()
	if err != nil {
		return process.StepOK, err
	}
	if err := p.PushToPort("out", in["in"]); err != nil {
		return process.StepOK, err
	}
	return process.StepOK, nil
}

// Scale multiplies integer payloads by a configured factor
type Scale struct {
	*process.Base
	factor int
}

// NewScale creates a transform that multiplies int payloads by factor;
// the "factor" configuration key overrides the constructor value.
func NewScale(name string, factor int) *Scale {
	s := &Scale{
		Base:   process.NewBase(name, "test-scale"),
		factor: factor,
	}
	s.DeclareInputPort("in", "int", true, "values to scale")
	s.DeclareOutputPort("out", "int", true, "scaled values")
	s.DeclareConfigKey("factor", "", "overrides the scale factor", false)
	return s
}

// Initialize honors a "factor" configuration override
func (s *Scale) Initialize() error {
	if cfg := s.Config(); cfg != nil {
		if n, err := cfg.GetInt("factor"); err == nil {
			s.factor = n
		}
	}
	return s.Base.Initialize()
}

// Step scales one datum, forwarding non-data datums untouched
func (s *Scale) Step() (process.StepStatus, error) {
	in, err := s.SyncInputs()
	if err != nil {
		return process.StepOK, err
	}

	d := in["in"]
	if d.Type == datum.Data {
		if n, ok := d.Value.(int); ok {
			d = datum.New(d.Stamp, n*s.factor)
		}
	}
	if err := s.PushToPort("out", d); err != nil {
		return process.StepOK, err
	}
	return process.StepOK, nil
}
