package testutil

import (
	"github.com/c360/flowkit/datum"
	"github.com/c360/flowkit/process"
)

// Adder sums two synchronized int inputs. Both inputs are required, so a
// step only consumes when the frontmost stamps of lhs and rhs match.
type Adder struct {
	*process.Base
}

// NewAdder creates a two-input synchronized adder
func NewAdder(name string) *Adder {
	a := &Adder{
		Base: process.NewBase(name, "test-adder"),
	}
	a.DeclareInputPort("lhs", "int", true, "left operand")
	a.DeclareInputPort("rhs", "int", true, "right operand")
	a.DeclareOutputPort("sum", "int", true, "lhs + rhs")
	return a
}

// Step consumes one synchronized pair and emits the sum at their stamp
func (a *Adder) Step() (process.StepStatus, error) {
	in, err := a.SyncInputs()
	if err != nil {
		return process.StepOK, err
	}

	lhs, rhs := in["lhs"], in["rhs"]
	out := datum.NewEmpty(lhs.Stamp)
	if lhs.Type == datum.Data && rhs.Type == datum.Data {
		l, lok := lhs.Value.(int)
		r, rok := rhs.Value.(int)
		if lok && rok {
			out = datum.New(lhs.Stamp, l+r)
		}
	}
	if err := a.PushToPort("sum", out); err != nil {
		return process.StepOK, err
	}
	return process.StepOK, nil
}
