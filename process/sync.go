package process

import (
	"fmt"

	"github.com/c360/flowkit/datum"
	"github.com/c360/flowkit/edge"
	"github.com/c360/flowkit/errors"
)

// SyncInputs collects one datum from every required connected input using
// the default synchronized discipline, blocking until every required edge
// has a frontmost datum:
//
//   - an end-of-data marker on any required input immediately returns
//     ErrInputClosed, forcing the process into its completion path;
//   - if the frontmost stamps all match, the datums are consumed together
//     and returned keyed by port name;
//   - if they differ, nothing is consumed and ErrStampMismatch is returned
//     so the scheduler can stall the process under its stall policy.
//
// Optional connected inputs never block; they are drained opportunistically
// when their frontmost stamp matches the synchronized stamp.
//
// In cooperative step mode (SetBlockingStepMode(false)) SyncInputs behaves
// as TrySyncInputs.
func (b *Base) SyncInputs() (map[string]datum.Datum, error) {
	if !b.BlockingStepMode() {
		return b.TrySyncInputs()
	}
	return b.syncInputs(func(e *edge.Edge) (datum.Datum, error) {
		return e.PeekWait()
	})
}

// TrySyncInputs is the non-blocking variant of SyncInputs used by the
// cooperative scheduler: a required input with no data yet yields
// ErrEdgeEmpty instead of blocking, and the process is retried next round.
func (b *Base) TrySyncInputs() (map[string]datum.Datum, error) {
	return b.syncInputs(func(e *edge.Edge) (datum.Datum, error) {
		return e.Peek()
	})
}

func (b *Base) syncInputs(peek func(*edge.Edge) (datum.Datum, error)) (map[string]datum.Datum, error) {
	var required, optional []string
	for _, port := range b.ConnectedInputs() {
		info, _ := b.Port(DirectionInput, port)
		if info.Required {
			required = append(required, port)
		} else {
			optional = append(optional, port)
		}
	}

	// Inspect the frontmost datum on each required edge without consuming
	heads := make(map[string]datum.Datum, len(required))
	for _, port := range required {
		e, _ := b.InputEdge(port)
		d, err := peek(e)
		if err != nil {
			if errors.IsClosed(err) {
				return nil, errors.WrapFlowControl(errors.ErrInputClosed, "Process", "SyncInputs",
					fmt.Sprintf("%s.%s", b.name, port))
			}
			return nil, err
		}
		if d.IsComplete() {
			return nil, errors.WrapFlowControl(errors.ErrInputClosed, "Process", "SyncInputs",
				fmt.Sprintf("%s.%s", b.name, port))
		}
		heads[port] = d
	}

	// All required stamps must match before anything is consumed
	var ref datum.Stamp
	first := true
	for _, port := range required {
		s := heads[port].Stamp
		if first {
			ref = s
			first = false
			continue
		}
		if !s.Equal(ref) {
			return nil, errors.WrapFlowControl(
				fmt.Errorf("%w: %d vs %d on %s", errors.ErrStampMismatch, ref.Index, s.Index, b.name),
				"Process", "SyncInputs", "stamp comparison")
		}
	}

	out := make(map[string]datum.Datum, len(required))
	for _, port := range required {
		e, _ := b.InputEdge(port)
		d, err := e.Pop()
		if err != nil {
			return nil, err
		}
		out[port] = d
	}

	// Optional inputs are drained opportunistically at the matched stamp
	for _, port := range optional {
		e, _ := b.InputEdge(port)
		d, err := e.Peek()
		if err != nil || d.IsComplete() {
			continue
		}
		if first || d.Stamp.Equal(ref) {
			if popped, err := e.TryPop(); err == nil {
				out[port] = popped
			}
		}
	}

	b.countConsumed(len(out))
	return out, nil
}
