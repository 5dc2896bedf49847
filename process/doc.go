// Package process defines the unit of computation in a flowkit pipeline:
// the Process contract, its lifecycle state machine, port declarations, and
// the factory registry that maps type names to process constructors.
//
// A process owns its port declarations and internal state but never the
// edges attached to its ports; edges are pipeline-owned and referenced by
// the process only while stepping.
//
// # Lifecycle
//
// Processes move through
//
//	Created -> Configured -> Initialized -> {Stepping <-> Idle} -> Complete | Failed
//
// Configuration happens exactly once, before initialization; re-entering
// the configured state after initialization is disallowed. Reset returns an
// initialized, idle, or complete process to Initialized without re-running
// one-time setup, which is what allows cluster re-entry.
//
// # Implementing a process
//
// Concrete processes embed *Base, declare their ports and configuration
// keys in their constructor, and override Step (plus Configure or
// Initialize when they need more than the defaults):
//
//	type doubler struct {
//		*process.Base
//	}
//
//	func NewDoubler(name string) *doubler {
//		b := process.NewBase(name, "doubler")
//		b.DeclareInputPort("in", "int", true, "values to double")
//		b.DeclareOutputPort("out", "int", true, "doubled values")
//		return &doubler{Base: b}
//	}
//
//	func (d *doubler) Step() (process.StepStatus, error) {
//		inputs, err := d.SyncInputs()
//		...
//	}
//
// # Stamp synchronization
//
// SyncInputs implements the default synchronized discipline for processes
// with multiple inputs: the frontmost datum of every required input edge is
// inspected, datums are consumed together only when their stamps all match,
// an end-of-data marker on any required input forces the completion path,
// and mismatched stamps stall the process without consuming anything.
// Processes carrying PropertyUnsynchronized (heartbeat-like sources) manage
// their edges directly and skip this discipline.
package process
