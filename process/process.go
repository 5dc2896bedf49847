package process

import (
	"github.com/c360/flowkit/config"
	"github.com/c360/flowkit/edge"
)

// Process is the unit of computation wired into a pipeline. Implementations
// embed *Base for lifecycle, port, and edge management.
type Process interface {
	// Name returns the unique instance name within a pipeline
	Name() string
	// TypeName returns the factory type this instance was created from
	TypeName() string

	// Configure validates and absorbs configuration. Recoverable
	// misconfiguration is reported, never thrown, so a validation pass can
	// run without side effects. Legal only once, before initialization.
	Configure(cfg *config.Config) error
	// Initialize performs one-time setup. It may inspect which optional
	// ports are actually connected.
	Initialize() error
	// Step performs one unit of work and reports its status. A process
	// must never step past its own declared completion.
	Step() (StepStatus, error)
	// Reset reinitializes transient state for reuse without re-running
	// one-time initialization.
	Reset() error

	// Properties returns the process capability set
	Properties() map[Property]bool
	// Ports enumerates the declared ports
	Ports() []PortInfo
	// State returns the current lifecycle state
	State() State
}

// Binder is the engine-side contract for attaching pipeline-owned edges to
// a process's ports. It is implemented by Base and overridden by clusters
// to splice outer edges onto mapped member ports.
type Binder interface {
	BindInput(port string, e *edge.Edge) error
	BindOutput(port string, e *edge.Edge) error
}
