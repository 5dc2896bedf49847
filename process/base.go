package process

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/c360/flowkit/config"
	"github.com/c360/flowkit/datum"
	"github.com/c360/flowkit/edge"
	"github.com/c360/flowkit/errors"
	"github.com/c360/flowkit/metric"
)

// Base is the embeddable implementation of the Process contract. It manages
// the lifecycle state machine, port and configuration declarations, the
// edges the pipeline binds to its ports, and the stamp-synchronization
// discipline for multi-input processes.
type Base struct {
	name     string
	typeName string
	logger   *slog.Logger

	mu         sync.Mutex
	state      State
	ports      []PortInfo
	portIndex  map[string]int
	decls      []config.Declaration
	cfg        *config.Config
	properties map[Property]bool
	inputs     map[string]*edge.Edge
	outputs    map[string][]*edge.Edge
	stamp      datum.Stamp
	blocking   bool

	core         *metric.Metrics
	corePipeline string
}

// Option configures a Base at construction
type Option func(*Base)

// WithLogger injects a structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(b *Base) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithProperty sets a capability flag
func WithProperty(p Property) Option {
	return func(b *Base) {
		b.properties[p] = true
	}
}

// NewBase creates a process base with the given instance and type names
func NewBase(name, typeName string, opts ...Option) *Base {
	b := &Base{
		name:       name,
		typeName:   typeName,
		logger:     slog.Default(),
		state:      StateCreated,
		portIndex:  make(map[string]int),
		properties: make(map[Property]bool),
		inputs:     make(map[string]*edge.Edge),
		outputs:    make(map[string][]*edge.Edge),
		stamp:      datum.NewStamp(1),
		blocking:   true,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the unique instance name
func (b *Base) Name() string { return b.name }

// TypeName returns the factory type name
func (b *Base) TypeName() string { return b.typeName }

// Logger returns the injected structured logger
func (b *Base) Logger() *slog.Logger { return b.logger }

// State returns the current lifecycle state
func (b *Base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// SetState transitions the lifecycle state machine, failing with
// ErrBadLifecycle on an illegal transition.
func (b *Base) SetState(to State) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !CanTransition(b.state, to) {
		return errors.WrapFatal(
			fmt.Errorf("%w: %s -> %s", errors.ErrBadLifecycle, b.state, to),
			"Process", "SetState", b.name)
	}
	b.state = to
	return nil
}

// Properties returns the process capability set
func (b *Base) Properties() map[Property]bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[Property]bool, len(b.properties))
	for k, v := range b.properties {
		out[k] = v
	}
	return out
}

// HasProperty reports whether a capability flag is set
func (b *Base) HasProperty(p Property) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.properties[p]
}

// SetProperty sets a capability flag after construction
func (b *Base) SetProperty(p Property) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.properties[p] = true
}

// DeclareInputPort declares a named input port
func (b *Base) DeclareInputPort(name, typ string, required bool, description string) {
	b.declarePort(PortInfo{
		Name: name, Direction: DirectionInput, Type: typ,
		Required: required, Description: description,
	})
}

// DeclareOutputPort declares a named output port
func (b *Base) DeclareOutputPort(name, typ string, required bool, description string) {
	b.declarePort(PortInfo{
		Name: name, Direction: DirectionOutput, Type: typ,
		Required: required, Description: description,
	})
}

func (b *Base) declarePort(p PortInfo) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := string(p.Direction) + ":" + p.Name
	if _, exists := b.portIndex[key]; exists {
		return
	}
	b.portIndex[key] = len(b.ports)
	b.ports = append(b.ports, p)
}

// Ports enumerates the declared ports
func (b *Base) Ports() []PortInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]PortInfo, len(b.ports))
	copy(out, b.ports)
	return out
}

// Port looks up a declared port by direction and name
func (b *Base) Port(dir Direction, name string) (PortInfo, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx, ok := b.portIndex[string(dir)+":"+name]
	if !ok {
		return PortInfo{}, false
	}
	return b.ports[idx], true
}

// DeclareConfigKey declares a configuration key the process understands
func (b *Base) DeclareConfigKey(key, def, description string, required bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.decls = append(b.decls, config.Declaration{
		Key: key, Default: def, Description: description, Required: required,
	})
}

// ConfigDeclarations returns the declared configuration keys
func (b *Base) ConfigDeclarations() []config.Declaration {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]config.Declaration, len(b.decls))
	copy(out, b.decls)
	return out
}

// Config returns the absorbed configuration; nil before Configure
func (b *Base) Config() *config.Config {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg
}

// Configure validates and absorbs configuration against the declared keys,
// accumulating every problem. Legal only from the created state.
func (b *Base) Configure(cfg *config.Config) error {
	if b.State() != StateCreated {
		return errors.WrapFatal(
			fmt.Errorf("%w: configure in state %s", errors.ErrBadLifecycle, b.State()),
			"Process", "Configure", b.name)
	}
	if cfg == nil {
		cfg = config.New()
	} else {
		cfg = cfg.Clone()
	}

	config.ApplyDefaults(b.ConfigDeclarations(), cfg)

	var batch errors.Batch
	for _, err := range config.Validate(b.ConfigDeclarations(), cfg) {
		batch.Add(err)
	}
	if batch.Len() > 0 {
		return errors.WrapInvalid(batch.Err(), "Process", "Configure", b.name)
	}

	b.mu.Lock()
	b.cfg = cfg
	b.mu.Unlock()
	return b.SetState(StateConfigured)
}

// Initialize performs the default one-time setup: the state transition only
func (b *Base) Initialize() error {
	return b.SetState(StateInitialized)
}

// Step is a guard for processes that forgot to implement their own
func (b *Base) Step() (StepStatus, error) {
	return StepError, errors.WrapFatal(
		fmt.Errorf("process type %q does not implement Step", b.typeName),
		"Process", "Step", b.name)
}

// Reset reinitializes transient state for reuse: the stamp counter restarts
// and the process returns to the initialized state. One-time setup is not
// re-run.
func (b *Base) Reset() error {
	if err := b.SetState(StateInitialized); err != nil {
		return err
	}
	b.mu.Lock()
	b.stamp = datum.NewStamp(b.stamp.Increment)
	b.mu.Unlock()
	return nil
}

// BindInput attaches a pipeline-owned edge to an input port. An input
// accepts exactly one edge.
func (b *Base) BindInput(port string, e *edge.Edge) error {
	if _, ok := b.Port(DirectionInput, port); !ok {
		return errors.WrapInvalid(errors.ErrNoSuchPort, "Process", "BindInput",
			fmt.Sprintf("%s.%s", b.name, port))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, connected := b.inputs[port]; connected {
		return errors.WrapInvalid(errors.ErrPortConnected, "Process", "BindInput",
			fmt.Sprintf("%s.%s", b.name, port))
	}
	b.inputs[port] = e
	return nil
}

// BindOutput attaches a pipeline-owned edge to an output port. Outputs may
// fan out to many edges; each receives its own copy of every datum.
func (b *Base) BindOutput(port string, e *edge.Edge) error {
	if _, ok := b.Port(DirectionOutput, port); !ok {
		return errors.WrapInvalid(errors.ErrNoSuchPort, "Process", "BindOutput",
			fmt.Sprintf("%s.%s", b.name, port))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.outputs[port] = append(b.outputs[port], e)
	return nil
}

// InputEdge returns the edge bound to an input port, if any
func (b *Base) InputEdge(port string) (*edge.Edge, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.inputs[port]
	return e, ok
}

// OutputEdges returns the edges bound to an output port
func (b *Base) OutputEdges(port string) []*edge.Edge {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*edge.Edge, len(b.outputs[port]))
	copy(out, b.outputs[port])
	return out
}

// ConnectedInputs returns the names of input ports that have an edge,
// in declaration order.
func (b *Base) ConnectedInputs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var names []string
	for _, p := range b.ports {
		if p.Direction != DirectionInput {
			continue
		}
		if _, ok := b.inputs[p.Name]; ok {
			names = append(names, p.Name)
		}
	}
	return names
}

// ConnectedOutputs returns the names of output ports that have at least one
// edge, in declaration order.
func (b *Base) ConnectedOutputs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var names []string
	for _, p := range b.ports {
		if p.Direction != DirectionOutput {
			continue
		}
		if len(b.outputs[p.Name]) > 0 {
			names = append(names, p.Name)
		}
	}
	return names
}

// SetBlockingStepMode selects how edge operations behave during Step.
// Blocking mode (the default, used by the threaded scheduler) lets
// SyncInputs wait for data and PushToPort wait for capacity, relying on
// backpressure. Cooperative mode (used by the single-threaded scheduler)
// makes both non-blocking so a starved or full edge yields a flow-control
// error and the process is retried next round.
func (b *Base) SetBlockingStepMode(blocking bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blocking = blocking
}

// BlockingStepMode reports the current step mode
func (b *Base) BlockingStepMode() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.blocking
}

// PushToPort pushes a datum to every edge bound to an output port,
// duplicating the datum across fan-out edges. Pushing to an unconnected
// optional output is a no-op. In cooperative mode a full edge yields
// ErrEdgeFull without blocking.
func (b *Base) PushToPort(port string, d datum.Datum) error {
	blocking := b.BlockingStepMode()
	for _, e := range b.OutputEdges(port) {
		var err error
		if blocking {
			err = e.Push(d)
		} else {
			err = e.TryPush(d)
		}
		if err != nil {
			return err
		}
	}
	b.countProduced()
	return nil
}

// AttachCoreMetrics wires the engine-level datum counters into this process.
// The owning pipeline attaches them when it carries a metrics registry.
func (b *Base) AttachCoreMetrics(m *metric.Metrics, pipelineName string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.core = m
	b.corePipeline = pipelineName
}

func (b *Base) countProduced() {
	b.mu.Lock()
	m, pl := b.core, b.corePipeline
	b.mu.Unlock()
	if m == nil {
		return
	}
	m.DatumsProduced.WithLabelValues(pl, b.name).Inc()
}

func (b *Base) countConsumed(n int) {
	b.mu.Lock()
	m, pl := b.core, b.corePipeline
	b.mu.Unlock()
	if m == nil || n == 0 {
		return
	}
	m.DatumsConsumed.WithLabelValues(pl, b.name).Add(float64(n))
}

// OutputStamp returns the stamp for the datum the process is producing now
func (b *Base) OutputStamp() datum.Stamp {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stamp
}

// AdvanceStamp moves the output stamp to its successor and returns the
// stamp that was current before the advance.
func (b *Base) AdvanceStamp() datum.Stamp {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.stamp
	b.stamp = b.stamp.Next()
	return s
}

// MarkComplete pushes an end-of-data marker on every connected output,
// releases every input edge so upstream producers stop blocking on a
// consumer that will never pop again, and moves the process to the complete
// state. A process never steps past its own declared completion.
func (b *Base) MarkComplete() error {
	marker := datum.NewComplete(b.OutputStamp())
	for _, port := range b.ConnectedOutputs() {
		for _, e := range b.OutputEdges(port) {
			if err := e.Push(marker); err != nil && !errors.IsFlowControl(err) {
				return err
			}
		}
	}
	for _, port := range b.ConnectedInputs() {
		if e, ok := b.InputEdge(port); ok {
			e.MarkDownstreamDone()
		}
	}
	return b.SetState(StateComplete)
}

// Fail moves the process to the failed state
func (b *Base) Fail() {
	_ = b.SetState(StateFailed)
}
