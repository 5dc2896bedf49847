package pipeline

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/c360/flowkit/config"
	"github.com/c360/flowkit/edge"
	"github.com/c360/flowkit/errors"
	"github.com/c360/flowkit/metric"
	"github.com/c360/flowkit/process"
)

// DefaultEdgeCapacity is the edge capacity used by Connect when neither an
// explicit capacity nor the "edge.capacity" config key overrides it.
const DefaultEdgeCapacity = 16

// Connection records one edge of the graph with its endpoint ports
type Connection struct {
	UpProcess   string
	UpPort      string
	DownProcess string
	DownPort    string
	Edge        *edge.Edge
}

// Pipeline owns the set of processes, the set of edges, and the connection
// graph derived from them.
type Pipeline struct {
	name            string
	id              string
	logger          *slog.Logger
	metricsRegistry *metric.Registry
	edgeMetrics     *edge.Metrics
	metrics         *pipelineMetrics
	defaultCapacity int

	mu              sync.Mutex
	order           []string
	processes       map[string]process.Process
	connections     []Connection
	connectedInputs map[string]bool
	externalOutputs map[string]bool
	externalEdges   []*edge.Edge
	frozen          bool
	execOrder       []string
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithLogger injects a structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics attaches a metrics registry; edge and pipeline
// instrumentation is registered against it.
func WithMetrics(registry *metric.Registry) Option {
	return func(p *Pipeline) {
		p.metricsRegistry = registry
	}
}

// WithDefaultEdgeCapacity overrides the capacity used for new edges
func WithDefaultEdgeCapacity(capacity int) Option {
	return func(p *Pipeline) {
		p.defaultCapacity = capacity
	}
}

// WithConfig applies pipeline-level configuration (currently the
// "edge.capacity" key).
func WithConfig(cfg *config.Config) Option {
	return func(p *Pipeline) {
		if cfg == nil {
			return
		}
		if n, err := cfg.GetInt("edge.capacity"); err == nil {
			p.defaultCapacity = n
		}
	}
}

// New creates an empty pipeline with the given name
func New(name string, opts ...Option) *Pipeline {
	p := &Pipeline{
		name:            name,
		id:              uuid.NewString(),
		logger:          slog.Default(),
		defaultCapacity: DefaultEdgeCapacity,
		processes:       make(map[string]process.Process),
		connectedInputs: make(map[string]bool),
		externalOutputs: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.metricsRegistry != nil {
		em, err := edge.NewMetrics(p.metricsRegistry)
		if err != nil {
			p.logger.Error("Failed to initialize edge metrics", "error", err)
		}
		p.edgeMetrics = em

		pm, err := newPipelineMetrics(p.metricsRegistry)
		if err != nil {
			p.logger.Error("Failed to initialize pipeline metrics", "error", err)
		}
		p.metrics = pm
	}

	return p
}

// Name returns the pipeline name
func (p *Pipeline) Name() string { return p.name }

// ID returns the unique pipeline instance identifier
func (p *Pipeline) ID() string { return p.id }

// Logger returns the pipeline's structured logger
func (p *Pipeline) Logger() *slog.Logger { return p.logger }

// MetricsRegistry returns the attached metrics registry, or nil
func (p *Pipeline) MetricsRegistry() *metric.Registry { return p.metricsRegistry }

// AddProcess adds a process under its instance name. Names are unique;
// adding a duplicate fails with ErrDuplicateName. Rejected after Setup.
func (p *Pipeline) AddProcess(proc process.Process) error {
	if proc == nil {
		return errors.WrapInvalid(errors.ErrBadConfiguration, "Pipeline", "AddProcess",
			"process validation")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.frozen {
		return errors.WrapInvalid(errors.ErrTopologyFrozen, "Pipeline", "AddProcess", proc.Name())
	}
	if _, exists := p.processes[proc.Name()]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrDuplicateName, proc.Name()),
			"Pipeline", "AddProcess", "name uniqueness check")
	}

	p.processes[proc.Name()] = proc
	p.order = append(p.order, proc.Name())
	if p.metricsRegistry != nil {
		if a, ok := proc.(coreMetricsAttacher); ok {
			a.AttachCoreMetrics(p.metricsRegistry.CoreMetrics(), p.name)
		}
	}
	p.metrics.recordProcesses(p.name, len(p.processes))
	return nil
}

// coreMetricsAttacher is implemented by process.Base; the pipeline wires the
// engine-level datum counters into every process it owns.
type coreMetricsAttacher interface {
	AttachCoreMetrics(m *metric.Metrics, pipelineName string)
}

// Connect creates an edge from an upstream output port to a downstream
// input port using the pipeline's default capacity.
func (p *Pipeline) Connect(upProcess, upPort, downProcess, downPort string) error {
	return p.ConnectWithCapacity(upProcess, upPort, downProcess, downPort, p.defaultCapacity)
}

// ConnectWithCapacity creates an edge with an explicit capacity (0 means
// unbounded). All validations run before any state changes, so a failed
// connect never mutates the graph.
func (p *Pipeline) ConnectWithCapacity(upProcess, upPort, downProcess, downPort string, capacity int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.frozen {
		return errors.WrapInvalid(errors.ErrTopologyFrozen, "Pipeline", "Connect",
			edge.EdgeName(upProcess, upPort, downProcess, downPort))
	}

	up, exists := p.processes[upProcess]
	if !exists {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrNoSuchProcess, upProcess),
			"Pipeline", "Connect", "upstream lookup")
	}
	down, exists := p.processes[downProcess]
	if !exists {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrNoSuchProcess, downProcess),
			"Pipeline", "Connect", "downstream lookup")
	}

	upInfo, ok := findPort(up, process.DirectionOutput, upPort)
	if !ok {
		return errors.WrapInvalid(
			fmt.Errorf("%w: output %s.%s", errors.ErrNoSuchPort, upProcess, upPort),
			"Pipeline", "Connect", "upstream port lookup")
	}
	downInfo, ok := findPort(down, process.DirectionInput, downPort)
	if !ok {
		return errors.WrapInvalid(
			fmt.Errorf("%w: input %s.%s", errors.ErrNoSuchPort, downProcess, downPort),
			"Pipeline", "Connect", "downstream port lookup")
	}

	if !edge.Compatible(upInfo.Type, downInfo.Type) {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s.%s carries %q, %s.%s expects %q",
				errors.ErrTypeMismatch, upProcess, upPort, upInfo.Type,
				downProcess, downPort, downInfo.Type),
			"Pipeline", "Connect", "type compatibility check")
	}

	inputKey := downProcess + "." + downPort
	if p.connectedInputs[inputKey] {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrPortConnected, inputKey),
			"Pipeline", "Connect", "input connectivity check")
	}

	upBinder, ok := up.(process.Binder)
	if !ok {
		return errors.WrapInvalid(
			fmt.Errorf("process %q does not accept edge bindings", upProcess),
			"Pipeline", "Connect", "upstream binder check")
	}
	downBinder, ok := down.(process.Binder)
	if !ok {
		return errors.WrapInvalid(
			fmt.Errorf("process %q does not accept edge bindings", downProcess),
			"Pipeline", "Connect", "downstream binder check")
	}

	// The edge carries the concrete type when one side is the wildcard
	typ := upInfo.Type
	if typ == edge.TypeAny {
		typ = downInfo.Type
	}

	name := edge.EdgeName(upProcess, upPort, downProcess, downPort)
	e := edge.New(name, typ, capacity, downInfo.Required, edge.WithMetrics(p.edgeMetrics))

	if err := upBinder.BindOutput(upPort, e); err != nil {
		return errors.Wrap(err, "Pipeline", "Connect", "upstream binding")
	}
	if err := downBinder.BindInput(downPort, e); err != nil {
		return errors.Wrap(err, "Pipeline", "Connect", "downstream binding")
	}

	p.connectedInputs[inputKey] = true
	p.connections = append(p.connections, Connection{
		UpProcess: upProcess, UpPort: upPort,
		DownProcess: downProcess, DownPort: downPort,
		Edge: e,
	})
	p.metrics.recordEdges(p.name, len(p.connections))

	p.logger.Debug("Connected ports",
		"pipeline", p.name,
		"edge", name,
		"type", typ,
		"capacity", capacity)
	return nil
}

// AttachExternalInput binds an edge the pipeline does not own to a member
// input port and records the port as connected for validation. A process
// cluster uses this to splice its relay edges onto member ports; the edge
// carries no topology, so it never contributes to the execution order.
func (p *Pipeline) AttachExternalInput(procName, port string, e *edge.Edge) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.frozen {
		return errors.WrapInvalid(errors.ErrTopologyFrozen, "Pipeline", "AttachExternalInput",
			procName+"."+port)
	}
	proc, exists := p.processes[procName]
	if !exists {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrNoSuchProcess, procName),
			"Pipeline", "AttachExternalInput", "process lookup")
	}
	if _, ok := findPort(proc, process.DirectionInput, port); !ok {
		return errors.WrapInvalid(
			fmt.Errorf("%w: input %s.%s", errors.ErrNoSuchPort, procName, port),
			"Pipeline", "AttachExternalInput", "port lookup")
	}

	inputKey := procName + "." + port
	if p.connectedInputs[inputKey] {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrPortConnected, inputKey),
			"Pipeline", "AttachExternalInput", "input connectivity check")
	}

	binder, ok := proc.(process.Binder)
	if !ok {
		return errors.WrapInvalid(
			fmt.Errorf("process %q does not accept edge bindings", procName),
			"Pipeline", "AttachExternalInput", "binder check")
	}
	if err := binder.BindInput(port, e); err != nil {
		return errors.Wrap(err, "Pipeline", "AttachExternalInput", "binding")
	}

	p.connectedInputs[inputKey] = true
	p.externalEdges = append(p.externalEdges, e)
	return nil
}

// AttachExternalOutput binds an edge the pipeline does not own to a member
// output port and records the port as connected for validation.
func (p *Pipeline) AttachExternalOutput(procName, port string, e *edge.Edge) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.frozen {
		return errors.WrapInvalid(errors.ErrTopologyFrozen, "Pipeline", "AttachExternalOutput",
			procName+"."+port)
	}
	proc, exists := p.processes[procName]
	if !exists {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrNoSuchProcess, procName),
			"Pipeline", "AttachExternalOutput", "process lookup")
	}
	if _, ok := findPort(proc, process.DirectionOutput, port); !ok {
		return errors.WrapInvalid(
			fmt.Errorf("%w: output %s.%s", errors.ErrNoSuchPort, procName, port),
			"Pipeline", "AttachExternalOutput", "port lookup")
	}

	binder, ok := proc.(process.Binder)
	if !ok {
		return errors.WrapInvalid(
			fmt.Errorf("process %q does not accept edge bindings", procName),
			"Pipeline", "AttachExternalOutput", "binder check")
	}
	if err := binder.BindOutput(port, e); err != nil {
		return errors.Wrap(err, "Pipeline", "AttachExternalOutput", "binding")
	}

	p.externalOutputs[procName+"."+port] = true
	p.externalEdges = append(p.externalEdges, e)
	return nil
}

// Initialize propagates initialization to every process in a dependency
// order that initializes producers before consumers wherever a static
// ordering exists, and in declaration order otherwise. Legal only after a
// successful Setup.
func (p *Pipeline) Initialize() error {
	p.mu.Lock()
	if !p.frozen {
		p.mu.Unlock()
		return errors.WrapInvalid(errors.ErrTopology, "Pipeline", "Initialize",
			"setup ordering check")
	}
	order := make([]string, len(p.execOrder))
	copy(order, p.execOrder)
	p.mu.Unlock()

	start := time.Now()
	for _, name := range order {
		proc, _ := p.Process(name)
		if err := proc.Initialize(); err != nil {
			return errors.Wrap(err, "Pipeline", "Initialize",
				fmt.Sprintf("process %q", name))
		}
	}

	p.logger.Info("Pipeline initialized",
		"pipeline", p.name,
		"pipeline_id", p.id,
		"processes", len(order),
		"duration", time.Since(start))
	return nil
}

// Process returns a process by name
func (p *Pipeline) Process(name string) (process.Process, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	proc, ok := p.processes[name]
	return proc, ok
}

// Processes returns all processes in declaration order
func (p *Pipeline) Processes() []process.Process {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]process.Process, 0, len(p.order))
	for _, name := range p.order {
		out = append(out, p.processes[name])
	}
	return out
}

// ExecutionOrder returns processes in the producer-before-consumer order
// computed at Setup. Empty before Setup succeeds.
func (p *Pipeline) ExecutionOrder() []process.Process {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]process.Process, 0, len(p.execOrder))
	for _, name := range p.execOrder {
		out = append(out, p.processes[name])
	}
	return out
}

// Connections returns the recorded connections
func (p *Pipeline) Connections() []Connection {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Connection, len(p.connections))
	copy(out, p.connections)
	return out
}

// Edges returns all pipeline-owned edges
func (p *Pipeline) Edges() []*edge.Edge {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*edge.Edge, 0, len(p.connections)+len(p.externalEdges))
	for _, c := range p.connections {
		out = append(out, c.Edge)
	}
	out = append(out, p.externalEdges...)
	return out
}

// TerminalProcesses returns the names of processes with no connected
// outputs. An end-of-data marker reaching a terminal process triggers
// orderly shutdown, not an error.
func (p *Pipeline) TerminalProcesses() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	hasOutput := make(map[string]bool)
	for _, c := range p.connections {
		hasOutput[c.UpProcess] = true
	}

	var out []string
	for _, name := range p.order {
		if !hasOutput[name] {
			out = append(out, name)
		}
	}
	return out
}

// ShutdownEdges shuts down every edge, waking any blocked workers so a
// stop request propagates through the graph.
func (p *Pipeline) ShutdownEdges() {
	for _, e := range p.Edges() {
		e.Shutdown()
	}
}

// findPort looks up a declared port on a process by direction and name
func findPort(proc process.Process, dir process.Direction, name string) (process.PortInfo, bool) {
	for _, info := range proc.Ports() {
		if info.Direction == dir && info.Name == name {
			return info, true
		}
	}
	return process.PortInfo{}, false
}
