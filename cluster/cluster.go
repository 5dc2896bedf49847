package cluster

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/c360/flowkit/config"
	"github.com/c360/flowkit/edge"
	"github.com/c360/flowkit/errors"
	"github.com/c360/flowkit/pipeline"
	"github.com/c360/flowkit/process"
	"github.com/c360/flowkit/scheduler"
)

// memberRef identifies one member port inside the cluster
type memberRef struct {
	process string
	port    string
}

// configMapping forwards a cluster configuration key to a member key
type configMapping struct {
	key       string
	process   string
	memberKey string
}

// stepModer is implemented by process.Base; the cluster steps its members
// on its own goroutine, so they must run in cooperative mode.
type stepModer interface {
	SetBlockingStepMode(blocking bool)
}

// Cluster is a composite process: members wired into an internal
// sub-pipeline and exposed through mapped ports. It implements
// process.Process and carries the cluster property.
type Cluster struct {
	*process.Base
	logger *slog.Logger
	inner  *pipeline.Pipeline
	policy scheduler.StallPolicy

	cmu         sync.Mutex
	members     map[string]process.Process
	memberOrder []string
	memberSeeds map[string]*config.Config
	configMaps  []configMapping
	inputMaps   map[string][]memberRef
	inputOrder  []string
	inputInfo   map[string]process.PortInfo
	outputMaps  map[string]memberRef
	outputOrder []string
	outputInfo  map[string]process.PortInfo

	inputRelays  map[string][]*edge.Edge
	outputRelays map[string]*edge.Edge

	round *scheduler.Sync
}

// Option configures a Cluster at construction
type Option func(*Cluster)

// WithLogger injects a structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cluster) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithStallPolicy bounds stamp-mismatch stalls among the members
func WithStallPolicy(policy scheduler.StallPolicy) Option {
	return func(c *Cluster) {
		c.policy = policy
	}
}

// New creates an empty cluster with the given instance and type names.
// Members, internal connections, and port mappings are added before the
// cluster joins an outer pipeline.
func New(name, typeName string, opts ...Option) *Cluster {
	c := &Cluster{
		logger:       slog.Default(),
		members:      make(map[string]process.Process),
		memberSeeds:  make(map[string]*config.Config),
		inputMaps:    make(map[string][]memberRef),
		inputInfo:    make(map[string]process.PortInfo),
		outputMaps:   make(map[string]memberRef),
		outputInfo:   make(map[string]process.PortInfo),
		inputRelays:  make(map[string][]*edge.Edge),
		outputRelays: make(map[string]*edge.Edge),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.Base = process.NewBase(name, typeName,
		process.WithLogger(c.logger),
		process.WithProperty(process.PropertyCluster))
	c.inner = pipeline.New(name, pipeline.WithLogger(c.logger))
	return c
}

// AddProcess adds a member process to the cluster
func (c *Cluster) AddProcess(p process.Process) error {
	if err := c.buildable("AddProcess"); err != nil {
		return err
	}
	if err := c.inner.AddProcess(p); err != nil {
		return err
	}
	c.cmu.Lock()
	c.members[p.Name()] = p
	c.memberOrder = append(c.memberOrder, p.Name())
	c.cmu.Unlock()
	return nil
}

// Connect wires two member ports with an internal edge
func (c *Cluster) Connect(upProcess, upPort, downProcess, downPort string) error {
	if err := c.buildable("Connect"); err != nil {
		return err
	}
	return c.inner.Connect(upProcess, upPort, downProcess, downPort)
}

// MapConfig forwards a cluster configuration key to a member key. The value
// is distributed during Configure.
func (c *Cluster) MapConfig(key, memberName, memberKey string) error {
	if err := c.buildable("MapConfig"); err != nil {
		return err
	}
	c.cmu.Lock()
	defer c.cmu.Unlock()
	if _, ok := c.members[memberName]; !ok {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrNoSuchProcess, memberName),
			"Cluster", "MapConfig", c.Name())
	}
	c.configMaps = append(c.configMaps, configMapping{
		key: key, process: memberName, memberKey: memberKey,
	})
	return nil
}

// SetMemberConfig seeds a member's configuration. Mapped cluster keys are
// applied on top of the seed during Configure.
func (c *Cluster) SetMemberConfig(memberName string, cfg *config.Config) error {
	if err := c.buildable("SetMemberConfig"); err != nil {
		return err
	}
	c.cmu.Lock()
	defer c.cmu.Unlock()
	if _, ok := c.members[memberName]; !ok {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrNoSuchProcess, memberName),
			"Cluster", "SetMemberConfig", c.Name())
	}
	if cfg == nil {
		cfg = config.New()
	}
	c.memberSeeds[memberName] = cfg.Clone()
	return nil
}

// MapInput exposes member input ports as one cluster input. A cluster input
// may map onto several member inputs; every relayed datum is duplicated to
// each of them. The port type comes from the first mapping and the port is
// required when any mapped member port is required.
func (c *Cluster) MapInput(port, memberName, memberPort string) error {
	if err := c.buildable("MapInput"); err != nil {
		return err
	}
	info, err := c.memberPort(memberName, process.DirectionInput, memberPort)
	if err != nil {
		return err
	}

	c.cmu.Lock()
	defer c.cmu.Unlock()
	if existing, ok := c.inputInfo[port]; ok {
		existing.Required = existing.Required || info.Required
		c.inputInfo[port] = existing
	} else {
		pi := process.PortInfo{
			Name:        port,
			Direction:   process.DirectionInput,
			Type:        info.Type,
			Required:    info.Required,
			Description: "maps to " + memberName + "." + memberPort,
		}
		c.inputInfo[port] = pi
		c.inputOrder = append(c.inputOrder, port)
		c.DeclareInputPort(port, pi.Type, pi.Required, pi.Description)
	}
	c.inputMaps[port] = append(c.inputMaps[port], memberRef{memberName, memberPort})
	return nil
}

// MapOutput exposes exactly one member output as a cluster output.
// Remapping an already-mapped cluster output fails.
func (c *Cluster) MapOutput(port, memberName, memberPort string) error {
	if err := c.buildable("MapOutput"); err != nil {
		return err
	}
	info, err := c.memberPort(memberName, process.DirectionOutput, memberPort)
	if err != nil {
		return err
	}

	c.cmu.Lock()
	defer c.cmu.Unlock()
	if _, ok := c.outputMaps[port]; ok {
		return errors.WrapInvalid(
			fmt.Errorf("%w: cluster output %q already mapped", errors.ErrPortConnected, port),
			"Cluster", "MapOutput", c.Name())
	}
	pi := process.PortInfo{
		Name:        port,
		Direction:   process.DirectionOutput,
		Type:        info.Type,
		Required:    info.Required,
		Description: "maps to " + memberName + "." + memberPort,
	}
	c.outputInfo[port] = pi
	c.outputOrder = append(c.outputOrder, port)
	c.outputMaps[port] = memberRef{memberName, memberPort}
	c.DeclareOutputPort(port, pi.Type, pi.Required, pi.Description)
	return nil
}

// Ports enumerates the mapped ports. Member ports without a mapping do not
// exist from the outside.
func (c *Cluster) Ports() []process.PortInfo {
	c.cmu.Lock()
	defer c.cmu.Unlock()
	out := make([]process.PortInfo, 0, len(c.inputOrder)+len(c.outputOrder))
	for _, port := range c.inputOrder {
		out = append(out, c.inputInfo[port])
	}
	for _, port := range c.outputOrder {
		out = append(out, c.outputInfo[port])
	}
	return out
}

// Member returns a member process by name
func (c *Cluster) Member(name string) (process.Process, bool) {
	c.cmu.Lock()
	defer c.cmu.Unlock()
	p, ok := c.members[name]
	return p, ok
}

// Configure absorbs the cluster configuration, distributes every mapped key
// to its member key, then configures all members, accumulating every member
// error so a dry run reports the complete problem set.
func (c *Cluster) Configure(cfg *config.Config) error {
	if err := c.Base.Configure(cfg); err != nil {
		return err
	}

	c.cmu.Lock()
	maps := make([]configMapping, len(c.configMaps))
	copy(maps, c.configMaps)
	order := make([]string, len(c.memberOrder))
	copy(order, c.memberOrder)
	seeds := make(map[string]*config.Config, len(c.memberSeeds))
	for name, seed := range c.memberSeeds {
		seeds[name] = seed
	}
	c.cmu.Unlock()

	memberCfgs := make(map[string]*config.Config, len(order))
	for _, name := range order {
		if seed, ok := seeds[name]; ok {
			memberCfgs[name] = seed.Clone()
		} else {
			memberCfgs[name] = config.New()
		}
	}
	absorbed := c.Config()
	for _, m := range maps {
		if v, ok := absorbed.Get(m.key); ok {
			memberCfgs[m.process].Set(m.memberKey, v)
		}
	}

	var batch errors.Batch
	for _, name := range order {
		member, _ := c.Member(name)
		if err := member.Configure(memberCfgs[name]); err != nil {
			batch.Add(err)
		}
	}
	if batch.Len() > 0 {
		return errors.WrapInvalid(batch.Err(), "Cluster", "Configure", c.Name())
	}
	return nil
}

// Initialize validates and freezes the internal topology, initializes the
// members in dependency order, and prepares the internal scheduler view.
func (c *Cluster) Initialize() error {
	if _, err := c.inner.Setup(); err != nil {
		return errors.Wrap(err, "Cluster", "Initialize", c.Name()+" internal topology")
	}
	if err := c.inner.Initialize(); err != nil {
		return errors.Wrap(err, "Cluster", "Initialize", c.Name()+" members")
	}

	// Members run on the cluster's goroutine, one round per outer step
	for _, p := range c.inner.Processes() {
		if m, ok := p.(stepModer); ok {
			m.SetBlockingStepMode(false)
		}
	}
	c.round = scheduler.NewSync(c.inner, scheduler.WithSyncStallPolicy(c.policy))

	return c.Base.Initialize()
}

// BindInput splices an outer edge onto the cluster input: a relay edge is
// created for every mapped member port and attached to the member, and the
// step loop forwards datums from the outer edge to each relay.
func (c *Cluster) BindInput(port string, e *edge.Edge) error {
	c.cmu.Lock()
	refs, mapped := c.inputMaps[port]
	c.cmu.Unlock()
	if !mapped {
		return errors.WrapInvalid(
			fmt.Errorf("%w: cluster input %s.%s", errors.ErrNoSuchPort, c.Name(), port),
			"Cluster", "BindInput", c.Name())
	}
	if _, bound := c.InputEdge(port); bound {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s.%s", errors.ErrPortConnected, c.Name(), port),
			"Cluster", "BindInput", c.Name())
	}

	var relays []*edge.Edge
	for _, ref := range refs {
		info, err := c.memberPort(ref.process, process.DirectionInput, ref.port)
		if err != nil {
			return err
		}
		relay := edge.New(
			edge.EdgeName(c.Name(), port, ref.process, ref.port),
			info.Type, pipeline.DefaultEdgeCapacity, info.Required)
		if err := c.inner.AttachExternalInput(ref.process, ref.port, relay); err != nil {
			return errors.Wrap(err, "Cluster", "BindInput", "relay attachment")
		}
		relays = append(relays, relay)
	}

	if err := c.Base.BindInput(port, e); err != nil {
		return err
	}
	c.cmu.Lock()
	c.inputRelays[port] = relays
	c.cmu.Unlock()
	return nil
}

// BindOutput splices an outer edge onto the cluster output: the mapped
// member output feeds an internal relay edge, and the step loop forwards
// its datums to every outer edge bound here.
func (c *Cluster) BindOutput(port string, e *edge.Edge) error {
	c.cmu.Lock()
	ref, mapped := c.outputMaps[port]
	relay := c.outputRelays[port]
	c.cmu.Unlock()
	if !mapped {
		return errors.WrapInvalid(
			fmt.Errorf("%w: cluster output %s.%s", errors.ErrNoSuchPort, c.Name(), port),
			"Cluster", "BindOutput", c.Name())
	}

	// One relay per mapped output, shared by fan-out outer edges
	if relay == nil {
		info, err := c.memberPort(ref.process, process.DirectionOutput, ref.port)
		if err != nil {
			return err
		}
		relay = edge.New(
			edge.EdgeName(ref.process, ref.port, c.Name(), port),
			info.Type, pipeline.DefaultEdgeCapacity, false)
		if err := c.inner.AttachExternalOutput(ref.process, ref.port, relay); err != nil {
			return errors.Wrap(err, "Cluster", "BindOutput", "relay attachment")
		}
		c.cmu.Lock()
		c.outputRelays[port] = relay
		c.cmu.Unlock()
	}

	return c.Base.BindOutput(port, e)
}

// Step is the cluster's atomic scheduling unit: pump mapped inputs in, run
// one cooperative round over the members, pump mapped outputs back out.
// The cluster reports completion only when every member completed and the
// relayed output has fully drained. In blocking step mode an idle step
// parks on an open outer input instead of returning immediately, so a
// threaded worker does not re-step a starved cluster in a tight loop.
func (c *Cluster) Step() (process.StepStatus, error) {
	movedIn, err := c.pumpInputs()
	if err != nil {
		return process.StepError, err
	}

	done, err := c.round.Round()
	if err != nil {
		return process.StepError, errors.Wrap(err, "Cluster", "Step", c.Name())
	}

	movedOut, err := c.pumpOutputs()
	if err != nil {
		return process.StepError, err
	}

	if done && c.outputsDrained() {
		return process.StepComplete, nil
	}
	if c.BlockingStepMode() && movedIn == 0 && movedOut == 0 && c.innerIdle() {
		if err := c.awaitInput(); err != nil {
			return process.StepOK, err
		}
	}
	return process.StepOK, nil
}

// pumpInputs moves datums from outer edges onto the per-member relays,
// duplicating across a fan-out mapping, and reports how many datums moved.
// A Complete marker closes each relay so members observe end-of-data through
// their normal input path.
func (c *Cluster) pumpInputs() (int, error) {
	moved := 0
	for _, port := range c.inputPorts() {
		outer, bound := c.InputEdge(port)
		if !bound {
			continue
		}
		relays := c.relaysFor(port)

		for {
			if anyFull(relays) {
				break
			}
			d, err := outer.TryPop()
			if err != nil {
				if stderrors.Is(err, errors.ErrEdgeShutdown) {
					return moved, err
				}
				break // empty, or closed and drained
			}
			moved++
			for _, r := range relays {
				if err := r.TryPush(d); err != nil && !errors.IsFlowControl(err) {
					return moved, err
				}
			}
		}
	}
	return moved, nil
}

// pumpOutputs moves datums from the output relays onto the outer edges and
// reports how many datums moved. Member completion markers are dropped here;
// the cluster announces its own completion exactly once, through the
// scheduler's completion path.
func (c *Cluster) pumpOutputs() (int, error) {
	moved := 0
	for _, port := range c.outputPorts() {
		relay := c.relayFor(port)
		if relay == nil {
			continue
		}

		for {
			if !c.BlockingStepMode() && c.outerFull(port) {
				break
			}
			d, err := relay.TryPop()
			if err != nil {
				if stderrors.Is(err, errors.ErrEdgeShutdown) {
					return moved, err
				}
				break
			}
			if d.IsComplete() {
				continue
			}
			if err := c.PushToPort(port, d); err != nil {
				return moved, err
			}
			moved++
		}
	}
	return moved, nil
}

// awaitInput blocks until an open outer input has a frontmost datum, falling
// through immediately when the edge closes under the wait. A shutdown is
// surfaced so the worker unwinds. Clusters without an open bound input do
// not wait; their members either progress through queued work or complete.
func (c *Cluster) awaitInput() error {
	for _, port := range c.inputPorts() {
		outer, bound := c.InputEdge(port)
		if !bound || outer.Closed() {
			continue
		}
		if _, err := outer.PeekWait(); err != nil && stderrors.Is(err, errors.ErrEdgeShutdown) {
			return err
		}
		return nil
	}
	return nil
}

// innerIdle reports whether no internal edge holds queued work
func (c *Cluster) innerIdle() bool {
	for _, e := range c.inner.Edges() {
		if e.Len() > 0 {
			return false
		}
	}
	return true
}

// Reset returns the cluster to its initialized state for re-entry: members
// reset, internal edges reopened, stall accounting cleared.
func (c *Cluster) Reset() error {
	var batch errors.Batch
	for _, name := range c.memberNames() {
		member, _ := c.Member(name)
		if err := member.Reset(); err != nil {
			batch.Add(err)
		}
	}
	if batch.Len() > 0 {
		return errors.Wrap(batch.Err(), "Cluster", "Reset", c.Name())
	}

	for _, e := range c.inner.Edges() {
		e.Reset()
	}
	c.round = scheduler.NewSync(c.inner, scheduler.WithSyncStallPolicy(c.policy))
	return c.Base.Reset()
}

// buildable guards the build API: the cluster topology is mutable only
// before configuration.
func (c *Cluster) buildable(op string) error {
	if c.Base == nil || c.State() == process.StateCreated {
		return nil
	}
	return errors.WrapInvalid(errors.ErrTopologyFrozen, "Cluster", op, c.Name())
}

// memberPort resolves a member port, failing with ErrNoSuchProcess or
// ErrNoSuchPort at build time rather than at run time.
func (c *Cluster) memberPort(memberName string, dir process.Direction, port string) (process.PortInfo, error) {
	member, ok := c.Member(memberName)
	if !ok {
		return process.PortInfo{}, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrNoSuchProcess, memberName),
			"Cluster", "memberPort", c.Name())
	}
	for _, info := range member.Ports() {
		if info.Direction == dir && info.Name == port {
			return info, nil
		}
	}
	return process.PortInfo{}, errors.WrapInvalid(
		fmt.Errorf("%w: %s %s.%s", errors.ErrNoSuchPort, dir, memberName, port),
		"Cluster", "memberPort", c.Name())
}

func (c *Cluster) inputPorts() []string {
	c.cmu.Lock()
	defer c.cmu.Unlock()
	out := make([]string, len(c.inputOrder))
	copy(out, c.inputOrder)
	return out
}

func (c *Cluster) outputPorts() []string {
	c.cmu.Lock()
	defer c.cmu.Unlock()
	out := make([]string, len(c.outputOrder))
	copy(out, c.outputOrder)
	return out
}

func (c *Cluster) memberNames() []string {
	c.cmu.Lock()
	defer c.cmu.Unlock()
	out := make([]string, len(c.memberOrder))
	copy(out, c.memberOrder)
	return out
}

func (c *Cluster) relaysFor(port string) []*edge.Edge {
	c.cmu.Lock()
	defer c.cmu.Unlock()
	return c.inputRelays[port]
}

func (c *Cluster) relayFor(port string) *edge.Edge {
	c.cmu.Lock()
	defer c.cmu.Unlock()
	return c.outputRelays[port]
}

// outerFull reports whether any outer edge on the port is at capacity
func (c *Cluster) outerFull(port string) bool {
	for _, e := range c.OutputEdges(port) {
		if e.Full() {
			return true
		}
	}
	return false
}

// outputsDrained reports whether every output relay is empty
func (c *Cluster) outputsDrained() bool {
	c.cmu.Lock()
	defer c.cmu.Unlock()
	for _, r := range c.outputRelays {
		if r.Len() > 0 {
			return false
		}
	}
	return true
}

func anyFull(edges []*edge.Edge) bool {
	for _, e := range edges {
		if e.Full() {
			return true
		}
	}
	return false
}
