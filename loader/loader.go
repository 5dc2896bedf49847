package loader

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/c360/flowkit/cluster"
	"github.com/c360/flowkit/config"
	"github.com/c360/flowkit/errors"
	"github.com/c360/flowkit/metric"
	"github.com/c360/flowkit/pipeline"
	"github.com/c360/flowkit/process"
)

// Description is the parsed form of a pipeline description document
type Description struct {
	Pipeline    PipelineBlock     `yaml:"pipeline"`
	Processes   []ProcessBlock    `yaml:"processes"`
	Clusters    []ClusterBlock    `yaml:"clusters"`
	Connections []ConnectionBlock `yaml:"connections"`
}

// PipelineBlock names the pipeline and carries pipeline-level configuration
type PipelineBlock struct {
	Name   string    `yaml:"name"`
	Config yaml.Node `yaml:"config"`
}

// ProcessBlock declares one process instance of a registered type
type ProcessBlock struct {
	Name   string    `yaml:"name"`
	Type   string    `yaml:"type"`
	Config yaml.Node `yaml:"config"`
}

// ClusterBlock declares a composite process: its members, internal
// connections, and the port and config mappings that form its surface.
type ClusterBlock struct {
	Name        string            `yaml:"name"`
	Type        string            `yaml:"type"`
	Config      yaml.Node         `yaml:"config"`
	Processes   []ProcessBlock    `yaml:"processes"`
	Connections []ConnectionBlock `yaml:"connections"`
	Map         MapBlock          `yaml:"map"`
}

// MapBlock holds a cluster's config and port mappings
type MapBlock struct {
	Config  []ConfigMapEntry `yaml:"config"`
	Inputs  []InputMapEntry  `yaml:"inputs"`
	Outputs []OutputMapEntry `yaml:"outputs"`
}

// ConfigMapEntry forwards one cluster key to a "member.key" target
type ConfigMapEntry struct {
	Key string `yaml:"key"`
	To  string `yaml:"to"`
}

// InputMapEntry maps one cluster input port to one or more "member.port"
// targets.
type InputMapEntry struct {
	Port string   `yaml:"port"`
	To   []string `yaml:"to"`
}

// OutputMapEntry maps one cluster output port to exactly one "member.port"
type OutputMapEntry struct {
	Port string `yaml:"port"`
	To   string `yaml:"to"`
}

// ConnectionBlock wires "process.port" endpoints; a nil capacity selects
// the pipeline default.
type ConnectionBlock struct {
	From     string `yaml:"from"`
	To       string `yaml:"to"`
	Capacity *int   `yaml:"capacity"`
}

// Loader builds pipelines from descriptions using a process type registry
type Loader struct {
	registry *process.Registry
	logger   *slog.Logger
	metrics  *metric.Registry
}

// Option configures a Loader
type Option func(*Loader)

// WithLogger injects a structured logger, propagated to built pipelines
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithMetrics attaches a metrics registry to built pipelines
func WithMetrics(registry *metric.Registry) Option {
	return func(l *Loader) {
		l.metrics = registry
	}
}

// New creates a loader over a process type registry
func New(registry *process.Registry, opts ...Option) *Loader {
	l := &Loader{
		registry: registry,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load parses a YAML description and builds the pipeline it declares
func (l *Loader) Load(data []byte) (*pipeline.Pipeline, error) {
	var desc Description
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrBadConfiguration, err),
			"Loader", "Load", "description parse")
	}
	return l.Build(&desc)
}

// LoadFile reads and builds a pipeline description file
func (l *Loader) LoadFile(path string) (*pipeline.Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrBadConfiguration, err),
			"Loader", "LoadFile", "file read")
	}
	return l.Load(data)
}

// Build constructs the pipeline a description declares. The topology is
// left open; the caller runs Setup and Initialize.
func (l *Loader) Build(desc *Description) (*pipeline.Pipeline, error) {
	if desc.Pipeline.Name == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: pipeline name is required", errors.ErrBadConfiguration),
			"Loader", "Build", "description validation")
	}

	plCfg, err := config.FromYAMLNode(&desc.Pipeline.Config)
	if err != nil {
		return nil, errors.Wrap(err, "Loader", "Build", "pipeline config")
	}

	opts := []pipeline.Option{
		pipeline.WithLogger(l.logger),
		pipeline.WithConfig(plCfg),
	}
	if l.metrics != nil {
		opts = append(opts, pipeline.WithMetrics(l.metrics))
	}
	pl := pipeline.New(desc.Pipeline.Name, opts...)

	for _, pb := range desc.Processes {
		cfg, err := config.FromYAMLNode(&pb.Config)
		if err != nil {
			return nil, errors.Wrap(err, "Loader", "Build",
				fmt.Sprintf("process %q config", pb.Name))
		}
		p, err := l.registry.Create(pb.Type, pb.Name, cfg)
		if err != nil {
			return nil, errors.Wrap(err, "Loader", "Build",
				fmt.Sprintf("process %q", pb.Name))
		}
		if err := pl.AddProcess(p); err != nil {
			return nil, err
		}
	}

	for _, cb := range desc.Clusters {
		c, err := l.buildCluster(&cb)
		if err != nil {
			return nil, err
		}
		if err := pl.AddProcess(c); err != nil {
			return nil, err
		}
	}

	for _, conn := range desc.Connections {
		if err := l.connect(pl, conn); err != nil {
			return nil, err
		}
	}

	l.logger.Info("Pipeline description loaded",
		"pipeline", desc.Pipeline.Name,
		"processes", len(desc.Processes),
		"clusters", len(desc.Clusters),
		"connections", len(desc.Connections))
	return pl, nil
}

// buildCluster constructs and configures one composite process
func (l *Loader) buildCluster(cb *ClusterBlock) (*cluster.Cluster, error) {
	c := cluster.New(cb.Name, cb.Type, cluster.WithLogger(l.logger))

	for _, pb := range cb.Processes {
		member, err := l.registry.Instantiate(pb.Type, pb.Name)
		if err != nil {
			return nil, errors.Wrap(err, "Loader", "buildCluster",
				fmt.Sprintf("member %q", pb.Name))
		}
		if err := c.AddProcess(member); err != nil {
			return nil, err
		}
		seed, err := config.FromYAMLNode(&pb.Config)
		if err != nil {
			return nil, errors.Wrap(err, "Loader", "buildCluster",
				fmt.Sprintf("member %q config", pb.Name))
		}
		if seed.Len() > 0 {
			if err := c.SetMemberConfig(pb.Name, seed); err != nil {
				return nil, err
			}
		}
	}

	for _, conn := range cb.Connections {
		upProc, upPort, err := splitEndpoint(conn.From)
		if err != nil {
			return nil, err
		}
		downProc, downPort, err := splitEndpoint(conn.To)
		if err != nil {
			return nil, err
		}
		if err := c.Connect(upProc, upPort, downProc, downPort); err != nil {
			return nil, err
		}
	}

	for _, m := range cb.Map.Config {
		member, key, err := splitEndpoint(m.To)
		if err != nil {
			return nil, err
		}
		if err := c.MapConfig(m.Key, member, key); err != nil {
			return nil, err
		}
	}
	for _, m := range cb.Map.Inputs {
		for _, target := range m.To {
			member, port, err := splitEndpoint(target)
			if err != nil {
				return nil, err
			}
			if err := c.MapInput(m.Port, member, port); err != nil {
				return nil, err
			}
		}
	}
	for _, m := range cb.Map.Outputs {
		member, port, err := splitEndpoint(m.To)
		if err != nil {
			return nil, err
		}
		if err := c.MapOutput(m.Port, member, port); err != nil {
			return nil, err
		}
	}

	cfg, err := config.FromYAMLNode(&cb.Config)
	if err != nil {
		return nil, errors.Wrap(err, "Loader", "buildCluster",
			fmt.Sprintf("cluster %q config", cb.Name))
	}
	if err := c.Configure(cfg); err != nil {
		return nil, err
	}
	return c, nil
}

// connect wires one described connection into the pipeline
func (l *Loader) connect(pl *pipeline.Pipeline, conn ConnectionBlock) error {
	upProc, upPort, err := splitEndpoint(conn.From)
	if err != nil {
		return err
	}
	downProc, downPort, err := splitEndpoint(conn.To)
	if err != nil {
		return err
	}
	if conn.Capacity != nil {
		return pl.ConnectWithCapacity(upProc, upPort, downProc, downPort, *conn.Capacity)
	}
	return pl.Connect(upProc, upPort, downProc, downPort)
}

// splitEndpoint parses a "process.port" reference
func splitEndpoint(s string) (proc, port string, err error) {
	proc, port, ok := strings.Cut(s, ".")
	if !ok || proc == "" || port == "" {
		return "", "", errors.WrapInvalid(
			fmt.Errorf("%w: endpoint %q is not of the form process.port", errors.ErrBadConfiguration, s),
			"Loader", "splitEndpoint", "endpoint parse")
	}
	return proc, port, nil
}
