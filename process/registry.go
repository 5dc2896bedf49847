package process

import (
	"fmt"
	"sort"
	"sync"

	"github.com/c360/flowkit/config"
	"github.com/c360/flowkit/errors"
)

// Factory creates a process instance with the given instance name. Factories
// perform no I/O; resource acquisition belongs in Initialize.
type Factory func(instanceName string) (Process, error)

// Registration holds the factory and metadata for a process type
type Registration struct {
	// TypeName is the factory name (e.g. "frame-reader")
	TypeName string
	// Description is the human-readable description of the process type
	Description string
	// Version is the process type version (semver recommended)
	Version string
	// Factory is the constructor function
	Factory Factory
}

// Registry maps process type names to factories. It is the engine's view of
// the plugin layer: the engine consumes only Create, and plugin discovery
// populates registrations from outside.
type Registry struct {
	factories map[string]*Registration
	mu        sync.RWMutex
}

// NewRegistry creates a new empty process type registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]*Registration),
	}
}

// RegisterFactory registers a process type. Duplicate registration fails.
func (r *Registry) RegisterFactory(reg *Registration) error {
	if reg == nil || reg.TypeName == "" {
		return errors.WrapInvalid(errors.ErrBadConfiguration, "Registry", "RegisterFactory",
			"registration validation")
	}
	if reg.Factory == nil {
		return errors.WrapInvalid(errors.ErrBadConfiguration, "Registry", "RegisterFactory",
			"factory function validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[reg.TypeName]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("factory %q is already registered", reg.TypeName),
			"Registry", "RegisterFactory", "duplicate factory check")
	}

	r.factories[reg.TypeName] = reg
	return nil
}

// Create instantiates and configures a process of the given type. Fails
// with ErrUnknownType when no registered factory matches.
func (r *Registry) Create(typeName, instanceName string, cfg *config.Config) (Process, error) {
	if instanceName == "" {
		return nil, errors.WrapInvalid(errors.ErrBadConfiguration, "Registry", "Create",
			"instance name validation")
	}

	r.mu.RLock()
	reg, exists := r.factories[typeName]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrUnknownType, typeName),
			"Registry", "Create", "factory lookup")
	}

	p, err := reg.Factory(instanceName)
	if err != nil {
		return nil, errors.Wrap(err, "Registry", "Create", "factory execution")
	}

	if err := p.Configure(cfg); err != nil {
		return nil, errors.Wrap(err, "Registry", "Create",
			fmt.Sprintf("configure %q", instanceName))
	}

	return p, nil
}

// Instantiate runs the factory without configuring the result. Composite
// processes use this for their members, which are configured later by the
// enclosing cluster.
func (r *Registry) Instantiate(typeName, instanceName string) (Process, error) {
	if instanceName == "" {
		return nil, errors.WrapInvalid(errors.ErrBadConfiguration, "Registry", "Instantiate",
			"instance name validation")
	}

	r.mu.RLock()
	reg, exists := r.factories[typeName]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrUnknownType, typeName),
			"Registry", "Instantiate", "factory lookup")
	}

	p, err := reg.Factory(instanceName)
	if err != nil {
		return nil, errors.Wrap(err, "Registry", "Instantiate", "factory execution")
	}
	return p, nil
}

// Types returns the registered type names in sorted order
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the registration for a type name
func (r *Registry) Lookup(typeName string) (*Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.factories[typeName]
	return reg, ok
}
