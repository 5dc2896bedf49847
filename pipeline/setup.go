package pipeline

import (
	"fmt"
	"time"

	"github.com/c360/flowkit/errors"
	"github.com/c360/flowkit/process"
)

// ValidationResult contains the results of whole-graph validation
type ValidationResult struct {
	Status   string  `json:"validation_status"` // "valid", "warnings", "errors"
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// Issue represents a single validation problem
type Issue struct {
	Type     string `json:"type"`     // "dangling_port", "illegal_cycle", "unreachable_process"
	Severity string `json:"severity"` // "error", "warning"
	Process  string `json:"process"`
	Port     string `json:"port,omitempty"`
	Message  string `json:"message"`
}

// addError appends an error issue and downgrades the status
func (r *ValidationResult) addError(issue Issue) {
	issue.Severity = "error"
	r.Errors = append(r.Errors, issue)
	r.Status = "errors"
}

// addWarning appends a warning issue
func (r *ValidationResult) addWarning(issue Issue) {
	issue.Severity = "warning"
	r.Warnings = append(r.Warnings, issue)
	if r.Status == "valid" {
		r.Status = "warnings"
	}
}

// Setup performs whole-graph validation and freezes the topology. Every
// problem is accumulated into the returned ValidationResult; when the
// result carries errors, Setup fails with ErrTopology and the topology
// stays open. Warnings (unreachable processes) do not fail setup.
func (p *Pipeline) Setup() (*ValidationResult, error) {
	start := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.frozen {
		return nil, errors.WrapInvalid(errors.ErrTopologyFrozen, "Pipeline", "Setup", p.name)
	}

	result := &ValidationResult{
		Status:   "valid",
		Errors:   []Issue{},
		Warnings: []Issue{},
	}

	p.validatePorts(result)
	order := p.validateTopology(result)

	p.metrics.recordSetup(p.name, time.Since(start).Seconds(), result)

	if len(result.Errors) > 0 {
		return result, errors.WrapInvalid(
			fmt.Errorf("%w: %d errors", errors.ErrTopology, len(result.Errors)),
			"Pipeline", "Setup", "graph validation")
	}

	p.frozen = true
	p.execOrder = order

	p.logger.Info("Pipeline setup complete",
		"pipeline", p.name,
		"pipeline_id", p.id,
		"processes", len(p.order),
		"edges", len(p.connections),
		"warnings", len(result.Warnings))
	return result, nil
}

// validatePorts checks that every required port on every process is
// connected and flags fully unconnected processes. Caller holds the lock.
func (p *Pipeline) validatePorts(result *ValidationResult) {
	connectedOutputs := make(map[string]bool)
	for _, c := range p.connections {
		connectedOutputs[c.UpProcess+"."+c.UpPort] = true
	}

	for _, name := range p.order {
		proc := p.processes[name]
		touched := false

		for _, info := range proc.Ports() {
			var connected bool
			switch info.Direction {
			case process.DirectionInput:
				connected = p.connectedInputs[name+"."+info.Name]
			case process.DirectionOutput:
				connected = connectedOutputs[name+"."+info.Name] || p.externalOutputs[name+"."+info.Name]
			}
			if connected {
				touched = true
				continue
			}
			if info.Required {
				result.addError(Issue{
					Type:    "dangling_port",
					Process: name,
					Port:    info.Name,
					Message: fmt.Sprintf("required %s port %q is not connected", info.Direction, info.Name),
				})
			}
		}

		if !touched && len(p.order) > 1 {
			result.addWarning(Issue{
				Type:    "unreachable_process",
				Process: name,
				Message: fmt.Sprintf("process %q has no connections to the rest of the graph", name),
			})
		}
	}
}

// validateTopology runs Kahn's algorithm over the process graph. Processes
// left after the queue drains sit on a cycle; a cycle is legal only when
// every participant declares itself cycle-safe. The returned order steps
// producers before consumers, with cycle participants appended in
// declaration order. Caller holds the lock.
func (p *Pipeline) validateTopology(result *ValidationResult) []string {
	inDegree := make(map[string]int, len(p.order))
	dependents := make(map[string][]string)
	for _, name := range p.order {
		inDegree[name] = 0
	}
	for _, c := range p.connections {
		if c.UpProcess == c.DownProcess {
			// Self-loop: a one-process cycle
			continue
		}
		inDegree[c.DownProcess]++
		dependents[c.UpProcess] = append(dependents[c.UpProcess], c.DownProcess)
	}

	// Seed with zero in-degree processes in declaration order
	var queue []string
	for _, name := range p.order {
		if inDegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	var order []string
	visited := make(map[string]bool, len(p.order))
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		order = append(order, name)
		visited[name] = true

		for _, dep := range dependents[name] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	// Whatever was not visited participates in a cycle
	selfLoops := make(map[string]bool)
	for _, c := range p.connections {
		if c.UpProcess == c.DownProcess {
			selfLoops[c.UpProcess] = true
		}
	}

	var cyclic []string
	for _, name := range p.order {
		if !visited[name] || selfLoops[name] {
			if !visited[name] {
				cyclic = append(cyclic, name)
			}
			if !p.processes[name].Properties()[process.PropertyCycleSafe] {
				result.addError(Issue{
					Type:    "illegal_cycle",
					Process: name,
					Message: fmt.Sprintf("process %q is on a cycle but is not cycle-safe", name),
				})
			}
		}
	}

	// Cycle-safe members have no static order; they run in declaration order
	order = append(order, cyclic...)
	return order
}
