package process

// Direction for port data flow
type Direction string

// Direction constants for port data flow
const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)

// PortInfo describes a named data channel on a process
type PortInfo struct {
	Name        string    `json:"name"`
	Direction   Direction `json:"direction"`
	Type        string    `json:"type"`
	Required    bool      `json:"required"`
	Description string    `json:"description"`
}

// Property is an enumerated capability flag queryable on a process.
// Properties are consulted by the pipeline validator and the schedulers,
// never discovered by ad hoc type inspection.
type Property string

const (
	// PropertyUnsynchronized marks processes that ignore stamp matching
	// across their inputs (clock/heartbeat-like sources)
	PropertyUnsynchronized Property = "unsynchronized"
	// PropertyCluster marks a process that is a cluster of processes
	PropertyCluster Property = "cluster"
	// PropertyCycleSafe marks processes that tolerate stale or looped
	// data, allowing them to participate in feedback cycles
	PropertyCycleSafe Property = "cycle-safe"
)
