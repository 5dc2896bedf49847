// Package pipeline owns the process registry, the edge set, and the
// validated connection graph of a flowkit dataflow program.
//
// A Pipeline is built by adding named processes and connecting their ports,
// which instantiates typed edges. Setup performs whole-graph validation --
// required ports connected, port types compatible, no cycles without
// cycle-safe participants -- accumulating every error and warning into a
// ValidationResult rather than stopping at the first problem. Once Setup
// succeeds the topology is frozen: ports and edges can no longer be added
// or removed, only configuration and process state change during execution.
//
// The pipeline exposes ordered views to schedulers: Processes in
// declaration order, ExecutionOrder in a producer-before-consumer order
// derived from the graph, and the edge set for shutdown propagation. It
// never steps processes itself; that is the scheduler's job.
package pipeline
