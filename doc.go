// Package flowkit is a dataflow pipeline execution engine.
//
// A pipeline is a graph of processes connected by bounded, typed edges.
// Each process declares named input and output ports; the pipeline wires
// an upstream output to a downstream input through an edge that preserves
// order and provides backpressure. Every datum carries a stamp, and a
// process with several required inputs only consumes when the frontmost
// stamps of all of them agree, so parallel branches stay aligned without
// any global clock.
//
// The packages compose bottom-up:
//
//   - datum: the unit of data and its synchronization stamp
//   - edge: the bounded FIFO between two ports
//   - process: the process contract, lifecycle, and input synchronization
//   - config: ordered dotted-key configuration with YAML loading
//   - pipeline: graph assembly, whole-graph validation, execution order
//   - cluster: composite processes with mapped ports
//   - scheduler: single-threaded and goroutine-per-process execution
//   - loader: declarative YAML pipeline descriptions
//   - metric: Prometheus instrumentation shared by all of the above
//
// The cmd/flowkit binary loads a description, validates it, and runs it.
package flowkit
