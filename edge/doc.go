// Package edge implements the bounded, ordered channel that moves datums
// from exactly one output port to exactly one input port.
//
// An Edge owns its queue and its synchronization primitive; the processes at
// its two ends reference the edge but never own it. Communication is
// unidirectional and FIFO: data is never reordered or duplicated, and once
// an end-of-data marker is pushed the edge is closed for further pushes.
//
// A positive capacity enforces backpressure: Push blocks while the edge is
// full, so a slow consumer naturally throttles its producer. Capacity 0
// means unbounded, used for low-volume control edges that must never block.
//
// The graph topology guarantees a single producer and a single consumer per
// edge, so one mutex with two condition variables suffices; no global lock
// is involved. Peek exists so a process can compare input stamps without
// consuming mismatched data.
//
// When the consumer completes before the producer, the edge is marked
// downstream-done: queued data is discarded and further pushes are dropped,
// so the producer runs to its own completion instead of blocking on a
// consumer that will never pop again.
package edge
