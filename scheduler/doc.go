// Package scheduler drives process stepping over a validated pipeline
// until every process reports completion, or a failure stops the run.
//
// Two baseline policies are provided. Sync is single-threaded and
// cooperative: every round it steps each process once in the pipeline's
// execution order, skipping processes whose downstream edges are full
// until the next round. Threaded runs one worker goroutine per process;
// blocking edge pushes and pops provide backpressure, so a slow consumer
// naturally throttles its producer.
//
// Both schedulers share the state machine
//
//	Idle -> Running -> {Stopped | Failed}
//
// and the same termination rules: an end-of-data marker reaching a
// terminal process triggers orderly completion, never an error, and a
// step error stops the pipeline, unwinds the remaining processes through
// edge shutdown, and surfaces the original error to the caller.
//
// A stamp mismatch between the inputs of a synchronized process causes a
// stall, not a crash. How long a mismatch may persist is governed by the
// configurable StallPolicy; the zero policy stalls indefinitely.
package scheduler
