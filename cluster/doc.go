// Package cluster provides composite processes: a named group of member
// processes wired into an internal sub-pipeline and exposed to the outer
// pipeline as a single process.
//
// A cluster's external surface is exactly its mapped ports. MapInput
// forwards a cluster input to one or more member inputs, MapOutput exposes
// exactly one member output, and MapConfig forwards a cluster configuration
// key to a member key. Internal edges and member processes are invisible
// outside; the outer pipeline, schedulers, and validation treat the cluster
// like any other process.
//
// The cluster is the atomic scheduling unit. One outer Step pumps mapped
// inputs inward across relay edges, drives one cooperative round over the
// members, and pumps mapped outputs back out. The outer scheduler never
// steps a member directly. The cluster completes only when every member
// has completed and the relayed output has drained.
package cluster
