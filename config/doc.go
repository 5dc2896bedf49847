// Package config provides the ordered, dotted-key configuration object
// consumed by processes and pipelines.
//
// A Config is an ordered mapping from dotted keys (for example
// "reader.path" or "edge.capacity") to string values. Ordering follows
// insertion, so configuration written back out or iterated for validation
// reports keys in a stable, human-meaningful order.
//
// Processes declare the keys they understand as Declarations carrying a
// default value and a description. Declarations drive both defaulting
// (ApplyDefaults) and batch validation (Validate), which accumulates every
// problem instead of stopping at the first so a configuration dry-run can
// report all issues at once.
//
// Subset extracts a nested view by key prefix and is how cluster-mapped and
// nested process configuration is distributed.
package config
