// Package testutil provides small concrete processes for exercising
// pipelines in tests: a bounded source, a recording sink, simple one-in
// one-out transforms, a two-input synchronized adder, and a step-counting
// wrapper. They are real processes, usable from any package's tests and
// registrable through a process registry.
package testutil
