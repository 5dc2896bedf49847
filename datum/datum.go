// Package datum defines the unit of data that traverses pipeline edges.
//
// A Datum carries an opaque payload plus a classification that tells the
// engine how to treat it: regular data, an empty placeholder, a flush
// request, the end-of-data marker that closes an edge, or a process error.
// Every datum is tagged with a Stamp, the ordinal used to synchronize the
// parallel input edges of a process.
package datum

import "fmt"

// Type classifies a datum for engine-level handling.
// Payload types are erased at this level; processes interpret the payload
// via the port type negotiated at connection time.
type Type int

const (
	// Data indicates the datum carries valid payload data
	Data Type = iota
	// Empty indicates a placeholder with no payload for this step
	Empty
	// Flush requests that downstream processes flush buffered state
	Flush
	// Complete is the end-of-data marker; once pushed it is always the
	// last element on an edge
	Complete
	// Error indicates the producing process signalled an internal failure
	Error
)

// String returns a string representation of the datum type
func (t Type) String() string {
	switch t {
	case Data:
		return "data"
	case Empty:
		return "empty"
	case Flush:
		return "flush"
	case Complete:
		return "complete"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Datum is a single unit of payload data moving across an edge
type Datum struct {
	Type  Type
	Value any
	Stamp Stamp
	Err   error
}

// New creates a data datum carrying value at the given stamp
func New(stamp Stamp, value any) Datum {
	return Datum{Type: Data, Value: value, Stamp: stamp}
}

// NewEmpty creates an empty datum at the given stamp
func NewEmpty(stamp Stamp) Datum {
	return Datum{Type: Empty, Stamp: stamp}
}

// NewFlush creates a flush marker at the given stamp
func NewFlush(stamp Stamp) Datum {
	return Datum{Type: Flush, Stamp: stamp}
}

// NewComplete creates an end-of-data marker at the given stamp
func NewComplete(stamp Stamp) Datum {
	return Datum{Type: Complete, Stamp: stamp}
}

// NewError creates an error datum at the given stamp
func NewError(stamp Stamp, err error) Datum {
	return Datum{Type: Error, Stamp: stamp, Err: err}
}

// IsComplete reports whether the datum is the end-of-data marker
func (d Datum) IsComplete() bool {
	return d.Type == Complete
}

// String returns a compact representation for logging
func (d Datum) String() string {
	return fmt.Sprintf("%s@%d", d.Type, d.Stamp.Index)
}
