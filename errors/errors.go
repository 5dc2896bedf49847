// Package errors provides standardized error handling for the flowkit engine.
// It includes error classification, sentinel error variables for the engine's
// error taxonomy, and helper functions for consistent error wrapping across
// the pipeline, edge, process, and scheduler layers.
package errors

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorFlowControl represents flow-control signals that are part of
	// normal operation (edge empty, edge closed) rather than failures
	ErrorFlowControl ErrorClass = iota
	// ErrorInvalid represents errors due to invalid input, configuration,
	// or graph construction
	ErrorInvalid
	// ErrorFatal represents unrecoverable errors that should stop the pipeline
	ErrorFatal
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorFlowControl:
		return "flow-control"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Standard error variables for the engine's error taxonomy
var (
	// Configuration errors
	ErrBadConfiguration = errors.New("bad configuration")
	ErrMissingConfig    = errors.New("missing required configuration key")

	// Graph construction errors
	ErrDuplicateName  = errors.New("duplicate process name")
	ErrNoSuchProcess  = errors.New("no such process")
	ErrNoSuchPort     = errors.New("no such port")
	ErrPortConnected  = errors.New("input port already connected")
	ErrTypeMismatch   = errors.New("port type mismatch")
	ErrTopology       = errors.New("pipeline topology invalid")
	ErrTopologyFrozen = errors.New("pipeline topology is frozen")
	ErrUnknownType    = errors.New("unknown process type")

	// Flow-control signals (not failures)
	ErrEdgeEmpty    = errors.New("edge has no data")
	ErrEdgeFull     = errors.New("edge is at capacity")
	ErrEdgeClosed   = errors.New("edge is closed")
	ErrEdgeShutdown = errors.New("edge shut down by scheduler")
	ErrInputClosed  = errors.New("required input closed")

	// Execution errors
	ErrBadLifecycle  = errors.New("operation illegal in current lifecycle state")
	ErrStampMismatch = errors.New("input stamps do not match")
	ErrStepFailed    = errors.New("process step failed")
	ErrStopped       = errors.New("scheduler stopped")
)

// ClassifiedError wraps an error with its classification
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// IsFlowControl checks if an error is a flow-control signal rather than a
// failure. Callers use this to distinguish "no data yet" and "stream ended"
// from real errors.
func IsFlowControl(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFlowControl
	}

	return errors.Is(err, ErrEdgeEmpty) ||
		errors.Is(err, ErrEdgeFull) ||
		errors.Is(err, ErrEdgeClosed) ||
		errors.Is(err, ErrEdgeShutdown) ||
		errors.Is(err, ErrInputClosed) ||
		errors.Is(err, ErrStampMismatch)
}

// IsClosed checks if an error indicates the stream has ended (as opposed
// to "no data yet")
func IsClosed(err error) bool {
	return errors.Is(err, ErrEdgeClosed) ||
		errors.Is(err, ErrEdgeShutdown) ||
		errors.Is(err, ErrInputClosed)
}

// IsInvalid checks if an error is due to invalid input or construction
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorInvalid
	}

	return errors.Is(err, ErrBadConfiguration) ||
		errors.Is(err, ErrMissingConfig) ||
		errors.Is(err, ErrDuplicateName) ||
		errors.Is(err, ErrNoSuchProcess) ||
		errors.Is(err, ErrNoSuchPort) ||
		errors.Is(err, ErrPortConnected) ||
		errors.Is(err, ErrTypeMismatch) ||
		errors.Is(err, ErrTopology) ||
		errors.Is(err, ErrUnknownType)
}

// IsFatal checks if an error is fatal and should stop the pipeline
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFatal
	}

	return errors.Is(err, ErrStepFailed) || errors.Is(err, ErrBadLifecycle)
}

// Classify returns the error class for an error
func Classify(err error) ErrorClass {
	if IsFlowControl(err) {
		return ErrorFlowControl
	}
	if IsFatal(err) {
		return ErrorFatal
	}
	return ErrorInvalid
}

// newClassified creates a new classified error.
// This is an internal helper - use the Wrap* functions instead.
func newClassified(class ErrorClass, err error, component, operation, message string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapInvalid wraps an error as invalid with context
func WrapInvalid(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorInvalid, wrappedErr, component, method, wrappedErr.Error())
}

// WrapFatal wraps an error as fatal with context
func WrapFatal(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorFatal, wrappedErr, component, method, wrappedErr.Error())
}

// WrapFlowControl wraps an error as a flow-control signal with context
func WrapFlowControl(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorFlowControl, wrappedErr, component, method, wrappedErr.Error())
}

// Batch accumulates multiple validation errors and reports them together.
// Operations explicitly designed to collect all problems (config dry-runs,
// pipeline setup) use a Batch so no error is silently swallowed.
type Batch struct {
	errs []error
}

// Add appends a non-nil error to the batch
func (b *Batch) Add(err error) {
	if err != nil {
		b.errs = append(b.errs, err)
	}
}

// Len returns the number of accumulated errors
func (b *Batch) Len() int {
	return len(b.errs)
}

// Errors returns the accumulated errors
func (b *Batch) Errors() []error {
	return b.errs
}

// Err returns nil if the batch is empty, the single error if there is
// exactly one, and a joined error otherwise.
func (b *Batch) Err() error {
	switch len(b.errs) {
	case 0:
		return nil
	case 1:
		return b.errs[0]
	default:
		return errors.Join(b.errs...)
	}
}
