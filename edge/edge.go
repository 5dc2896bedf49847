package edge

import (
	"fmt"
	"sync"

	"github.com/c360/flowkit/datum"
	"github.com/c360/flowkit/errors"
)

// TypeAny is the wildcard port type that is compatible with every type
const TypeAny = "any"

// Compatible reports whether two port type tags may be connected.
// Types must be identical or one must be the wildcard.
func Compatible(a, b string) bool {
	return a == b || a == TypeAny || b == TypeAny
}

// Edge is a bounded FIFO of datums between one output port and one input
// port. Safe for concurrent use by one producer and one consumer.
type Edge struct {
	name     string
	typ      string
	capacity int
	required bool

	mu             sync.Mutex
	notFull        *sync.Cond
	notEmpty       *sync.Cond
	queue          []datum.Datum
	closed         bool
	shutdown       bool
	downstreamDone bool

	metrics *Metrics
}

// Option configures an Edge
type Option func(*Edge)

// WithMetrics attaches edge metrics instrumentation
func WithMetrics(m *Metrics) Option {
	return func(e *Edge) {
		e.metrics = m
	}
}

// New creates an edge carrying the given type tag. A capacity of 0 means
// unbounded; a positive capacity enforces backpressure.
func New(name, typ string, capacity int, required bool, opts ...Option) *Edge {
	e := &Edge{
		name:     name,
		typ:      typ,
		capacity: capacity,
		required: required,
	}
	e.notFull = sync.NewCond(&e.mu)
	e.notEmpty = sync.NewCond(&e.mu)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the edge identifier ("upstream.port->downstream.port")
func (e *Edge) Name() string { return e.name }

// Type returns the carried type tag
func (e *Edge) Type() string { return e.typ }

// Required reports whether the downstream input is a required port
func (e *Edge) Required() bool { return e.required }

// Cap returns the configured capacity; 0 means unbounded
func (e *Edge) Cap() int { return e.capacity }

// Len returns the number of queued datums
func (e *Edge) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// Full reports whether a push would block or fail right now
func (e *Edge) Full() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.capacity > 0 && len(e.queue) >= e.capacity
}

// Closed reports whether an end-of-data marker has been pushed
func (e *Edge) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Push appends a datum to the tail, blocking while the edge is at capacity.
// Pushing a Complete datum closes the edge; subsequent pushes fail with
// ErrEdgeClosed. Returns ErrEdgeShutdown after a scheduler stop request.
// Once the consumer has completed, pushes are silently dropped so the
// producer keeps running toward its own completion.
func (e *Edge) Push(d datum.Datum) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for {
		if e.shutdown {
			return errors.WrapFlowControl(errors.ErrEdgeShutdown, "Edge", "Push", e.name)
		}
		if e.downstreamDone {
			return nil
		}
		if e.closed {
			return errors.WrapFlowControl(errors.ErrEdgeClosed, "Edge", "Push", e.name)
		}
		if e.capacity == 0 || len(e.queue) < e.capacity {
			break
		}
		e.notFull.Wait()
	}

	e.append(d)
	return nil
}

// TryPush appends a datum without blocking, failing with ErrEdgeFull when
// the edge is at capacity.
func (e *Edge) TryPush(d datum.Datum) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.shutdown {
		return errors.WrapFlowControl(errors.ErrEdgeShutdown, "Edge", "TryPush", e.name)
	}
	if e.downstreamDone {
		return nil
	}
	if e.closed {
		return errors.WrapFlowControl(errors.ErrEdgeClosed, "Edge", "TryPush", e.name)
	}
	if e.capacity > 0 && len(e.queue) >= e.capacity {
		return errors.WrapFlowControl(errors.ErrEdgeFull, "Edge", "TryPush", e.name)
	}

	e.append(d)
	return nil
}

// append adds d to the queue tail; caller holds the lock
func (e *Edge) append(d datum.Datum) {
	e.queue = append(e.queue, d)
	if d.IsComplete() {
		e.closed = true
		// Wake everything so blocked peers observe the closed state
		e.notEmpty.Broadcast()
		e.notFull.Broadcast()
	} else {
		e.notEmpty.Signal()
	}
	e.metrics.recordPush(e.name, len(e.queue))
}

// Pop removes and returns the head, blocking while the edge is empty and
// open. After closure, remaining queued data is drained, the Complete
// marker is yielded exactly once, and further pops fail with ErrEdgeClosed.
func (e *Edge) Pop() (datum.Datum, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for {
		if e.shutdown {
			return datum.Datum{}, errors.WrapFlowControl(errors.ErrEdgeShutdown, "Edge", "Pop", e.name)
		}
		if len(e.queue) > 0 {
			return e.removeHead(), nil
		}
		if e.closed {
			return datum.Datum{}, errors.WrapFlowControl(errors.ErrEdgeClosed, "Edge", "Pop", e.name)
		}
		e.notEmpty.Wait()
	}
}

// TryPop removes and returns the head without blocking, failing with
// ErrEdgeEmpty when nothing is available on an open edge.
func (e *Edge) TryPop() (datum.Datum, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.shutdown {
		return datum.Datum{}, errors.WrapFlowControl(errors.ErrEdgeShutdown, "Edge", "TryPop", e.name)
	}
	if len(e.queue) > 0 {
		return e.removeHead(), nil
	}
	if e.closed {
		return datum.Datum{}, errors.WrapFlowControl(errors.ErrEdgeClosed, "Edge", "TryPop", e.name)
	}
	return datum.Datum{}, errors.WrapFlowControl(errors.ErrEdgeEmpty, "Edge", "TryPop", e.name)
}

// removeHead pops the queue head; caller holds the lock
func (e *Edge) removeHead() datum.Datum {
	d := e.queue[0]
	e.queue = e.queue[1:]
	e.notFull.Signal()
	e.metrics.recordPop(e.name, len(e.queue))
	return d
}

// Peek returns the head without removing it. This is how a process compares
// input stamps without consuming mismatched data.
func (e *Edge) Peek() (datum.Datum, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.shutdown {
		return datum.Datum{}, errors.WrapFlowControl(errors.ErrEdgeShutdown, "Edge", "Peek", e.name)
	}
	if len(e.queue) > 0 {
		return e.queue[0], nil
	}
	if e.closed {
		return datum.Datum{}, errors.WrapFlowControl(errors.ErrEdgeClosed, "Edge", "Peek", e.name)
	}
	return datum.Datum{}, errors.WrapFlowControl(errors.ErrEdgeEmpty, "Edge", "Peek", e.name)
}

// PeekWait blocks until a datum is available and returns it without
// removing it. Fails with ErrEdgeClosed once the edge is drained after
// closure, or ErrEdgeShutdown after a stop request.
func (e *Edge) PeekWait() (datum.Datum, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for {
		if e.shutdown {
			return datum.Datum{}, errors.WrapFlowControl(errors.ErrEdgeShutdown, "Edge", "PeekWait", e.name)
		}
		if len(e.queue) > 0 {
			return e.queue[0], nil
		}
		if e.closed {
			return datum.Datum{}, errors.WrapFlowControl(errors.ErrEdgeClosed, "Edge", "PeekWait", e.name)
		}
		e.notEmpty.Wait()
	}
}

// MarkDownstreamDone records that the consumer of this edge has completed.
// Queued datums are discarded and every current and future push is dropped,
// so a producer blocked on a consumer that will never pop again wakes up
// and runs to its own completion instead of hanging the pipeline.
func (e *Edge) MarkDownstreamDone() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.downstreamDone {
		return
	}
	e.downstreamDone = true
	e.queue = nil
	e.notFull.Broadcast()
}

// DownstreamDone reports whether the consumer has completed
func (e *Edge) DownstreamDone() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.downstreamDone
}

// Shutdown immediately stops the edge on behalf of the scheduler. All
// blocked and future pushes and pops fail with ErrEdgeShutdown, so worker
// threads observe the stop at their next edge operation and unwind. The
// edge ends in the closed state.
func (e *Edge) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.shutdown {
		return
	}
	e.shutdown = true
	e.closed = true
	e.notEmpty.Broadcast()
	e.notFull.Broadcast()
}

// Reset discards any queued datums and reopens a closed or shut-down edge
// so the graph can be stepped again after completion.
func (e *Edge) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.queue = nil
	e.closed = false
	e.shutdown = false
	e.downstreamDone = false
	e.notFull.Broadcast()
}

// EdgeName builds the canonical edge identifier for a connection
func EdgeName(upProcess, upPort, downProcess, downPort string) string {
	return fmt.Sprintf("%s.%s->%s.%s", upProcess, upPort, downProcess, downPort)
}
