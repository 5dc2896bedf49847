package scheduler

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360/flowkit/errors"
	"github.com/c360/flowkit/pipeline"
	"github.com/c360/flowkit/process"
)

// Threaded is the one-worker-per-process scheduler. Every process loops
// Step in its own goroutine, blocking on edge pushes and pops; bounded
// edges are the only shared resource and provide backpressure. The first
// step error cancels the run, shuts down every edge so blocked workers
// unwind, and is surfaced to the caller.
type Threaded struct {
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
	policy   StallPolicy
	metrics  *schedulerMetrics

	mu            sync.Mutex
	state         State
	stopRequested atomic.Bool
	stop          chan struct{}
	stopOnce      sync.Once
}

// ThreadedOption configures a Threaded scheduler
type ThreadedOption func(*Threaded)

// WithThreadedLogger injects a structured logger
func WithThreadedLogger(logger *slog.Logger) ThreadedOption {
	return func(t *Threaded) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithThreadedStallPolicy sets the stamp-mismatch stall policy
func WithThreadedStallPolicy(policy StallPolicy) ThreadedOption {
	return func(t *Threaded) {
		t.policy = policy
	}
}

// NewThreaded creates a threaded scheduler over a set-up pipeline
func NewThreaded(p *pipeline.Pipeline, opts ...ThreadedOption) *Threaded {
	t := &Threaded{
		pipeline: p,
		logger:   p.Logger(),
		state:    StateIdle,
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}

	m, err := newSchedulerMetrics(p.MetricsRegistry())
	if err != nil {
		t.logger.Error("Failed to initialize scheduler metrics", "error", err)
	}
	t.metrics = m
	return t
}

// State returns the current scheduler state
func (t *Threaded) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Threaded) setState(state State) {
	t.mu.Lock()
	t.state = state
	t.mu.Unlock()
}

// Stop requests an orderly shutdown: all workers observe the shutdown at
// their next edge operation and unwind, leaving every edge closed.
func (t *Threaded) Stop() {
	t.stopRequested.Store(true)
	t.stopOnce.Do(func() {
		close(t.stop)
	})
}

// Run starts one worker per process and blocks until the pipeline
// completes, fails, or is stopped.
func (t *Threaded) Run(ctx context.Context) error {
	start := time.Now()
	t.setState(StateRunning)
	t.metrics.recordRunning(t.pipeline.Name(), true)
	defer func() {
		t.metrics.recordRunning(t.pipeline.Name(), false)
		t.metrics.recordRun(t.pipeline.Name(), time.Since(start).Seconds())
	}()

	procs := t.pipeline.Processes()
	setStepMode(procs, true)

	g, gctx := errgroup.WithContext(ctx)
	for _, proc := range procs {
		proc := proc
		g.Go(func() error {
			return t.worker(gctx, proc)
		})
	}

	// Unwind blocked workers on cancellation, stop, or first error
	unwindDone := make(chan struct{})
	go func() {
		defer close(unwindDone)
		select {
		case <-gctx.Done():
			t.pipeline.ShutdownEdges()
		case <-t.stop:
			t.pipeline.ShutdownEdges()
		}
	}()

	err := g.Wait()
	t.Stop() // release the unwind goroutine on clean completion
	<-unwindDone

	if err != nil {
		t.setState(StateFailed)
		t.logger.Error("Pipeline failed",
			"pipeline", t.pipeline.Name(),
			"error", err)
		return err
	}

	t.setState(StateStopped)
	t.logger.Info("Pipeline complete",
		"pipeline", t.pipeline.Name(),
		"duration", time.Since(start))
	return nil
}

// worker loops one process until it completes, fails, or the run unwinds
func (t *Threaded) worker(ctx context.Context, proc process.Process) error {
	name := proc.Name()
	stalls := 0
	defer func() {
		t.metrics.recordState(t.pipeline.Name(), name, float64(proc.State()))
	}()

	for {
		if ctx.Err() != nil || t.stopRequested.Load() {
			return nil
		}

		status, err := stepOnce(proc)

		if err != nil {
			switch {
			case stderrors.Is(err, errors.ErrEdgeShutdown):
				// Unwound by a stop request or another worker's failure
				return nil
			case errors.IsClosed(err):
				// A required input delivered end-of-data: completion path
				t.metrics.recordStep(t.pipeline.Name(), name, "complete")
				return completeProcess(proc)
			case stderrors.Is(err, errors.ErrStampMismatch):
				stalls++
				t.metrics.recordStall(t.pipeline.Name(), name)
				if t.policy.exceeded(stalls) {
					t.metrics.recordError("scheduler", errors.ErrorFatal.String())
					return t.policy.stallFault(name, stalls, err)
				}
				select {
				case <-ctx.Done():
					return nil
				case <-t.stop:
					return nil
				case <-time.After(t.policy.delay()):
				}
				continue
			case errors.IsFlowControl(err):
				continue
			default:
				t.metrics.recordStep(t.pipeline.Name(), name, "error")
				t.metrics.recordError("scheduler", errors.Classify(err).String())
				return errors.Wrap(err, "Threaded", "worker", "step "+name)
			}
		}

		stalls = 0
		switch status {
		case process.StepComplete:
			t.metrics.recordStep(t.pipeline.Name(), name, "complete")
			if proc.State() != process.StateComplete {
				return completeProcess(proc)
			}
			return nil
		case process.StepError:
			t.metrics.recordStep(t.pipeline.Name(), name, "error")
			return errors.WrapFatal(errors.ErrStepFailed, "Threaded", "worker", name)
		default:
			t.metrics.recordStep(t.pipeline.Name(), name, "ok")
		}
	}
}
