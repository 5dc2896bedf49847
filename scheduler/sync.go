package scheduler

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/flowkit/edge"
	"github.com/c360/flowkit/errors"
	"github.com/c360/flowkit/pipeline"
	"github.com/c360/flowkit/process"
)

// Sync is the single-threaded cooperative scheduler. Each round it steps
// every non-complete process once in the pipeline's execution order. A
// process whose downstream edge is full is skipped until the next round,
// and processes run in cooperative step mode so a starved input yields
// control instead of blocking the only thread.
type Sync struct {
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
	policy   StallPolicy
	metrics  *schedulerMetrics

	mu            sync.Mutex
	state         State
	stopRequested atomic.Bool
	stalls        map[string]int
	producerEdges map[string][]*edge.Edge
}

// SyncOption configures a Sync scheduler
type SyncOption func(*Sync)

// WithSyncLogger injects a structured logger
func WithSyncLogger(logger *slog.Logger) SyncOption {
	return func(s *Sync) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSyncStallPolicy sets the stamp-mismatch stall policy
func WithSyncStallPolicy(policy StallPolicy) SyncOption {
	return func(s *Sync) {
		s.policy = policy
	}
}

// NewSync creates a cooperative scheduler over a set-up pipeline
func NewSync(p *pipeline.Pipeline, opts ...SyncOption) *Sync {
	s := &Sync{
		pipeline: p,
		logger:   p.Logger(),
		state:    StateIdle,
		stalls:   make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}

	m, err := newSchedulerMetrics(p.MetricsRegistry())
	if err != nil {
		s.logger.Error("Failed to initialize scheduler metrics", "error", err)
	}
	s.metrics = m

	s.producerEdges = make(map[string][]*edge.Edge)
	for _, c := range p.Connections() {
		s.producerEdges[c.UpProcess] = append(s.producerEdges[c.UpProcess], c.Edge)
	}
	return s
}

// State returns the current scheduler state
func (s *Sync) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Sync) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Stop requests an orderly shutdown at the next round boundary
func (s *Sync) Stop() {
	s.stopRequested.Store(true)
}

// Run steps the pipeline round by round until every process completes
func (s *Sync) Run(ctx context.Context) error {
	start := time.Now()
	s.setState(StateRunning)
	s.metrics.recordRunning(s.pipeline.Name(), true)
	defer func() {
		s.metrics.recordRunning(s.pipeline.Name(), false)
		s.metrics.recordRun(s.pipeline.Name(), time.Since(start).Seconds())
	}()

	setStepMode(s.pipeline.Processes(), false)

	for {
		if err := ctx.Err(); err != nil {
			s.unwind()
			s.setState(StateStopped)
			return errors.WrapFlowControl(errors.ErrStopped, "Sync", "Run", "context cancellation")
		}
		if s.stopRequested.Load() {
			s.unwind()
			s.setState(StateStopped)
			s.logger.Info("Scheduler stopped on request", "pipeline", s.pipeline.Name())
			return nil
		}

		done, err := s.Round()
		if err != nil {
			s.unwind()
			s.setState(StateFailed)
			return err
		}
		if done {
			s.setState(StateStopped)
			s.logger.Info("Pipeline complete",
				"pipeline", s.pipeline.Name(),
				"duration", time.Since(start))
			return nil
		}
	}
}

// Round steps every non-complete process once and reports whether the
// whole pipeline has completed. Exposed so a process cluster can drive
// its internal sub-pipeline one round per outer step.
func (s *Sync) Round() (bool, error) {
	s.metrics.recordRound(s.pipeline.Name())

	done := true
	for _, proc := range s.pipeline.ExecutionOrder() {
		switch proc.State() {
		case process.StateComplete:
			continue
		case process.StateFailed:
			return false, errors.WrapFatal(errors.ErrStepFailed, "Sync", "Round", proc.Name())
		}
		done = false

		// Backpressure: skip producers whose downstream is full
		if s.downstreamFull(proc.Name()) {
			continue
		}

		if err := s.stepProcess(proc); err != nil {
			return false, err
		}
		if proc.State() == process.StateComplete {
			// Completed this round; the remaining processes still run
			continue
		}
	}
	return done, nil
}

// stepProcess runs one step and classifies the outcome
func (s *Sync) stepProcess(proc process.Process) error {
	name := proc.Name()
	defer func() {
		s.metrics.recordState(s.pipeline.Name(), name, float64(proc.State()))
	}()
	status, err := stepOnce(proc)

	if err != nil {
		switch {
		case errors.IsClosed(err):
			// A required input delivered end-of-data: completion, not error
			s.metrics.recordStep(s.pipeline.Name(), name, "complete")
			return completeProcess(proc)
		case stderrors.Is(err, errors.ErrStampMismatch):
			s.stalls[name]++
			s.metrics.recordStall(s.pipeline.Name(), name)
			if s.policy.exceeded(s.stalls[name]) {
				s.metrics.recordError("scheduler", errors.ErrorFatal.String())
				return s.policy.stallFault(name, s.stalls[name], err)
			}
			return nil
		case errors.IsFlowControl(err):
			// No data yet or downstream full; retry next round
			return nil
		default:
			s.metrics.recordStep(s.pipeline.Name(), name, "error")
			s.metrics.recordError("scheduler", errors.Classify(err).String())
			return errors.Wrap(err, "Sync", "Round", "step "+name)
		}
	}

	s.stalls[name] = 0
	switch status {
	case process.StepComplete:
		s.metrics.recordStep(s.pipeline.Name(), name, "complete")
		if proc.State() != process.StateComplete {
			return completeProcess(proc)
		}
	case process.StepError:
		s.metrics.recordStep(s.pipeline.Name(), name, "error")
		return errors.WrapFatal(errors.ErrStepFailed, "Sync", "Round", name)
	default:
		s.metrics.recordStep(s.pipeline.Name(), name, "ok")
	}
	return nil
}

// downstreamFull reports whether any edge produced by the process is full
func (s *Sync) downstreamFull(name string) bool {
	for _, e := range s.producerEdges[name] {
		if e.Full() {
			return true
		}
	}
	return false
}

// unwind closes every edge so partially-completed pipelines still leave
// each edge in a well-defined closed state.
func (s *Sync) unwind() {
	s.pipeline.ShutdownEdges()
}
