package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/flowkit/metric"
)

// schedulerMetrics holds Prometheus metrics for scheduler runs.
// A nil *schedulerMetrics disables instrumentation.
type schedulerMetrics struct {
	steps       *prometheus.CounterVec   // By pipeline, process, and status
	stalls      *prometheus.CounterVec   // By pipeline and process
	rounds      *prometheus.CounterVec   // By pipeline
	runDuration *prometheus.HistogramVec // By pipeline
	running     *prometheus.GaugeVec     // By pipeline

	core *metric.Metrics
}

// newSchedulerMetrics creates and registers scheduler metrics with the
// provided registry. Registration is idempotent across the schedulers of
// one pipeline: a second scheduler reuses nothing and simply runs without
// its own instruments when the names are already taken.
func newSchedulerMetrics(registry *metric.Registry) (*schedulerMetrics, error) {
	if registry == nil {
		return nil, nil // Metrics disabled
	}

	m := &schedulerMetrics{
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowkit",
			Subsystem: "scheduler",
			Name:      "steps_total",
			Help:      "Total number of process steps by outcome",
		}, []string{"pipeline", "process", "status"}),

		stalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowkit",
			Subsystem: "scheduler",
			Name:      "stalls_total",
			Help:      "Total number of stamp-mismatch stalls",
		}, []string{"pipeline", "process"}),

		rounds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowkit",
			Subsystem: "scheduler",
			Name:      "rounds_total",
			Help:      "Total number of cooperative scheduler rounds",
		}, []string{"pipeline"}),

		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flowkit",
			Subsystem: "scheduler",
			Name:      "run_duration_seconds",
			Help:      "Scheduler run duration in seconds",
			Buckets:   []float64{0.01, 0.1, 0.5, 1.0, 5.0, 30.0, 120.0},
		}, []string{"pipeline"}),

		running: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "flowkit",
			Subsystem: "scheduler",
			Name:      "running",
			Help:      "Whether a scheduler is currently running the pipeline",
		}, []string{"pipeline"}),
	}

	if err := registry.RegisterCounterVec("scheduler", "steps", m.steps); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("scheduler", "stalls", m.stalls); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("scheduler", "rounds", m.rounds); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogramVec("scheduler", "run_duration", m.runDuration); err != nil {
		return nil, err
	}
	if err := registry.RegisterGaugeVec("scheduler", "running", m.running); err != nil {
		return nil, err
	}

	m.core = registry.CoreMetrics()
	return m, nil
}

// recordStep records one process step by outcome
func (m *schedulerMetrics) recordStep(pipeline, process, status string) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(pipeline, process, status).Inc()
}

// recordStall records a stamp-mismatch stall
func (m *schedulerMetrics) recordStall(pipeline, process string) {
	if m == nil {
		return
	}
	m.stalls.WithLabelValues(pipeline, process).Inc()
}

// recordRound records one cooperative round
func (m *schedulerMetrics) recordRound(pipeline string) {
	if m == nil {
		return
	}
	m.rounds.WithLabelValues(pipeline).Inc()
}

// recordRun records a completed run's duration
func (m *schedulerMetrics) recordRun(pipeline string, seconds float64) {
	if m == nil {
		return
	}
	m.runDuration.WithLabelValues(pipeline).Observe(seconds)
}

// recordRunning flips the running gauge and the active-pipeline count
func (m *schedulerMetrics) recordRunning(pipeline string, running bool) {
	if m == nil {
		return
	}
	v := 0.0
	if running {
		v = 1.0
	}
	m.running.WithLabelValues(pipeline).Set(v)
	if m.core != nil {
		if running {
			m.core.PipelinesActive.Inc()
		} else {
			m.core.PipelinesActive.Dec()
		}
	}
}

// recordState publishes a process's lifecycle state as a numeric gauge
func (m *schedulerMetrics) recordState(pipeline, process string, state float64) {
	if m == nil || m.core == nil {
		return
	}
	m.core.ProcessState.WithLabelValues(pipeline, process).Set(state)
}

// recordError accounts a classified engine error against its component
func (m *schedulerMetrics) recordError(component, class string) {
	if m == nil || m.core == nil {
		return
	}
	m.core.ErrorsTotal.WithLabelValues(component, class).Inc()
}
