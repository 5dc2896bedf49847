package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/flowkit/metric"
)

// pipelineMetrics holds Prometheus metrics for pipeline construction and
// validation. A nil *pipelineMetrics disables instrumentation.
type pipelineMetrics struct {
	processes        *prometheus.GaugeVec     // By pipeline
	edges            *prometheus.GaugeVec     // By pipeline
	setupDuration    *prometheus.HistogramVec // By pipeline
	validationIssues *prometheus.CounterVec   // By pipeline and severity
}

// newPipelineMetrics creates and registers pipeline metrics with the
// provided registry.
func newPipelineMetrics(registry *metric.Registry) (*pipelineMetrics, error) {
	if registry == nil {
		return nil, nil // Metrics disabled
	}

	m := &pipelineMetrics{
		processes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "flowkit",
			Subsystem: "pipeline",
			Name:      "processes",
			Help:      "Number of processes registered in each pipeline",
		}, []string{"pipeline"}),

		edges: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "flowkit",
			Subsystem: "pipeline",
			Name:      "edges",
			Help:      "Number of edges connected in each pipeline",
		}, []string{"pipeline"}),

		setupDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flowkit",
			Subsystem: "pipeline",
			Name:      "setup_duration_seconds",
			Help:      "Pipeline setup (validation) duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1.0},
		}, []string{"pipeline"}),

		validationIssues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowkit",
			Subsystem: "pipeline",
			Name:      "validation_issues_total",
			Help:      "Total number of validation issues found at setup",
		}, []string{"pipeline", "severity"}),
	}

	if err := registry.RegisterGaugeVec("pipeline", "processes", m.processes); err != nil {
		return nil, err
	}
	if err := registry.RegisterGaugeVec("pipeline", "edges", m.edges); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogramVec("pipeline", "setup_duration", m.setupDuration); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("pipeline", "validation_issues", m.validationIssues); err != nil {
		return nil, err
	}

	return m, nil
}

// recordProcesses records the process count for a pipeline
func (m *pipelineMetrics) recordProcesses(pipeline string, count int) {
	if m == nil {
		return
	}
	m.processes.WithLabelValues(pipeline).Set(float64(count))
}

// recordEdges records the edge count for a pipeline
func (m *pipelineMetrics) recordEdges(pipeline string, count int) {
	if m == nil {
		return
	}
	m.edges.WithLabelValues(pipeline).Set(float64(count))
}

// recordSetup records a setup run and its validation issues
func (m *pipelineMetrics) recordSetup(pipeline string, duration float64, result *ValidationResult) {
	if m == nil {
		return
	}
	m.setupDuration.WithLabelValues(pipeline).Observe(duration)
	if n := len(result.Errors); n > 0 {
		m.validationIssues.WithLabelValues(pipeline, "error").Add(float64(n))
	}
	if n := len(result.Warnings); n > 0 {
		m.validationIssues.WithLabelValues(pipeline, "warning").Add(float64(n))
	}
}
