package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains core engine-level metrics (not subsystem-specific)
type Metrics struct {
	// Pipeline metrics
	PipelinesActive prometheus.Gauge
	ProcessState    *prometheus.GaugeVec

	// Datum throughput
	DatumsProduced *prometheus.CounterVec
	DatumsConsumed *prometheus.CounterVec

	// Error accounting
	ErrorsTotal *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all core engine metrics
func NewMetrics() *Metrics {
	return &Metrics{
		PipelinesActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "flowkit",
				Subsystem: "pipeline",
				Name:      "active",
				Help:      "Number of pipelines currently running",
			},
		),

		ProcessState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "flowkit",
				Subsystem: "process",
				Name:      "state",
				Help:      "Process lifecycle state (0=created, 1=configured, 2=initialized, 3=stepping, 4=idle, 5=complete, 6=failed)",
			},
			[]string{"pipeline", "process"},
		),

		DatumsProduced: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "flowkit",
				Subsystem: "datums",
				Name:      "produced_total",
				Help:      "Total number of datums produced by processes",
			},
			[]string{"pipeline", "process"},
		),

		DatumsConsumed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "flowkit",
				Subsystem: "datums",
				Name:      "consumed_total",
				Help:      "Total number of datums consumed by processes",
			},
			[]string{"pipeline", "process"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "flowkit",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of engine errors",
			},
			[]string{"component", "class"},
		),
	}
}

// collectors returns all core metrics for bulk registration
func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.PipelinesActive,
		m.ProcessState,
		m.DatumsProduced,
		m.DatumsConsumed,
		m.ErrorsTotal,
	}
}
