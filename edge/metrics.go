package edge

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/flowkit/metric"
)

// Metrics holds Prometheus metrics shared by all edges of a pipeline.
// A nil *Metrics disables instrumentation.
type Metrics struct {
	pushes *prometheus.CounterVec // By edge
	pops   *prometheus.CounterVec // By edge
	depth  *prometheus.GaugeVec   // By edge
}

// NewMetrics creates and registers edge metrics with the provided registry.
func NewMetrics(registry *metric.Registry) (*Metrics, error) {
	if registry == nil {
		return nil, nil // Metrics disabled
	}

	m := &Metrics{
		pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowkit",
			Subsystem: "edge",
			Name:      "pushes_total",
			Help:      "Total number of datums pushed onto edges",
		}, []string{"edge"}),

		pops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowkit",
			Subsystem: "edge",
			Name:      "pops_total",
			Help:      "Total number of datums popped from edges",
		}, []string{"edge"}),

		depth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "flowkit",
			Subsystem: "edge",
			Name:      "depth",
			Help:      "Current number of datums queued on each edge",
		}, []string{"edge"}),
	}

	if err := registry.RegisterCounterVec("edge", "pushes", m.pushes); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("edge", "pops", m.pops); err != nil {
		return nil, err
	}
	if err := registry.RegisterGaugeVec("edge", "depth", m.depth); err != nil {
		return nil, err
	}

	return m, nil
}

// recordPush records a push and the resulting queue depth
func (m *Metrics) recordPush(edge string, depth int) {
	if m == nil {
		return
	}
	m.pushes.WithLabelValues(edge).Inc()
	m.depth.WithLabelValues(edge).Set(float64(depth))
}

// recordPop records a pop and the resulting queue depth
func (m *Metrics) recordPop(edge string, depth int) {
	if m == nil {
		return
	}
	m.pops.WithLabelValues(edge).Inc()
	m.depth.WithLabelValues(edge).Set(float64(depth))
}
