package metric

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/c360/flowkit/errors"
)

// MetricsRegistrar defines the interface for registering subsystem-specific metrics
type MetricsRegistrar interface {
	RegisterCounter(subsystem, metricName string, counter prometheus.Counter) error
	RegisterGauge(subsystem, metricName string, gauge prometheus.Gauge) error
	RegisterHistogram(subsystem, metricName string, histogram prometheus.Histogram) error
	RegisterCounterVec(subsystem, metricName string, counterVec *prometheus.CounterVec) error
	RegisterGaugeVec(subsystem, metricName string, gaugeVec *prometheus.GaugeVec) error
	RegisterHistogramVec(subsystem, metricName string, histogramVec *prometheus.HistogramVec) error
	Unregister(subsystem, metricName string) bool
}

// Registry manages the registration and lifecycle of engine metrics
type Registry struct {
	prometheusRegistry *prometheus.Registry
	Metrics            *Metrics
	registeredMetrics  map[string]prometheus.Collector
	mu                 sync.RWMutex
}

// NewRegistry creates a new metrics registry with core engine metrics
func NewRegistry() *Registry {
	prometheusRegistry := prometheus.NewRegistry()

	registry := &Registry{
		prometheusRegistry: prometheusRegistry,
		registeredMetrics:  make(map[string]prometheus.Collector),
	}

	registry.Metrics = NewMetrics()
	for _, c := range registry.Metrics.collectors() {
		prometheusRegistry.MustRegister(c)
	}

	// Add Go runtime metrics
	registry.prometheusRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return registry
}

// PrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// CoreMetrics returns the core engine metrics
func (r *Registry) CoreMetrics() *Metrics {
	return r.Metrics
}

// register registers a collector under a subsystem-qualified key
func (r *Registry) register(subsystem, metricName, kind string, c prometheus.Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", subsystem, metricName)

	if _, exists := r.registeredMetrics[key]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("metric %s already registered for subsystem %s", metricName, subsystem),
			"Registry", kind, "duplicate metric registration")
	}

	if err := r.prometheusRegistry.Register(c); err != nil {
		var alreadyRegErr prometheus.AlreadyRegisteredError
		if stderrors.As(err, &alreadyRegErr) {
			return errors.WrapInvalid(err, "Registry", kind,
				fmt.Sprintf("prometheus conflict for metric %s", metricName))
		}
		return errors.WrapFatal(err, "Registry", kind, "prometheus registration")
	}

	r.registeredMetrics[key] = c
	return nil
}

// RegisterCounter registers a counter metric for a subsystem
func (r *Registry) RegisterCounter(subsystem, metricName string, counter prometheus.Counter) error {
	return r.register(subsystem, metricName, "RegisterCounter", counter)
}

// RegisterGauge registers a gauge metric for a subsystem
func (r *Registry) RegisterGauge(subsystem, metricName string, gauge prometheus.Gauge) error {
	return r.register(subsystem, metricName, "RegisterGauge", gauge)
}

// RegisterHistogram registers a histogram metric for a subsystem
func (r *Registry) RegisterHistogram(subsystem, metricName string, histogram prometheus.Histogram) error {
	return r.register(subsystem, metricName, "RegisterHistogram", histogram)
}

// RegisterCounterVec registers a counter vector metric for a subsystem
func (r *Registry) RegisterCounterVec(subsystem, metricName string, counterVec *prometheus.CounterVec) error {
	return r.register(subsystem, metricName, "RegisterCounterVec", counterVec)
}

// RegisterGaugeVec registers a gauge vector metric for a subsystem
func (r *Registry) RegisterGaugeVec(subsystem, metricName string, gaugeVec *prometheus.GaugeVec) error {
	return r.register(subsystem, metricName, "RegisterGaugeVec", gaugeVec)
}

// RegisterHistogramVec registers a histogram vector metric for a subsystem
func (r *Registry) RegisterHistogramVec(subsystem, metricName string, histogramVec *prometheus.HistogramVec) error {
	return r.register(subsystem, metricName, "RegisterHistogramVec", histogramVec)
}

// Unregister removes a subsystem metric, reporting whether it was present
func (r *Registry) Unregister(subsystem, metricName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", subsystem, metricName)
	c, exists := r.registeredMetrics[key]
	if !exists {
		return false
	}

	r.prometheusRegistry.Unregister(c)
	delete(r.registeredMetrics, key)
	return true
}
