// Package metric provides Prometheus-based metrics collection for flowkit
// pipeline monitoring and observability.
//
// The package offers a centralized metrics registry managing both core
// engine metrics (process states, datum throughput, engine errors) and
// subsystem-specific metrics registered by the pipeline, edge, and
// scheduler packages.
//
// # Architecture
//
//  1. Core Metrics: engine-level metrics automatically registered (Metrics type)
//  2. Subsystem Registry: extensible registration for subsystem metrics
//     (MetricsRegistrar interface)
//
// Metrics are optional throughout the engine: every consumer is nil-safe,
// so a pipeline built without a registry carries no instrumentation cost.
//
// # Basic Usage
//
//	registry := metric.NewRegistry()
//	p := pipeline.New("tracking", pipeline.WithMetrics(registry))
//	...
//	promhttp.HandlerFor(registry.PrometheusRegistry(), promhttp.HandlerOpts{})
package metric
