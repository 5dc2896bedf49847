package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_CoreMetricsRegistered(t *testing.T) {
	r := NewRegistry()
	require.NotNil(t, r.Metrics)
	require.NotNil(t, r.PrometheusRegistry())

	// Core metrics are live: exercising them must not panic and must gather
	r.Metrics.PipelinesActive.Inc()
	r.Metrics.DatumsProduced.WithLabelValues("p", "proc").Add(3)

	families, err := r.PrometheusRegistry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestRegistry_RegisterAndUnregister(t *testing.T) {
	r := NewRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "flowkit",
		Subsystem: "test",
		Name:      "things_total",
	})
	require.NoError(t, r.RegisterCounter("test", "things", counter))

	// Same subsystem/name pair is rejected
	dup := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "flowkit",
		Subsystem: "test",
		Name:      "things_other_total",
	})
	err := r.RegisterCounter("test", "things", dup)
	require.Error(t, err)

	assert.True(t, r.Unregister("test", "things"))
	assert.False(t, r.Unregister("test", "things"))

	// Re-registration succeeds after unregistering
	require.NoError(t, r.RegisterCounter("test", "things", counter))
}

func TestRegistry_RegisterVecKinds(t *testing.T) {
	r := NewRegistry()

	cv := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowkit", Subsystem: "test", Name: "cv_total",
	}, []string{"label"})
	gv := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "flowkit", Subsystem: "test", Name: "gv",
	}, []string{"label"})
	hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "flowkit", Subsystem: "test", Name: "hv_seconds",
	}, []string{"label"})

	require.NoError(t, r.RegisterCounterVec("test", "cv", cv))
	require.NoError(t, r.RegisterGaugeVec("test", "gv", gv))
	require.NoError(t, r.RegisterHistogramVec("test", "hv", hv))

	cv.WithLabelValues("a").Inc()
	gv.WithLabelValues("a").Set(2)
	hv.WithLabelValues("a").Observe(0.5)

	families, err := r.PrometheusRegistry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
