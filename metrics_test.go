package queuez

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetrics_RecordsQueueActivity(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewPrometheusMetrics(reg, "queuez")
	require.NoError(t, err)

	q := NewParallelQueue[int](2, WithName("prom"), WithMetrics(m))
	defer func() { _ = q.Shutdown() }()

	bad := NewProcessor("bad", func(_ context.Context, v int) (bool, error) {
		if v == 2 {
			return false, errBoom
		}
		return true, nil
	})
	require.NoError(t, q.Add(bad))
	require.NoError(t, q.Add(newTally("ok")))
	require.NoError(t, q.Start())
	feed(t, q, 1, 5)
	_ = q.Stop()

	assert.InDelta(t, 5, testutil.ToFloat64(m.dispatched.WithLabelValues("prom")), 0)
	assert.InDelta(t, 10, testutil.ToFloat64(m.submitted.WithLabelValues("prom")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.failures.WithLabelValues("prom", "bad")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.inFlight.WithLabelValues("prom")), 0)

	families, err := reg.Gather()
	require.NoError(t, err)
	drain := findFamily(families, "queuez_drain_duration_seconds")
	require.NotNil(t, drain)
	require.Len(t, drain.GetMetric(), 1)
	assert.EqualValues(t, 1, drain.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestPrometheusMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheusMetrics(reg, "queuez")
	require.NoError(t, err)

	_, err = NewPrometheusMetrics(reg, "queuez")
	assert.Error(t, err)
}

func TestPrometheusMetrics_AbandonedSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewPrometheusMetrics(reg, "queuez")
	require.NoError(t, err)

	m.Abandoned("q")
	m.Abandoned("q")
	assert.Equal(t, 1, testutil.CollectAndCount(m.abandoned))
	assert.InDelta(t, 2, testutil.ToFloat64(m.abandoned.WithLabelValues("q")), 0)
}

func findFamily(families []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func TestPrometheusMetrics_FailureSeriesPerStableMember(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewPrometheusMetrics(reg, "queuez")
	require.NoError(t, err)

	q := NewSerialQueue[int](WithName("stable"), WithMetrics(m))
	defer func() { _ = q.Shutdown() }()
	require.NoError(t, q.Add(NewProcessor("always-fails", func(context.Context, int) (bool, error) {
		return false, errBoom
	})))
	require.NoError(t, q.Start())
	for i := 0; i < 50; i++ {
		_, _ = q.Process(context.Background(), i)
	}
	require.NoError(t, q.Stop())

	assert.Equal(t, 1, testutil.CollectAndCount(m.failures), "one series per queue and member")
	assert.InDelta(t, 50, testutil.ToFloat64(m.failures.WithLabelValues("stable", "always-fails")), 0)
}
