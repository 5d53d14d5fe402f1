package queuez

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics receives queue events. Implementations must be safe for concurrent use.
type Metrics interface {
	ItemDispatched(queue string)
	Submitted(queue string, n int)
	Completed(queue string)
	MemberFailed(queue, member string)
	Abandoned(queue string)
	Drained(queue string, d time.Duration)
}

// NoopMetrics discards every event.
type NoopMetrics struct{}

func (NoopMetrics) ItemDispatched(string)         {}
func (NoopMetrics) Submitted(string, int)         {}
func (NoopMetrics) Completed(string)              {}
func (NoopMetrics) MemberFailed(string, string)   {}
func (NoopMetrics) Abandoned(string)              {}
func (NoopMetrics) Drained(string, time.Duration) {}

// PrometheusMetrics exports queue events as Prometheus series labelled by queue.
type PrometheusMetrics struct {
	dispatched *prometheus.CounterVec
	submitted  *prometheus.CounterVec
	failures   *prometheus.CounterVec
	abandoned  *prometheus.CounterVec
	inFlight   *prometheus.GaugeVec
	drain      *prometheus.HistogramVec
}

// NewPrometheusMetrics registers the queue series with reg under namespace.
//
// member_failures_total is labelled by queue and member ID. Give members stable
// IDs (NewProcessor("geo", fn), not NewProcessor("", fn)): generated IDs are
// unique per instance and grow the series without bound.
func NewPrometheusMetrics(reg prometheus.Registerer, namespace string) (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_dispatched_total",
			Help:      "Items fanned out to at least one member.",
		}, []string{"queue"}),
		submitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Per-member deliveries handed to the dispatch strategy.",
		}, []string{"queue"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "member_failures_total",
			Help:      "Per-member deliveries that returned an error.",
		}, []string{"queue", "member"}),
		abandoned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "abandoned_total",
			Help:      "Queued deliveries skipped by an immediate shutdown.",
		}, []string{"queue"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "in_flight",
			Help:      "Submitted deliveries not yet completed.",
		}, []string{"queue"}),
		drain: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "drain_duration_seconds",
			Help:      "Time Stop spent waiting for outstanding work.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"queue"}),
	}

	for _, c := range []prometheus.Collector{m.dispatched, m.submitted, m.failures, m.abandoned, m.inFlight, m.drain} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *PrometheusMetrics) ItemDispatched(queue string) {
	m.dispatched.WithLabelValues(queue).Inc()
}

func (m *PrometheusMetrics) Submitted(queue string, n int) {
	m.submitted.WithLabelValues(queue).Add(float64(n))
	m.inFlight.WithLabelValues(queue).Add(float64(n))
}

func (m *PrometheusMetrics) Completed(queue string) {
	m.inFlight.WithLabelValues(queue).Dec()
}

func (m *PrometheusMetrics) MemberFailed(queue, member string) {
	m.failures.WithLabelValues(queue, member).Inc()
}

func (m *PrometheusMetrics) Abandoned(queue string) {
	m.abandoned.WithLabelValues(queue).Inc()
}

func (m *PrometheusMetrics) Drained(queue string, d time.Duration) {
	m.drain.WithLabelValues(queue).Observe(d.Seconds())
}

var (
	_ Metrics = NoopMetrics{}
	_ Metrics = (*PrometheusMetrics)(nil)
)
