package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yilinwei/hazelcast/core/invocation"
	"github.com/yilinwei/hazelcast/core/metrics"
)

// invocationMetrics implements invocation.Metrics using Prometheus.
type invocationMetrics struct {
	duration       *prometheus.HistogramVec
	attemptsTotal  *prometheus.CounterVec
	retriesTotal   *prometheus.CounterVec
	overloadsTotal *prometheus.CounterVec
	completedTotal *prometheus.CounterVec
}

// NewInvocationMetrics creates a new Prometheus implementation of
// invocation.Metrics.
func NewInvocationMetrics(reg prometheus.Registerer) invocation.Metrics {
	m := &invocationMetrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hzc_invocation_duration_seconds",
			Help:    "Invocation latency end to end, across all attempts",
			Buckets: defaultBuckets,
		}, []string{"message_type"}),

		attemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hzc_invocation_attempts_total",
			Help: "Total number of invocation attempts, including retries",
		}, []string{"message_type"}),

		retriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hzc_invocation_retries_total",
			Help: "Total number of scheduled retries",
		}, []string{"message_type"}),

		overloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hzc_invocation_overload_rejections_total",
			Help: "Total number of invokes rejected by admission control",
		}, []string{"message_type"}),

		completedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hzc_invocations_total",
			Help: "Total number of completed invocations",
		}, []string{"message_type", "success"}),
	}

	reg.MustRegister(
		m.duration,
		m.attemptsTotal,
		m.retriesTotal,
		m.overloadsTotal,
		m.completedTotal,
	)

	return m
}

func (m *invocationMetrics) AttemptStarted(msgType string) {
	m.attemptsTotal.WithLabelValues(msgType).Inc()
}

func (m *invocationMetrics) RetryScheduled(msgType string) {
	m.retriesTotal.WithLabelValues(msgType).Inc()
}

func (m *invocationMetrics) OverloadRejected(msgType string) {
	m.overloadsTotal.WithLabelValues(msgType).Inc()
}

func (m *invocationMetrics) Completed(msgType string, success bool) {
	m.completedTotal.WithLabelValues(msgType, boolToStr(success)).Inc()
}

func (m *invocationMetrics) Duration(msgType string) metrics.Timer {
	return newTimer(m.duration.WithLabelValues(msgType))
}

var _ invocation.Metrics = (*invocationMetrics)(nil)
