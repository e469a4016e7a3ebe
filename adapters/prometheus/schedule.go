package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/clstr-dispatch/core/metrics"
	"github.com/codewandler/clstr-dispatch/core/schedule"
)

// schedulerMetrics implements schedule.SchedulerMetrics using Prometheus.
type schedulerMetrics struct {
	pending          *prometheus.GaugeVec
	workersStarted   *prometheus.CounterVec
	workersActive    *prometheus.GaugeVec
	callbacksTotal   *prometheus.CounterVec
	callbackDuration *prometheus.HistogramVec
}

// NewSchedulerMetrics creates a Prometheus implementation of SchedulerMetrics.
func NewSchedulerMetrics(reg prometheus.Registerer) schedule.SchedulerMetrics {
	return newSchedulerMetrics(reg)
}

func newSchedulerMetrics(reg prometheus.Registerer) *schedulerMetrics {
	m := &schedulerMetrics{
		pending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "clstr_scheduler_pending",
			Help: "Number of callbacks scheduled but not yet completed or cancelled",
		}, []string{"scheduler"}),

		workersStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clstr_scheduler_workers_started_total",
			Help: "Total number of worker goroutines started",
		}, []string{"scheduler"}),

		workersActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "clstr_scheduler_workers_active",
			Help: "Number of running worker goroutines",
		}, []string{"scheduler"}),

		callbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clstr_scheduler_callbacks_total",
			Help: "Total number of callbacks executed",
		}, []string{"scheduler", "success"}),

		callbackDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "clstr_scheduler_callback_duration_seconds",
			Help:    "Callback execution time in seconds",
			Buckets: defaultBuckets,
		}, []string{"scheduler"}),
	}

	reg.MustRegister(
		m.pending,
		m.workersStarted,
		m.workersActive,
		m.callbacksTotal,
		m.callbackDuration,
	)

	return m
}

func (m *schedulerMetrics) Pending(name string, n int64) {
	m.pending.WithLabelValues(name).Set(float64(n))
}

func (m *schedulerMetrics) WorkerStarted(name string) {
	m.workersStarted.WithLabelValues(name).Inc()
	m.workersActive.WithLabelValues(name).Inc()
}

func (m *schedulerMetrics) WorkerStopped(name string) {
	m.workersActive.WithLabelValues(name).Dec()
}

func (m *schedulerMetrics) CallbackCompleted(name string, success bool) {
	m.callbacksTotal.WithLabelValues(name, boolToStr(success)).Inc()
}

func (m *schedulerMetrics) CallbackDuration(name string) metrics.Timer {
	return newTimer(m.callbackDuration.WithLabelValues(name))
}

var _ schedule.SchedulerMetrics = (*schedulerMetrics)(nil)
