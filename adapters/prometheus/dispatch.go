package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/clstr-dispatch/core/dispatch"
	"github.com/codewandler/clstr-dispatch/core/metrics"
)

// dispatchMetrics implements dispatch.DispatchMetrics using Prometheus.
type dispatchMetrics struct {
	dispatchDuration prometheus.Histogram
	dispatchesTotal  *prometheus.CounterVec
	dispatchErrors   *prometheus.CounterVec
	retriesTotal     prometheus.Counter
	breakerState     *prometheus.GaugeVec
}

// NewDispatchMetrics creates a Prometheus implementation of DispatchMetrics.
func NewDispatchMetrics(reg prometheus.Registerer) dispatch.DispatchMetrics {
	return newDispatchMetrics(reg)
}

func newDispatchMetrics(reg prometheus.Registerer) *dispatchMetrics {
	m := &dispatchMetrics{
		dispatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "clstr_dispatch_duration_seconds",
			Help:    "Dispatch latency in seconds, routing included",
			Buckets: defaultBuckets,
		}),

		dispatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clstr_dispatch_total",
			Help: "Total number of dispatches",
		}, []string{"success"}),

		dispatchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clstr_dispatch_errors_total",
			Help: "Total number of failed dispatches by kind",
		}, []string{"kind"}),

		retriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clstr_dispatch_retries_total",
			Help: "Total number of scheduled async retries",
		}),

		// 1 marks the current state of a node's breaker, 0 the others.
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "clstr_dispatch_breaker_state",
			Help: "Circuit breaker state per destination node",
		}, []string{"node", "state"}),
	}

	reg.MustRegister(
		m.dispatchDuration,
		m.dispatchesTotal,
		m.dispatchErrors,
		m.retriesTotal,
		m.breakerState,
	)

	return m
}

var breakerStates = []string{"closed", "half-open", "open"}

func (m *dispatchMetrics) DispatchDuration() metrics.Timer {
	return newTimer(m.dispatchDuration)
}

func (m *dispatchMetrics) DispatchCompleted(success bool) {
	m.dispatchesTotal.WithLabelValues(boolToStr(success)).Inc()
}

func (m *dispatchMetrics) DispatchError(kind string) {
	m.dispatchErrors.WithLabelValues(kind).Inc()
}

func (m *dispatchMetrics) Retried() {
	m.retriesTotal.Inc()
}

func (m *dispatchMetrics) BreakerStateChanged(node string, state string) {
	for _, s := range breakerStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.breakerState.WithLabelValues(node, s).Set(v)
	}
}

var _ dispatch.DispatchMetrics = (*dispatchMetrics)(nil)
