// Package prometheus provides Prometheus implementations of the metrics
// interfaces declared by the transport, schedule, plugin and dispatch packages.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/clstr-dispatch/core/app"
	"github.com/codewandler/clstr-dispatch/core/metrics"
)

// timer wraps a Prometheus histogram to implement the Timer interface.
type timer struct {
	h     prometheus.Observer
	start time.Time
}

func newTimer(h prometheus.Observer) metrics.Timer {
	return &timer{h: h, start: time.Now()}
}

func (t *timer) ObserveDuration() {
	t.h.Observe(time.Since(t.start).Seconds())
}

// Default histogram buckets for latency metrics (in seconds).
var defaultBuckets = []float64{
	.0001, .0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5,
}

func boolToStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// Metrics implements app.Metrics, so a single value can be handed to
// app.WithMetrics and reaches every component the App builds.
type Metrics struct {
	*transportMetrics
	*schedulerMetrics
	*pluginMetrics
	*dispatchMetrics
}

// NewMetrics registers the metrics of all components with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		transportMetrics: newTransportMetrics(reg),
		schedulerMetrics: newSchedulerMetrics(reg),
		pluginMetrics:    newPluginMetrics(reg),
		dispatchMetrics:  newDispatchMetrics(reg),
	}
}

var _ app.Metrics = (*Metrics)(nil)
