package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/clstr-dispatch/core/plugin"
)

// pluginMetrics implements plugin.PluginMetrics using Prometheus.
type pluginMetrics struct {
	resolved   *prometheus.CounterVec
	ambiguous  *prometheus.CounterVec
	overridden *prometheus.CounterVec
}

// NewPluginMetrics creates a Prometheus implementation of PluginMetrics.
func NewPluginMetrics(reg prometheus.Registerer) plugin.PluginMetrics {
	return newPluginMetrics(reg)
}

func newPluginMetrics(reg prometheus.Registerer) *pluginMetrics {
	m := &pluginMetrics{
		resolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clstr_plugin_resolutions_total",
			Help: "Total number of plugin discovery attempts",
		}, []string{"capability", "success"}),

		ambiguous: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clstr_plugin_ambiguous_total",
			Help: "Total number of discoveries with more than one candidate",
		}, []string{"capability"}),

		overridden: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clstr_plugin_overrides_total",
			Help: "Total number of registrations that replaced an instance",
		}, []string{"capability"}),
	}

	reg.MustRegister(m.resolved, m.ambiguous, m.overridden)

	return m
}

func (m *pluginMetrics) Resolved(capability string, success bool) {
	m.resolved.WithLabelValues(capability, boolToStr(success)).Inc()
}

func (m *pluginMetrics) Ambiguous(capability string) {
	m.ambiguous.WithLabelValues(capability).Inc()
}

func (m *pluginMetrics) Overridden(capability string) {
	m.overridden.WithLabelValues(capability).Inc()
}

var _ plugin.PluginMetrics = (*pluginMetrics)(nil)
