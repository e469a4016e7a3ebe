package app

import (
	"github.com/codewandler/clstr-dispatch/core/dispatch"
	"github.com/codewandler/clstr-dispatch/core/plugin"
	"github.com/codewandler/clstr-dispatch/core/schedule"
	"github.com/codewandler/clstr-dispatch/core/transport"
)

// Metrics bundles the metrics of every component an App wires up.
type Metrics interface {
	transport.TransportMetrics
	schedule.SchedulerMetrics
	plugin.PluginMetrics
	dispatch.DispatchMetrics
}

type nopMetrics struct {
	transport.TransportMetrics
	schedule.SchedulerMetrics
	plugin.PluginMetrics
	dispatch.DispatchMetrics
}

func NopMetrics() Metrics {
	return nopMetrics{
		TransportMetrics: transport.NopTransportMetrics(),
		SchedulerMetrics: schedule.NopSchedulerMetrics(),
		PluginMetrics:    plugin.NopPluginMetrics(),
		DispatchMetrics:  dispatch.NopDispatchMetrics(),
	}
}
