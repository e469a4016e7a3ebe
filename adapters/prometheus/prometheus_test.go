package prometheus

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewandler/clstr-dispatch/core/app"
	"github.com/codewandler/clstr-dispatch/core/transport"
)

func gatherNames(t *testing.T, reg *prometheus.Registry) map[string]bool {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	return names
}

func TestNewTransportMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewTransportMetrics(reg)

	m.SenderCreated("queue")
	m.SenderCreated("queue")
	m.SenderCreateFailed("tcp")
	m.SenderClosed("queue")
	m.SendersOpen("queue", 1)

	tm := m.(*transportMetrics)
	assert.Equal(t, 2.0, testutil.ToFloat64(tm.sendersCreated.WithLabelValues("queue")))
	assert.Equal(t, 1.0, testutil.ToFloat64(tm.sendersFailed.WithLabelValues("tcp")))
	assert.Equal(t, 1.0, testutil.ToFloat64(tm.sendersOpen.WithLabelValues("queue")))

	names := gatherNames(t, reg)
	assert.True(t, names["clstr_transport_senders_created_total"])
	assert.True(t, names["clstr_transport_senders_closed_total"])
}

func TestNewSchedulerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSchedulerMetrics(reg)

	m.Pending("default", 3)
	m.WorkerStarted("default")
	m.WorkerStarted("default")
	m.WorkerStopped("default")
	m.CallbackCompleted("default", true)
	m.CallbackCompleted("default", false)
	timer := m.CallbackDuration("default")
	require.NotNil(t, timer)
	timer.ObserveDuration()

	sm := m.(*schedulerMetrics)
	assert.Equal(t, 3.0, testutil.ToFloat64(sm.pending.WithLabelValues("default")))
	assert.Equal(t, 2.0, testutil.ToFloat64(sm.workersStarted.WithLabelValues("default")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sm.workersActive.WithLabelValues("default")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sm.callbacksTotal.WithLabelValues("default", "false")))

	names := gatherNames(t, reg)
	assert.True(t, names["clstr_scheduler_callback_duration_seconds"])
}

func TestNewPluginMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPluginMetrics(reg)

	m.Resolved("transport.Factory", true)
	m.Resolved("transport.Factory", false)
	m.Ambiguous("routing.Strategy")
	m.Overridden("routing.Strategy")

	pm := m.(*pluginMetrics)
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.resolved.WithLabelValues("transport.Factory", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.ambiguous.WithLabelValues("routing.Strategy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.overridden.WithLabelValues("routing.Strategy")))
}

func TestNewDispatchMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDispatchMetrics(reg)

	timer := m.DispatchDuration()
	require.NotNil(t, timer)
	timer.ObserveDuration()
	m.DispatchCompleted(true)
	m.DispatchCompleted(false)
	m.DispatchError("transport")
	m.Retried()
	m.Retried()

	dm := m.(*dispatchMetrics)
	assert.Equal(t, 1.0, testutil.ToFloat64(dm.dispatchesTotal.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(dm.dispatchErrors.WithLabelValues("transport")))
	assert.Equal(t, 2.0, testutil.ToFloat64(dm.retriesTotal))

	names := gatherNames(t, reg)
	assert.True(t, names["clstr_dispatch_duration_seconds"])
	assert.True(t, names["clstr_dispatch_total"])
}

func TestBreakerStateChanged(t *testing.T) {
	reg := prometheus.NewRegistry()
	dm := newDispatchMetrics(reg)

	dm.BreakerStateChanged("node-1", "open")
	assert.Equal(t, 1.0, testutil.ToFloat64(dm.breakerState.WithLabelValues("node-1", "open")))
	assert.Equal(t, 0.0, testutil.ToFloat64(dm.breakerState.WithLabelValues("node-1", "closed")))

	dm.BreakerStateChanged("node-1", "half-open")
	assert.Equal(t, 0.0, testutil.ToFloat64(dm.breakerState.WithLabelValues("node-1", "open")))
	assert.Equal(t, 1.0, testutil.ToFloat64(dm.breakerState.WithLabelValues("node-1", "half-open")))
}

func TestNewMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) })
}

func TestMetrics_WithApp(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	cfg := app.DefaultConfig()
	cfg.Node.ID = "node-1"
	cfg.Node.Nodes = []string{"node-1", "node-2"}
	cfg.Node.NumShards = 16

	a, err := app.New(cfg, app.WithMetrics(m))
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	for i := 0; i < 10; i++ {
		require.NoError(t, a.Dispatch(context.Background(), i, "hello"))
	}

	assert.Equal(t, 10.0, testutil.ToFloat64(m.dispatchesTotal.WithLabelValues("true")))
	open := testutil.ToFloat64(m.sendersOpen.WithLabelValues(string(transport.TypeQueue)))
	assert.GreaterOrEqual(t, open, 1.0)
	assert.LessOrEqual(t, open, 2.0)
}
