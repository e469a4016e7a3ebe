package schedule

import "github.com/codewandler/clstr-dispatch/core/metrics"

// SchedulerMetrics receives scheduler events. All methods must be safe for
// concurrent use.
type SchedulerMetrics interface {
	Pending(scheduler string, n int64)
	WorkerStarted(scheduler string)
	WorkerStopped(scheduler string)
	CallbackCompleted(scheduler string, success bool)
	CallbackDuration(scheduler string) metrics.Timer
}

type nopSchedulerMetrics struct{}

func (nopSchedulerMetrics) Pending(string, int64)          {}
func (nopSchedulerMetrics) WorkerStarted(string)           {}
func (nopSchedulerMetrics) WorkerStopped(string)           {}
func (nopSchedulerMetrics) CallbackCompleted(string, bool) {}
func (nopSchedulerMetrics) CallbackDuration(string) metrics.Timer {
	return metrics.NopTimer()
}

// NopSchedulerMetrics returns a SchedulerMetrics that discards everything.
func NopSchedulerMetrics() SchedulerMetrics { return nopSchedulerMetrics{} }
