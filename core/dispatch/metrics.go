package dispatch

import "github.com/codewandler/clstr-dispatch/core/metrics"

// DispatchMetrics receives dispatcher events.
type DispatchMetrics interface {
	DispatchDuration() metrics.Timer
	DispatchCompleted(success bool)
	// DispatchError counts a failed dispatch by ErrorKind.
	DispatchError(kind string)
	Retried()
	BreakerStateChanged(node string, state string)
}

type nopDispatchMetrics struct{}

func (nopDispatchMetrics) DispatchDuration() metrics.Timer    { return metrics.NopTimer() }
func (nopDispatchMetrics) DispatchCompleted(bool)             {}
func (nopDispatchMetrics) DispatchError(string)               {}
func (nopDispatchMetrics) Retried()                           {}
func (nopDispatchMetrics) BreakerStateChanged(string, string) {}

func NopDispatchMetrics() DispatchMetrics { return nopDispatchMetrics{} }
