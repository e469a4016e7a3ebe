package dispatch

import (
	"log/slog"
	"time"

	"github.com/codewandler/clstr-dispatch/core/routing"
	"github.com/codewandler/clstr-dispatch/core/schedule"
	"github.com/codewandler/clstr-dispatch/core/transport"
)

// Retry configures DispatchAsync. Attempts counts the first try; 1 disables
// retries.
type Retry struct {
	Attempts  int           `yaml:"attempts"`
	BaseDelay time.Duration `yaml:"base_delay"`
	MaxDelay  time.Duration `yaml:"max_delay"`
}

// Delay returns the backoff before retry number attempt (0 based).
func (r Retry) Delay(attempt int) time.Duration {
	d := r.BaseDelay
	for i := 0; i < attempt && d < r.MaxDelay; i++ {
		d *= 2
	}
	if d > r.MaxDelay {
		d = r.MaxDelay
	}
	return d
}

func DefaultRetry() Retry {
	return Retry{Attempts: 3, BaseDelay: 50 * time.Millisecond, MaxDelay: 2 * time.Second}
}

// Breaker configures the per-node circuit breaker.
type Breaker struct {
	Disabled bool `yaml:"disabled"`
	// FailureThreshold is the number of consecutive failures that open the
	// breaker.
	FailureThreshold uint32 `yaml:"failure_threshold"`
	// ResetTimeout is how long an open breaker waits before letting one
	// probe through.
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

func DefaultBreaker() Breaker {
	return Breaker{FailureThreshold: 5, ResetTimeout: 10 * time.Second}
}

type Options struct {
	Strategy routing.Strategy
	Factory  transport.Factory
	Log      *slog.Logger
	Metrics  DispatchMetrics
	// Scheduler times DispatchAsync retries. A private one is created when
	// nil.
	Scheduler *schedule.Scheduler
	Retry     Retry
	Breaker   Breaker
}

func (o *Options) applyDefaults() {
	if o.Log == nil {
		o.Log = slog.Default()
	}
	if o.Metrics == nil {
		o.Metrics = NopDispatchMetrics()
	}
	if o.Scheduler == nil {
		o.Scheduler = schedule.New("dispatch-retry", schedule.WithLogger(o.Log))
	}

	def := DefaultRetry()
	if o.Retry.Attempts <= 0 {
		o.Retry.Attempts = def.Attempts
	}
	if o.Retry.BaseDelay <= 0 {
		o.Retry.BaseDelay = def.BaseDelay
	}
	if o.Retry.MaxDelay < o.Retry.BaseDelay {
		o.Retry.MaxDelay = max(def.MaxDelay, o.Retry.BaseDelay)
	}

	defB := DefaultBreaker()
	if o.Breaker.FailureThreshold == 0 {
		o.Breaker.FailureThreshold = defB.FailureThreshold
	}
	if o.Breaker.ResetTimeout <= 0 {
		o.Breaker.ResetTimeout = defB.ResetTimeout
	}
}
