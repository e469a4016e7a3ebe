package schedule

import (
	"sync/atomic"
	"time"
)

const (
	stateArmed int32 = iota
	stateQueued
	stateRunning
	stateFinished
	stateCancelled
)

// Cancelable is the handle of one scheduled callback.
type Cancelable struct {
	s     *Scheduler
	fn    func()
	timer *time.Timer
	state atomic.Int32
	fired atomic.Bool
}

// Cancel stops the callback if it has not started yet and reports whether it
// did. A callback that is already running is not interrupted. Cancel never
// blocks and is safe to call more than once.
func (c *Cancelable) Cancel() bool {
	for {
		st := c.state.Load()
		if st != stateArmed && st != stateQueued {
			return false
		}
		if c.state.CompareAndSwap(st, stateCancelled) {
			if st == stateArmed {
				c.timer.Stop()
			}
			c.s.release()
			return true
		}
	}
}

// Done reports whether the delay has elapsed and the callback was handed to
// the worker. It says nothing about callbacks the callback scheduled itself.
func (c *Cancelable) Done() bool { return c.fired.Load() }

// Cancelled reports whether Cancel stopped the callback.
func (c *Cancelable) Cancelled() bool { return c.state.Load() == stateCancelled }

func (c *Cancelable) fire() {
	if !c.state.CompareAndSwap(stateArmed, stateQueued) {
		return
	}
	c.fired.Store(true)
	c.s.enqueue(c)
}

func (c *Cancelable) run(w *worker) {
	if !c.state.CompareAndSwap(stateQueued, stateRunning) {
		// cancelled while queued, already released
		return
	}
	defer c.s.release()

	s := c.s
	timer := s.metrics.CallbackDuration(s.name)
	defer func() {
		timer.ObserveDuration()
		c.state.Store(stateFinished)
		if r := recover(); r != nil {
			s.metrics.CallbackCompleted(s.name, false)
			s.callbackFailed(w, r)
			return
		}
		s.metrics.CallbackCompleted(s.name, true)
	}()

	c.fn()
}
