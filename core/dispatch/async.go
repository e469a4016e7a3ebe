package dispatch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/codewandler/clstr-dispatch/core/schedule"
	"github.com/codewandler/clstr-dispatch/core/transport"
)

type asyncDispatch struct {
	ctx     context.Context
	key     any
	msg     any
	opts    []transport.EnvelopeOption
	attempt int

	handle *schedule.Cancelable
	once   sync.Once
	done   func(error)
}

func (r *asyncDispatch) finish(err error) {
	r.once.Do(func() {
		if r.done != nil {
			r.done(err)
		}
	})
}

// DispatchAsync dispatches msg and retries recoverable failures with
// exponential backoff. The first attempt runs on the calling goroutine,
// retries on the dispatcher's scheduler. done is called exactly once with
// the final result.
func (d *Dispatcher) DispatchAsync(ctx context.Context, key any, msg any, done func(error), opts ...transport.EnvelopeOption) {
	if ctx == nil {
		ctx = context.Background()
	}
	d.attempt(&asyncDispatch{ctx: ctx, key: key, msg: msg, opts: opts, done: done})
}

func (d *Dispatcher) attempt(r *asyncDispatch) {
	if err := r.ctx.Err(); err != nil {
		r.finish(err)
		return
	}

	err := d.Dispatch(r.ctx, r.key, r.msg, r.opts...)
	if err == nil || !Retryable(err) || r.attempt+1 >= d.retry.Attempts {
		r.finish(err)
		return
	}

	delay := d.retry.Delay(r.attempt)
	r.attempt++

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		r.finish(ErrDispatcherClosed)
		return
	}
	r.handle = d.sched.Schedule(func() { d.retryNow(r) }, delay)
	d.retries[r] = struct{}{}
	d.mu.Unlock()

	d.metrics.Retried()
	d.log.Debug("dispatch failed, retrying",
		slog.Any("key", r.key),
		slog.Int("attempt", r.attempt),
		slog.Duration("retry_after", delay),
		slog.Any("error", err),
	)
}

func (d *Dispatcher) retryNow(r *asyncDispatch) {
	d.mu.Lock()
	delete(d.retries, r)
	closed := d.closed
	d.mu.Unlock()

	if closed {
		r.finish(ErrDispatcherClosed)
		return
	}
	d.attempt(r)
}
