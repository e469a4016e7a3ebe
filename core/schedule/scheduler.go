package schedule

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

type Option func(*Scheduler)

func WithLogger(log *slog.Logger) Option {
	return func(s *Scheduler) {
		if log != nil {
			s.log = log
		}
	}
}

func WithMetrics(m SchedulerMetrics) Option {
	return func(s *Scheduler) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithErrorHandler installs a function that receives a *CallbackError for
// every panicking callback. It runs on the worker goroutine.
func WithErrorHandler(fn func(error)) Option {
	return func(s *Scheduler) {
		s.onError = fn
	}
}

// Scheduler runs delayed callbacks on a lazily started worker goroutine.
// The zero value is not usable, use New.
type Scheduler struct {
	name    string
	log     *slog.Logger
	metrics SchedulerMetrics
	onError func(error)

	pending atomic.Int64
	workers atomic.Int32

	// mu guards the Dormant/Active transition and the worker queue.
	mu  sync.Mutex
	w   *worker
	seq uint64
}

type worker struct {
	id    string
	queue []*Cancelable
	wake  chan struct{}
	stop  bool
}

func New(name string, opts ...Option) *Scheduler {
	if name == "" {
		name = "scheduler"
	}
	s := &Scheduler{
		name:    name,
		log:     slog.Default(),
		metrics: NopSchedulerMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(slog.String("scheduler", name))
	return s
}

func (s *Scheduler) Name() string { return s.name }

// Schedule runs fn once after delay. It never blocks; the returned handle
// can cancel fn until it starts.
func (s *Scheduler) Schedule(fn func(), delay time.Duration) *Cancelable {
	if fn == nil {
		fn = func() {}
	}
	c := &Cancelable{s: s, fn: fn}

	s.mu.Lock()
	n := s.pending.Add(1)
	if s.w == nil {
		s.startLocked()
	}
	s.mu.Unlock()
	s.metrics.Pending(s.name, n)

	c.timer = time.AfterFunc(delay, c.fire)
	return c
}

// Pending returns the number of callbacks that have neither completed nor
// been cancelled.
func (s *Scheduler) Pending() int64 { return s.pending.Load() }

// Active reports whether a worker goroutine exists, including one that is
// still shutting down after the scheduler became Dormant.
func (s *Scheduler) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w != nil || s.workers.Load() > 0
}

// Workers returns the number of live worker goroutines. It is never more
// than one while callbacks are pending.
func (s *Scheduler) Workers() int { return int(s.workers.Load()) }

func (s *Scheduler) startLocked() {
	s.seq++
	w := &worker{
		id:   fmt.Sprintf("%s-%d", s.name, s.seq),
		wake: make(chan struct{}, 1),
	}
	s.w = w
	s.workers.Add(1)
	s.metrics.WorkerStarted(s.name)
	s.log.Debug("worker started", slog.String("worker", w.id))
	go s.loop(w)
}

func (s *Scheduler) loop(w *worker) {
	defer func() {
		s.metrics.WorkerStopped(s.name)
		s.log.Debug("worker stopped", slog.String("worker", w.id))
		s.workers.Add(-1)
	}()

	for range w.wake {
		for {
			s.mu.Lock()
			if len(w.queue) == 0 {
				stop := w.stop
				s.mu.Unlock()
				if stop {
					return
				}
				break
			}
			c := w.queue[0]
			w.queue[0] = nil
			w.queue = w.queue[1:]
			s.mu.Unlock()

			c.run(w)
		}
	}
}

// enqueue hands a fired callback to the current worker. While the callback
// is still queued it counts as pending, so the worker exists.
func (s *Scheduler) enqueue(c *Cancelable) {
	s.mu.Lock()
	if c.state.Load() != stateQueued {
		s.mu.Unlock()
		return
	}
	w := s.w
	w.queue = append(w.queue, c)
	s.mu.Unlock()
	signal(w)
}

// release accounts for one finished or cancelled callback and stops the
// worker when nothing is pending anymore.
func (s *Scheduler) release() {
	s.mu.Lock()
	n := s.pending.Add(-1)
	var stopped *worker
	if n == 0 && s.w != nil {
		stopped = s.w
		stopped.stop = true
		s.w = nil
	}
	s.mu.Unlock()

	s.metrics.Pending(s.name, n)
	if stopped != nil {
		signal(stopped)
	}
}

func (s *Scheduler) callbackFailed(w *worker, r any) {
	err := &CallbackError{Scheduler: s.name, Worker: w.id, Recovered: r}
	s.log.Error("scheduled callback panicked",
		slog.String("worker", w.id),
		slog.Any("recovered", r),
	)
	if s.onError != nil {
		s.onError(err)
	}
}

func signal(w *worker) {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}
