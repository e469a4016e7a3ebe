package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sony/gobreaker"

	"github.com/codewandler/clstr-dispatch/core/reflector"
	"github.com/codewandler/clstr-dispatch/core/routing"
	"github.com/codewandler/clstr-dispatch/core/schedule"
	"github.com/codewandler/clstr-dispatch/core/transport"
)

// invalidator is implemented by factories that can drop a broken sender,
// such as *transport.Cache.
type invalidator interface {
	Invalidate(transport.Sender)
}

type Dispatcher struct {
	strategy routing.Strategy
	factory  transport.Factory
	log      *slog.Logger
	metrics  DispatchMetrics
	sched    *schedule.Scheduler
	retry    Retry
	breaker  Breaker

	breakersMu sync.Mutex
	breakers   map[string]*gobreaker.CircuitBreaker

	mu      sync.Mutex
	closed  bool
	retries map[*asyncDispatch]struct{}
}

func New(opts Options) (*Dispatcher, error) {
	if opts.Strategy == nil {
		return nil, fmt.Errorf("dispatch: Options.Strategy is required")
	}
	if opts.Factory == nil {
		return nil, fmt.Errorf("dispatch: Options.Factory is required")
	}
	opts.applyDefaults()

	return &Dispatcher{
		strategy: opts.Strategy,
		factory:  opts.Factory,
		log:      opts.Log.With(slog.String("component", "dispatcher")),
		metrics:  opts.Metrics,
		sched:    opts.Scheduler,
		retry:    opts.Retry,
		breaker:  opts.Breaker,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		retries:  make(map[*asyncDispatch]struct{}),
	}, nil
}

// Dispatch routes msg by key and sends it to the owning node. It returns the
// routing or transport error unchanged, so callers can use errors.Is with
// routing.ErrRoutingUnavailable and transport.ErrTransportUnavailable.
func (d *Dispatcher) Dispatch(ctx context.Context, key any, msg any, opts ...transport.EnvelopeOption) error {
	timer := d.metrics.DispatchDuration()
	defer timer.ObserveDuration()

	err := d.dispatch(ctx, key, msg, opts)
	d.metrics.DispatchCompleted(err == nil)
	if err != nil {
		d.metrics.DispatchError(ErrorKind(err))
	}
	return err
}

func (d *Dispatcher) dispatch(ctx context.Context, key any, msg any, opts []transport.EnvelopeOption) error {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return ErrDispatcherClosed
	}

	dest, err := d.strategy.Resolve(key, msg)
	if err != nil {
		return err
	}
	if dest.Node == nil {
		return &routing.RoutingError{Key: key, Shard: dest.Shard, Reason: "strategy returned no node"}
	}

	env := transport.Envelope{
		Shard:   dest.Shard,
		Key:     routing.KeyString(key),
		Payload: msg,
	}
	if msg != nil {
		env.Type = reflector.TypeInfoOf(msg).Name
	}
	for _, opt := range opts {
		opt(&env)
	}

	if d.breaker.Disabled {
		return d.send(ctx, dest.Node, env)
	}

	_, err = d.breakerFor(dest.Node).Execute(func() (any, error) {
		return nil, d.send(ctx, dest.Node, env)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return transport.SendError(dest.Node, fmt.Errorf("%w: %w", ErrCircuitOpen, err))
	}
	return err
}

func (d *Dispatcher) send(ctx context.Context, node transport.NodeAddress, env transport.Envelope) error {
	s, err := d.factory.Sender(ctx, node)
	if err != nil {
		return transport.SendError(node, err)
	}
	err = s.Send(ctx, env)
	if err == nil {
		return nil
	}
	if !transportFailure(err) {
		// rejected by the node or not encodable, the sender is fine
		return err
	}
	if inv, ok := d.factory.(invalidator); ok {
		inv.Invalidate(s)
	}
	d.log.Debug("send failed",
		slog.String("node", node.String()),
		slog.Int("shard", env.Shard),
		slog.Any("error", err),
	)
	return err
}

func (d *Dispatcher) breakerFor(node transport.NodeAddress) *gobreaker.CircuitBreaker {
	name := node.Transport() + "://" + node.String()

	d.breakersMu.Lock()
	defer d.breakersMu.Unlock()
	if cb, ok := d.breakers[name]; ok {
		return cb
	}

	threshold := d.breaker.FailureThreshold
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     d.breaker.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// only failures to reach the node count, a caller giving up
			// says nothing about it
			return !transportFailure(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			d.metrics.BreakerStateChanged(name, to.String())
			d.log.Warn("circuit breaker state changed",
				slog.String("node", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	d.breakers[name] = cb
	return cb
}

// Close stops pending retries, failing them with ErrDispatcherClosed, and
// closes the sender factory. Later dispatches fail with ErrDispatcherClosed.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	pending := make([]*asyncDispatch, 0, len(d.retries))
	for r := range d.retries {
		pending = append(pending, r)
	}
	clear(d.retries)
	d.mu.Unlock()

	for _, r := range pending {
		if r.handle.Cancel() {
			r.finish(ErrDispatcherClosed)
		}
	}
	if len(pending) > 0 {
		d.log.Info("cancelled pending retries", slog.Int("count", len(pending)))
	}

	return d.factory.Close()
}
