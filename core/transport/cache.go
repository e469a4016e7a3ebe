package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/codewandler/clstr-dispatch/core/sf"
)

type CacheOptions struct {
	// Transport names the transport in logs and metrics.
	Transport string
	Dial      Dialer
	Log       *slog.Logger
	Metrics   TransportMetrics
}

// Cache is the Factory shared by all transports. It keeps one Sender per
// NodeAddress and collapses concurrent first-time requests for an address
// into a single dial.
//
// Close is not terminal: it closes and forgets every cached sender, and later
// requests dial fresh senders. A dial that is still running when Close starts
// never makes it into the cache, its sender is closed and the callers already
// waiting for it get ErrFactoryClosed. Callers arriving after Close start a
// new dial.
type Cache struct {
	transport string
	dial      Dialer
	log       *slog.Logger
	metrics   TransportMetrics

	mu      sync.Mutex
	senders map[NodeAddress]Sender
	gen     uint64
	// dialing holds the flight keys of dials started in the current gen.
	dialing map[string]struct{}

	flights *sf.Singleflight[Sender]
}

func NewCache(opts CacheOptions) (*Cache, error) {
	if opts.Dial == nil {
		return nil, fmt.Errorf("transport: CacheOptions.Dial is required")
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NopTransportMetrics()
	}
	name := opts.Transport
	if name == "" {
		name = "unknown"
	}
	return &Cache{
		transport: name,
		dial:      opts.Dial,
		log:       log.With(slog.String("transport", name)),
		metrics:   metrics,
		senders:   make(map[NodeAddress]Sender),
		dialing:   make(map[string]struct{}),
		flights:   sf.New[Sender](),
	}, nil
}

// Sender returns the cached sender for addr, dialing one if there is none.
// When several goroutines ask for the same new address, only one dial runs
// (with the context of the goroutine that started it) and all of them get its
// result.
func (c *Cache) Sender(ctx context.Context, addr NodeAddress) (Sender, error) {
	if addr == nil {
		return nil, dialError(nil, ErrUnknownAddress)
	}

	c.mu.Lock()
	s, ok := c.senders[addr]
	c.mu.Unlock()
	if ok {
		return s, nil
	}

	s, _, err := c.flights.Do(addrKey(addr), func() (Sender, error) {
		return c.dialAndStore(ctx, addr)
	})
	return s, err
}

func (c *Cache) dialAndStore(ctx context.Context, addr NodeAddress) (Sender, error) {
	key := addrKey(addr)

	c.mu.Lock()
	if s, ok := c.senders[addr]; ok {
		c.mu.Unlock()
		return s, nil
	}
	gen := c.gen
	c.dialing[key] = struct{}{}
	c.mu.Unlock()

	s, err := c.dial(ctx, addr)
	if err == nil && s == nil {
		err = ErrUnknownAddress
	}

	c.mu.Lock()
	current := c.gen == gen
	if current {
		delete(c.dialing, key)
	}
	if err == nil && current {
		c.senders[addr] = s
	}
	open := len(c.senders)
	c.mu.Unlock()

	if err != nil {
		c.metrics.SenderCreateFailed(c.transport)
		c.log.Warn("failed to create sender",
			slog.String("addr", addr.String()),
			slog.Any("error", err),
		)
		return nil, dialError(addr, err)
	}
	if !current {
		if cerr := s.Close(); cerr != nil {
			c.log.Warn("failed to close sender dialed during close", slog.Any("error", cerr))
		}
		return nil, dialError(addr, ErrFactoryClosed)
	}

	c.metrics.SenderCreated(c.transport)
	c.metrics.SendersOpen(c.transport, open)
	c.log.Debug("created sender", slog.String("addr", addr.String()))
	return s, nil
}

// Invalidate drops s from the cache and closes it, provided it is still the
// sender cached for its address. The next request for that address dials a
// new sender. Other addresses are not affected.
func (c *Cache) Invalidate(s Sender) {
	if s == nil {
		return
	}
	addr := s.Addr()

	c.mu.Lock()
	cur, ok := c.senders[addr]
	if !ok || cur != s {
		c.mu.Unlock()
		return
	}
	delete(c.senders, addr)
	open := len(c.senders)
	c.mu.Unlock()

	c.metrics.SendersOpen(c.transport, open)
	if err := c.closeSender(s); err != nil {
		c.log.Warn("failed to close invalidated sender", slog.String("addr", addr.String()), slog.Any("error", err))
	}
}

// Len returns the number of cached senders.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.senders)
}

// Close closes every cached sender and empties the cache. The cache is
// swapped out under the lock and the senders are closed after releasing it, so
// an in-flight send that asks this cache for another sender, as a forwarding
// passthrough handler does, cannot block Close. Calling Close again is a
// no-op unless new senders were created in between.
func (c *Cache) Close() error {
	c.mu.Lock()
	c.gen++
	senders := c.senders
	c.senders = make(map[NodeAddress]Sender)
	for key := range c.dialing {
		c.flights.Forget(key)
	}
	clear(c.dialing)
	c.mu.Unlock()

	if len(senders) == 0 {
		return nil
	}
	c.metrics.SendersOpen(c.transport, c.Len())

	var errs []error
	for addr, s := range senders {
		if err := c.closeSender(s); err != nil {
			errs = append(errs, fmt.Errorf("close sender %s: %w", addr, err))
		}
	}
	c.log.Debug("closed senders", slog.Int("count", len(senders)))

	return errors.Join(errs...)
}

func (c *Cache) closeSender(s Sender) error {
	c.metrics.SenderClosed(c.transport)
	return s.Close()
}

var _ Factory = (*Cache)(nil)
