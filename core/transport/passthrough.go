package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

const TypePassthrough = "passthrough"

// Handler receives envelopes delivered by the passthrough transport.
type Handler func(ctx context.Context, env Envelope) error

type PassthroughAddress struct {
	Name string
}

func (a PassthroughAddress) Transport() string { return TypePassthrough }
func (a PassthroughAddress) String() string    { return a.Name }

// PassthroughHub maps names to handlers that are invoked synchronously on
// the sending goroutine.
type PassthroughHub struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewPassthroughHub() *PassthroughHub {
	return &PassthroughHub{handlers: make(map[string]Handler)}
}

// Handle registers h under name, replacing any previous handler.
func (h *PassthroughHub) Handle(name string, handler Handler) PassthroughAddress {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[name] = handler
	return PassthroughAddress{Name: name}
}

func (h *PassthroughHub) lookup(name string) (Handler, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	fn, ok := h.handlers[name]
	return fn, ok
}

// NewPassthroughFactory returns a sender factory for PassthroughAddress
// destinations.
func NewPassthroughFactory(hub *PassthroughHub, log *slog.Logger, metrics TransportMetrics) (*Cache, error) {
	if hub == nil {
		return nil, fmt.Errorf("transport: passthrough hub is required")
	}
	return NewCache(CacheOptions{
		Transport: TypePassthrough,
		Log:       log,
		Metrics:   metrics,
		Dial: func(_ context.Context, addr NodeAddress) (Sender, error) {
			pa, ok := addr.(PassthroughAddress)
			if !ok {
				return nil, fmt.Errorf("%w: %T", ErrAddressMismatch, addr)
			}
			h, ok := hub.lookup(pa.Name)
			if !ok {
				return nil, fmt.Errorf("%w: handler %q", ErrUnknownAddress, pa.Name)
			}
			return &passthroughSender{addr: pa, h: h}, nil
		},
	})
}

type passthroughSender struct {
	addr  PassthroughAddress
	h     Handler
	guard Guard
}

func (s *passthroughSender) Addr() NodeAddress { return s.addr }

func (s *passthroughSender) Send(ctx context.Context, env Envelope) error {
	if !s.guard.Enter() {
		return SendError(s.addr, ErrSenderClosed)
	}
	defer s.guard.Leave()
	return Reject(s.addr, s.h(ctx, env))
}

func (s *passthroughSender) Close() error {
	s.guard.Close()
	return nil
}
