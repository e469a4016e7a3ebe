package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

const TypeQueue = "queue"

// QueueAddress names an in-process queue registered in a QueueHub.
type QueueAddress struct {
	Name string
}

func (a QueueAddress) Transport() string { return TypeQueue }
func (a QueueAddress) String() string    { return a.Name }

// QueueHub is the in-process directory of queues. Receiving nodes Listen on a
// name, senders dial the resulting QueueAddress.
type QueueHub struct {
	mu     sync.RWMutex
	queues map[string]chan Envelope
}

func NewQueueHub() *QueueHub {
	return &QueueHub{queues: make(map[string]chan Envelope)}
}

// Listen registers a queue with the given buffer size and returns its address
// and receive side.
func (h *QueueHub) Listen(name string, size int) (QueueAddress, <-chan Envelope, error) {
	if name == "" {
		return QueueAddress{}, nil, fmt.Errorf("transport: queue name is required")
	}
	if size <= 0 {
		size = 1024
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.queues[name]; exists {
		return QueueAddress{}, nil, fmt.Errorf("transport: queue %q already registered", name)
	}
	ch := make(chan Envelope, size)
	h.queues[name] = ch
	return QueueAddress{Name: name}, ch, nil
}

// Remove unregisters a queue. Senders that already hold it keep working.
func (h *QueueHub) Remove(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.queues, name)
}

func (h *QueueHub) lookup(name string) (chan Envelope, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ch, ok := h.queues[name]
	return ch, ok
}

type QueueOptions struct {
	Hub *QueueHub
	// Blocking makes Send wait for room in a full queue. Otherwise a full
	// queue fails the send with ErrQueueFull.
	Blocking bool
	Log      *slog.Logger
	Metrics  TransportMetrics
}

// NewQueueFactory returns a sender factory for QueueAddress destinations.
func NewQueueFactory(opts QueueOptions) (*Cache, error) {
	if opts.Hub == nil {
		return nil, fmt.Errorf("transport: QueueOptions.Hub is required")
	}
	hub, blocking := opts.Hub, opts.Blocking
	return NewCache(CacheOptions{
		Transport: TypeQueue,
		Log:       opts.Log,
		Metrics:   opts.Metrics,
		Dial: func(_ context.Context, addr NodeAddress) (Sender, error) {
			qa, ok := addr.(QueueAddress)
			if !ok {
				return nil, fmt.Errorf("%w: %T", ErrAddressMismatch, addr)
			}
			ch, ok := hub.lookup(qa.Name)
			if !ok {
				return nil, fmt.Errorf("%w: queue %q", ErrUnknownAddress, qa.Name)
			}
			return &queueSender{addr: qa, ch: ch, blocking: blocking}, nil
		},
	})
}

type queueSender struct {
	addr     QueueAddress
	ch       chan<- Envelope
	blocking bool
	guard    Guard
}

func (s *queueSender) Addr() NodeAddress { return s.addr }

func (s *queueSender) Send(ctx context.Context, env Envelope) error {
	if !s.guard.Enter() {
		return SendError(s.addr, ErrSenderClosed)
	}
	defer s.guard.Leave()

	if !s.blocking {
		select {
		case s.ch <- env:
			return nil
		default:
			return SendError(s.addr, ErrQueueFull)
		}
	}

	select {
	case s.ch <- env:
		return nil
	case <-ctx.Done():
		return SendError(s.addr, ctx.Err())
	case <-s.guard.Done():
		return SendError(s.addr, ErrSenderClosed)
	}
}

func (s *queueSender) Close() error {
	s.guard.Close()
	return nil
}
