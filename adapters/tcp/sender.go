package tcp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/codewandler/clstr-dispatch/core/transport"
	"github.com/codewandler/clstr-dispatch/internal/codec"
)

const TypeTCP = "tcp"

// Address is a node's host:port.
type Address struct {
	HostPort string
}

func (a Address) Transport() string { return TypeTCP }
func (a Address) String() string    { return a.HostPort }

type FactoryConfig struct {
	Log         *slog.Logger
	Metrics     transport.TransportMetrics
	DialTimeout time.Duration
	// SendTimeout bounds a send when the context has no deadline.
	SendTimeout time.Duration
	Codec       codec.Codec
}

// NewFactory returns a sender factory for Address destinations.
func NewFactory(cfg FactoryConfig) (*transport.Cache, error) {
	c := cfg.Codec
	if c == nil {
		c = codec.Default
	}
	dialer := &net.Dialer{Timeout: cfg.DialTimeout, KeepAlive: 30 * time.Second}
	if dialer.Timeout <= 0 {
		dialer.Timeout = 5 * time.Second
	}
	sendTimeout := cfg.SendTimeout
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}

	return transport.NewCache(transport.CacheOptions{
		Transport: TypeTCP,
		Log:       cfg.Log,
		Metrics:   cfg.Metrics,
		Dial: func(ctx context.Context, addr transport.NodeAddress) (transport.Sender, error) {
			ta, ok := addr.(Address)
			if !ok {
				return nil, fmt.Errorf("%w: %T", transport.ErrAddressMismatch, addr)
			}
			conn, err := dialer.DialContext(ctx, "tcp", ta.HostPort)
			if err != nil {
				return nil, err
			}
			return &sender{
				addr:        ta,
				conn:        conn,
				r:           bufio.NewReader(conn),
				codec:       c,
				sendTimeout: sendTimeout,
			}, nil
		},
	})
}

type sender struct {
	addr        Address
	codec       codec.Codec
	sendTimeout time.Duration
	guard       transport.Guard

	// mu keeps one frame and its ack on the wire at a time.
	mu   sync.Mutex
	conn net.Conn
	r    *bufio.Reader
	// broken is set once an I/O error left a frame or its ack half done.
	broken bool
}

func (s *sender) Addr() transport.NodeAddress { return s.addr }

func (s *sender) Send(ctx context.Context, env transport.Envelope) error {
	if !s.guard.Enter() {
		return transport.SendError(s.addr, transport.ErrSenderClosed)
	}
	defer s.guard.Leave()

	data, err := s.codec.Marshal(env)
	if err != nil {
		return fmt.Errorf("tcp: encode envelope: %w", err)
	}
	if len(data) > MaxFrameSize {
		return fmt.Errorf("tcp: encode envelope: %w: %d bytes", ErrFrameTooLarge, len(data))
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(s.sendTimeout)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken {
		return transport.SendError(s.addr, transport.ErrSenderClosed)
	}

	stop := context.AfterFunc(ctx, func() {
		// unblock the read or write below
		_ = s.conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := s.conn.SetDeadline(deadline); err != nil {
		return s.fail(ctx, err)
	}
	if err := writeFrame(s.conn, data); err != nil {
		return s.fail(ctx, err)
	}
	reply, err := readFrame(s.r)
	if err != nil {
		return s.fail(ctx, err)
	}

	var ack ackFrame
	if err := s.codec.Unmarshal(reply, &ack); err != nil {
		return transport.SendError(s.addr, fmt.Errorf("decode ack: %w", err))
	}
	if ack.Err != "" {
		return &RemoteError{Addr: s.addr.HostPort, Message: ack.Err}
	}
	return nil
}

// fail marks the sender broken. A late ack of this frame must never be read
// as the ack of a later one, so the connection is closed. Callers hold mu.
func (s *sender) fail(ctx context.Context, err error) error {
	s.broken = true
	_ = s.conn.Close()
	return transport.SendError(s.addr, s.cause(ctx, err))
}

// cause prefers the context error over the deadline error it provoked.
func (s *sender) cause(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if dl, ok := ctx.Deadline(); ok && errors.Is(err, os.ErrDeadlineExceeded) && !time.Now().Before(dl) {
		return context.DeadlineExceeded
	}
	return err
}

func (s *sender) Close() error {
	if !s.guard.Close() {
		return nil
	}
	if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// RemoteError is the error the receiving node's handler returned.
type RemoteError struct {
	Addr    string
	Message string
}

func (e *RemoteError) Is(target error) bool { return target == transport.ErrRejected }

func (e *RemoteError) Error() string {
	return fmt.Sprintf("tcp: %s rejected envelope: %s", e.Addr, e.Message)
}
