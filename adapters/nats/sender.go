package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	natsgo "github.com/nats-io/nats.go"

	"github.com/codewandler/clstr-dispatch/core/transport"
	"github.com/codewandler/clstr-dispatch/internal/codec"
)

const TypeNATS = "nats"

const defaultPrefix = "clstr"

// Address is a node reachable on the NATS transport.
type Address struct {
	Node string
}

func (a Address) Transport() string { return TypeNATS }
func (a Address) String() string    { return a.Node }

func subjectFor(prefix, node string) string {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return prefix + ".node." + node
}

// ackFrame is the receiver's reply in ack mode.
type ackFrame struct {
	Err string `json:"err,omitempty"`
}

type FactoryConfig struct {
	Connect       Connector // Connect opens the connection senders use. If nil, ConnectDefault() is used.
	Log           *slog.Logger
	Metrics       transport.TransportMetrics
	SubjectPrefix string // SubjectPrefix for node subjects, e.g. "clstr" -> clstr.node.<id>
	// Ack makes Send wait for the receiving node to acknowledge the envelope.
	// Without it Send returns once the envelope is published.
	Ack bool
	// AckTimeout bounds the wait for an ack when the context has no deadline.
	AckTimeout time.Duration
	Codec      codec.Codec
}

// NewFactory returns a sender factory for Address destinations. Every sender
// leases a connection from cfg.Connect and releases it on Close; wrap the
// Connector with ReuseConnection to share one connection between senders.
func NewFactory(cfg FactoryConfig) (*transport.Cache, error) {
	connect := cfg.Connect
	if connect == nil {
		connect = ConnectDefault()
	}
	c := cfg.Codec
	if c == nil {
		c = codec.Default
	}
	ackTimeout := cfg.AckTimeout
	if ackTimeout <= 0 {
		ackTimeout = 5 * time.Second
	}

	return transport.NewCache(transport.CacheOptions{
		Transport: TypeNATS,
		Log:       cfg.Log,
		Metrics:   cfg.Metrics,
		Dial: func(_ context.Context, addr transport.NodeAddress) (transport.Sender, error) {
			na, ok := addr.(Address)
			if !ok {
				return nil, fmt.Errorf("%w: %T", transport.ErrAddressMismatch, addr)
			}
			if na.Node == "" {
				return nil, transport.ErrUnknownAddress
			}
			nc, release, err := connect()
			if err != nil {
				return nil, fmt.Errorf("nats: connect: %w", err)
			}
			return &sender{
				addr:       na,
				subject:    subjectFor(cfg.SubjectPrefix, na.Node),
				nc:         nc,
				release:    release,
				codec:      c,
				ack:        cfg.Ack,
				ackTimeout: ackTimeout,
			}, nil
		},
	})
}

type sender struct {
	addr       Address
	subject    string
	nc         *natsgo.Conn
	release    closeFunc
	codec      codec.Codec
	ack        bool
	ackTimeout time.Duration
	guard      transport.Guard
}

func (s *sender) Addr() transport.NodeAddress { return s.addr }

func (s *sender) Send(ctx context.Context, env transport.Envelope) error {
	if !s.guard.Enter() {
		return transport.SendError(s.addr, transport.ErrSenderClosed)
	}
	defer s.guard.Leave()

	data, err := s.codec.Marshal(env)
	if err != nil {
		// not a transport problem, the envelope cannot be encoded
		return fmt.Errorf("nats: encode envelope: %w", err)
	}
	msg := natsgo.NewMsg(s.subject)
	msg.Data = data
	msg.Header.Set("Content-Type", s.codec.ContentType())

	if !s.ack {
		if err := s.nc.PublishMsg(msg); err != nil {
			return transport.SendError(s.addr, fmt.Errorf("publish: %w", err))
		}
		return nil
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.ackTimeout)
		defer cancel()
	}
	reply, err := s.nc.RequestMsgWithContext(ctx, msg)
	if err != nil {
		if errors.Is(err, natsgo.ErrNoResponders) {
			err = fmt.Errorf("%w: no listener for %s", transport.ErrUnknownAddress, s.subject)
		}
		return transport.SendError(s.addr, err)
	}
	var ack ackFrame
	if err := s.codec.Unmarshal(reply.Data, &ack); err != nil {
		return transport.SendError(s.addr, fmt.Errorf("decode ack: %w", err))
	}
	if ack.Err != "" {
		return &RemoteError{Node: s.addr.Node, Message: ack.Err}
	}
	return nil
}

func (s *sender) Close() error {
	if s.guard.Close() {
		s.release()
	}
	return nil
}

// RemoteError is the error a receiving node's handler returned for an
// acknowledged send. The envelope was delivered, so it is not a transport
// failure.
type RemoteError struct {
	Node    string
	Message string
}

func (e *RemoteError) Is(target error) bool { return target == transport.ErrRejected }

func (e *RemoteError) Error() string {
	return fmt.Sprintf("nats: node %s rejected envelope: %s", e.Node, e.Message)
}
