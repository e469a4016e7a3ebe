package nats

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	natsgo "github.com/nats-io/nats.go"

	"github.com/codewandler/clstr-dispatch/core/transport"
	"github.com/codewandler/clstr-dispatch/internal/codec"
)

type ListenConfig struct {
	Connect       Connector
	Log           *slog.Logger
	SubjectPrefix string
	Node          string
	Codec         codec.Codec
}

// Listener delivers the envelopes sent to one node to a handler.
type Listener struct {
	sub     *natsgo.Subscription
	release closeFunc
	log     *slog.Logger

	once sync.Once
	err  error
}

// Listen subscribes to the subject of cfg.Node and calls h for every
// envelope. Envelopes sent with acks get the handler's error as reply. The
// subscription ends when ctx is done or Close is called.
func Listen(ctx context.Context, cfg ListenConfig, h transport.Handler) (*Listener, error) {
	if cfg.Node == "" {
		return nil, fmt.Errorf("nats: ListenConfig.Node is required")
	}
	connect := cfg.Connect
	if connect == nil {
		connect = ConnectDefault()
	}
	c := cfg.Codec
	if c == nil {
		c = codec.Default
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("transport", TypeNATS), slog.String("node", cfg.Node))

	nc, release, err := connect()
	if err != nil {
		return nil, fmt.Errorf("nats: connect: %w", err)
	}

	subject := subjectFor(cfg.SubjectPrefix, cfg.Node)
	sub, err := nc.Subscribe(subject, func(msg *natsgo.Msg) {
		var env transport.Envelope
		var ack ackFrame
		if err := c.Unmarshal(msg.Data, &env); err != nil {
			log.Error("failed to decode envelope", slog.Any("error", err))
			ack.Err = "decode envelope: " + err.Error()
		} else if err := h(ctx, env); err != nil {
			ack.Err = err.Error()
		}

		if msg.Reply == "" {
			return
		}
		b, _ := c.Marshal(ack)
		if err := msg.Respond(b); err != nil {
			log.Error("failed to publish ack", slog.Any("error", err))
		}
	})
	if err != nil {
		release()
		return nil, fmt.Errorf("nats: subscribe %s: %w", subject, err)
	}
	if err := nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		release()
		return nil, fmt.Errorf("nats: flush subscription: %w", err)
	}

	l := &Listener{sub: sub, release: release, log: log}
	context.AfterFunc(ctx, func() { _ = l.Close() })
	log.Debug("listening", slog.String("subject", subject))
	return l, nil
}

// Close unsubscribes and releases the connection. It is safe to call more
// than once.
func (l *Listener) Close() error {
	l.once.Do(func() {
		l.err = l.sub.Unsubscribe()
		l.release()
		l.log.Debug("stopped listening")
	})
	return l.err
}
