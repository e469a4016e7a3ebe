package tcp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/codewandler/clstr-dispatch/core/transport"
	"github.com/codewandler/clstr-dispatch/internal/codec"
)

type ServerConfig struct {
	// Addr to listen on, e.g. ":7400" or "127.0.0.1:0".
	Addr  string
	Log   *slog.Logger
	Codec codec.Codec
}

// Server receives envelopes and hands them to a handler, one connection per
// sending node.
type Server struct {
	ln    net.Listener
	h     transport.Handler
	codec codec.Codec
	log   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
}

// Listen starts a server. It stops when ctx is done or Close is called.
func Listen(ctx context.Context, cfg ServerConfig, h transport.Handler) (*Server, error) {
	if h == nil {
		return nil, fmt.Errorf("tcp: handler is required")
	}
	c := cfg.Codec
	if c == nil {
		c = codec.Default
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("tcp: listen %s: %w", cfg.Addr, err)
	}

	sctx, cancel := context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(sctx)
	s := &Server{
		ln:     ln,
		h:      h,
		codec:  c,
		log:    log.With(slog.String("transport", TypeTCP), slog.String("addr", ln.Addr().String())),
		ctx:    gctx,
		cancel: cancel,
		group:  group,
		conns:  make(map[net.Conn]struct{}),
	}

	group.Go(s.accept)
	context.AfterFunc(gctx, func() { _ = s.shutdown() })
	s.log.Debug("listening")
	return s, nil
}

// Addr is the address senders dial.
func (s *Server) Addr() Address { return Address{HostPort: s.ln.Addr().String()} }

func (s *Server) accept() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if s.isClosed() {
				return nil
			}
			return fmt.Errorf("tcp: accept: %w", err)
		}
		if !s.track(conn) {
			_ = conn.Close()
			return nil
		}
		s.group.Go(func() error {
			defer s.untrack(conn)
			s.serve(conn)
			return nil
		})
	}
}

func (s *Server) serve(conn net.Conn) {
	log := s.log.With(slog.String("remote", conn.RemoteAddr().String()))
	r := bufio.NewReader(conn)
	for {
		data, err := readFrame(r)
		if err != nil {
			if !errors.Is(err, io.EOF) && !s.isClosed() {
				log.Warn("failed to read frame", slog.Any("error", err))
			}
			return
		}

		var ack ackFrame
		var env transport.Envelope
		if err := s.codec.Unmarshal(data, &env); err != nil {
			ack.Err = "decode envelope: " + err.Error()
		} else if err := s.h(s.ctx, env); err != nil {
			ack.Err = err.Error()
		}

		reply, _ := s.codec.Marshal(ack)
		if err := writeFrame(conn, reply); err != nil {
			log.Warn("failed to write ack", slog.Any("error", err))
			return
		}
	}
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	_ = conn.Close()
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) shutdown() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()
	return s.ln.Close()
}

// Close stops accepting, closes all connections and waits for the
// connection goroutines.
func (s *Server) Close() error {
	err := s.shutdown()
	s.cancel()
	if werr := s.group.Wait(); werr != nil && err == nil {
		err = werr
	}
	s.log.Debug("stopped")
	return err
}
