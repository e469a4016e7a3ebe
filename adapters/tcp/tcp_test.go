package tcp

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewandler/clstr-dispatch/core/app"
	"github.com/codewandler/clstr-dispatch/core/routing"
	"github.com/codewandler/clstr-dispatch/core/transport"
)

var discard = slog.New(slog.DiscardHandler)

type inbox struct {
	mu   sync.Mutex
	envs []transport.Envelope
}

func (i *inbox) handle(_ context.Context, env transport.Envelope) error {
	if env.Key == "reject" {
		return errors.New("rejected")
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.envs = append(i.envs, env)
	return nil
}

func (i *inbox) len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.envs)
}

func startServer(t *testing.T, h transport.Handler) *Server {
	t.Helper()
	s, err := Listen(t.Context(), ServerConfig{Addr: "127.0.0.1:0", Log: discard}, h)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, []byte("hello")))
	require.NoError(t, writeFrame(&buf, nil))

	got, err := readFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
	got, err = readFrame(&buf)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.ErrorIs(t, writeFrame(&buf, make([]byte, MaxFrameSize+1)), ErrFrameTooLarge)

	buf.Reset()
	buf.Write([]byte{0xff, 0xff, 0xff, 0xff})
	_, err = readFrame(&buf)
	require.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestSendAndReceive(t *testing.T) {
	in := &inbox{}
	srv := startServer(t, in.handle)

	f, err := NewFactory(FactoryConfig{Log: discard})
	require.NoError(t, err)
	defer f.Close()

	s, err := f.Sender(t.Context(), srv.Addr())
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.NoError(t, s.Send(t.Context(), transport.Envelope{Shard: i, Key: "k", Payload: i}))
	}
	assert.Equal(t, 10, in.len())
	assert.Equal(t, 9, in.envs[9].Shard)
	assert.EqualValues(t, 9, in.envs[9].Payload, "JSON numbers decode as float64")

	err = s.Send(t.Context(), transport.Envelope{Key: "reject"})
	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "rejected", re.Message)
	assert.ErrorIs(t, err, transport.ErrRejected)
	assert.NotErrorIs(t, err, transport.ErrTransportUnavailable)

	// the connection is still usable after a rejection
	require.NoError(t, s.Send(t.Context(), transport.Envelope{Key: "k"}))
}

func TestConcurrentSendsShareConnection(t *testing.T) {
	in := &inbox{}
	srv := startServer(t, in.handle)

	f, err := NewFactory(FactoryConfig{Log: discard})
	require.NoError(t, err)
	defer f.Close()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := f.Sender(t.Context(), srv.Addr())
			if err != nil {
				t.Error(err)
				return
			}
			for i := 0; i < 25; i++ {
				if err := s.Send(t.Context(), transport.Envelope{Key: "k", Payload: i}); err != nil {
					t.Error(err)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 200, in.len())
	assert.Equal(t, 1, f.Len())
}

func TestDialFailure(t *testing.T) {
	srv := startServer(t, (&inbox{}).handle)
	addr := srv.Addr()
	require.NoError(t, srv.Close())

	f, err := NewFactory(FactoryConfig{Log: discard, DialTimeout: time.Second})
	require.NoError(t, err)
	_, err = f.Sender(t.Context(), addr)
	require.ErrorIs(t, err, transport.ErrTransportUnavailable)
	assert.Equal(t, 0, f.Len())

	_, err = f.Sender(t.Context(), transport.QueueAddress{Name: "x"})
	require.ErrorIs(t, err, transport.ErrAddressMismatch)
}

func TestSendAfterServerClosed(t *testing.T) {
	srv := startServer(t, (&inbox{}).handle)

	f, err := NewFactory(FactoryConfig{Log: discard})
	require.NoError(t, err)
	defer f.Close()
	s, err := f.Sender(t.Context(), srv.Addr())
	require.NoError(t, err)
	require.NoError(t, s.Send(t.Context(), transport.Envelope{Key: "k"}))

	require.NoError(t, srv.Close())
	err = s.Send(t.Context(), transport.Envelope{Key: "k"})
	require.ErrorIs(t, err, transport.ErrTransportUnavailable)
}

func TestSendHonoursContext(t *testing.T) {
	release := make(chan struct{})
	srv := startServer(t, func(ctx context.Context, _ transport.Envelope) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})
	defer close(release)

	f, err := NewFactory(FactoryConfig{Log: discard})
	require.NoError(t, err)
	defer f.Close()
	s, err := f.Sender(t.Context(), srv.Addr())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()
	err = s.Send(ctx, transport.Envelope{Key: "slow"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.ErrorIs(t, err, transport.ErrTransportUnavailable)
}

func TestSend_TimeoutBreaksSender(t *testing.T) {
	release := make(chan struct{})
	in := &inbox{}
	srv := startServer(t, func(ctx context.Context, env transport.Envelope) error {
		if env.Key == "slow" {
			select {
			case <-release:
			case <-time.After(200 * time.Millisecond):
			}
		}
		return in.handle(ctx, env)
	})
	defer close(release)

	f, err := NewFactory(FactoryConfig{Log: discard})
	require.NoError(t, err)
	defer f.Close()
	s, err := f.Sender(t.Context(), srv.Addr())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, s.Send(ctx, transport.Envelope{Key: "slow"}), context.DeadlineExceeded)

	// the ack of "slow" is still on its way, it must not answer this send
	time.Sleep(250 * time.Millisecond)
	err = s.Send(t.Context(), transport.Envelope{Key: "reject"})
	require.ErrorIs(t, err, transport.ErrSenderClosed)
	require.ErrorIs(t, err, transport.ErrTransportUnavailable)
	assert.NotErrorIs(t, err, transport.ErrRejected)

	// a fresh sender after invalidation works
	f.Invalidate(s)
	s2, err := f.Sender(t.Context(), srv.Addr())
	require.NoError(t, err)
	require.NotSame(t, s, s2)
	require.NoError(t, s2.Send(t.Context(), transport.Envelope{Key: "k"}))
	require.NoError(t, s.Close())
}

func TestSend_FrameTooLargeKeepsSender(t *testing.T) {
	in := &inbox{}
	srv := startServer(t, in.handle)

	f, err := NewFactory(FactoryConfig{Log: discard})
	require.NoError(t, err)
	defer f.Close()
	s, err := f.Sender(t.Context(), srv.Addr())
	require.NoError(t, err)

	err = s.Send(t.Context(), transport.Envelope{Key: "k", Payload: strings.Repeat("x", MaxFrameSize)})
	require.ErrorIs(t, err, ErrFrameTooLarge)
	require.NotErrorIs(t, err, transport.ErrTransportUnavailable)

	require.NoError(t, s.Send(t.Context(), transport.Envelope{Key: "k"}))
	assert.Equal(t, 1, in.len())
}

func TestSenderClose(t *testing.T) {
	srv := startServer(t, (&inbox{}).handle)
	f, err := NewFactory(FactoryConfig{Log: discard})
	require.NoError(t, err)

	s, err := f.Sender(t.Context(), srv.Addr())
	require.NoError(t, err)
	require.NoError(t, f.Close())

	err = s.Send(t.Context(), transport.Envelope{Key: "k"})
	require.ErrorIs(t, err, transport.ErrSenderClosed)

	// the factory dials a fresh sender after Close
	s2, err := f.Sender(t.Context(), srv.Addr())
	require.NoError(t, err)
	require.NoError(t, s2.Send(t.Context(), transport.Envelope{Key: "k"}))
	require.NoError(t, f.Close())
}

func TestAppPlugin(t *testing.T) {
	in1, in2 := &inbox{}, &inbox{}
	srv1, srv2 := startServer(t, in1.handle), startServer(t, in2.handle)
	nodes := []string{srv1.Addr().String(), srv2.Addr().String()}

	a, err := app.New(app.Config{
		Node:      app.NodeConfig{ID: nodes[0], Nodes: nodes, NumShards: 16},
		Transport: TypeTCP,
		Routing:   routing.TypeGroup,
	}, app.WithLogger(discard), app.WithPlugins(Plugins(FactoryConfig{})))
	require.NoError(t, err)
	defer a.Close()

	for i := 0; i < 40; i++ {
		require.NoError(t, a.Dispatch(t.Context(), i, i))
	}
	assert.Equal(t, 40, in1.len()+in2.len())
}
