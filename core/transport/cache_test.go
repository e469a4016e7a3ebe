package transport

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testAddr string

func (a testAddr) Transport() string { return "test" }
func (a testAddr) String() string    { return string(a) }

type testSender struct {
	addr   NodeAddress
	closed atomic.Bool
	sent   atomic.Int32
}

func (s *testSender) Addr() NodeAddress { return s.addr }
func (s *testSender) Send(context.Context, Envelope) error {
	if s.closed.Load() {
		return SendError(s.addr, ErrSenderClosed)
	}
	s.sent.Add(1)
	return nil
}
func (s *testSender) Close() error {
	s.closed.Store(true)
	return nil
}

type testDialer struct {
	mu    sync.Mutex
	dials map[NodeAddress]int
	delay time.Duration
	fail  func(addr NodeAddress) error
}

func (d *testDialer) dial(_ context.Context, addr NodeAddress) (Sender, error) {
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	d.mu.Lock()
	d.dials[addr]++
	d.mu.Unlock()
	if d.fail != nil {
		if err := d.fail(addr); err != nil {
			return nil, err
		}
	}
	return &testSender{addr: addr}, nil
}

func (d *testDialer) count(addr NodeAddress) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials[addr]
}

func newTestCache(t *testing.T, d *testDialer) *Cache {
	if d.dials == nil {
		d.dials = map[NodeAddress]int{}
	}
	c, err := NewCache(CacheOptions{
		Transport: "test",
		Dial:      d.dial,
		Log:       slog.New(slog.DiscardHandler),
	})
	require.NoError(t, err)
	return c
}

func TestCache_RequiresDialer(t *testing.T) {
	_, err := NewCache(CacheOptions{})
	require.Error(t, err)
}

func TestCache_SameSenderForAddress(t *testing.T) {
	d := &testDialer{}
	c := newTestCache(t, d)

	s1, err := c.Sender(t.Context(), testAddr("a"))
	require.NoError(t, err)
	s2, err := c.Sender(t.Context(), testAddr("a"))
	require.NoError(t, err)
	s3, err := c.Sender(t.Context(), testAddr("b"))
	require.NoError(t, err)

	require.Same(t, s1, s2)
	require.NotSame(t, s1, s3)
	require.Equal(t, 2, c.Len())
	require.Equal(t, 1, d.count(testAddr("a")))
}

func TestCache_ConcurrentFirstRequests_DialOnce(t *testing.T) {
	d := &testDialer{delay: 20 * time.Millisecond}
	c := newTestCache(t, d)

	const n = 64
	var (
		wg      sync.WaitGroup
		senders = make([]Sender, n)
		start   = make(chan struct{})
	)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			s, err := c.Sender(context.Background(), testAddr("hot"))
			if err != nil {
				t.Error(err)
				return
			}
			senders[i] = s
		}()
	}
	close(start)
	wg.Wait()

	require.Equal(t, 1, d.count(testAddr("hot")))
	for _, s := range senders {
		require.Same(t, senders[0], s)
	}
}

func TestCache_DialFailureNotCached(t *testing.T) {
	boom := errors.New("connection refused")
	var failing atomic.Bool
	failing.Store(true)
	d := &testDialer{fail: func(NodeAddress) error {
		if failing.Load() {
			return boom
		}
		return nil
	}}
	c := newTestCache(t, d)

	_, err := c.Sender(t.Context(), testAddr("a"))
	require.ErrorIs(t, err, ErrTransportUnavailable)
	require.ErrorIs(t, err, boom)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	require.Equal(t, testAddr("a"), te.Addr)
	require.Equal(t, "dial", te.Op)
	require.Equal(t, 0, c.Len())

	failing.Store(false)
	s, err := c.Sender(t.Context(), testAddr("a"))
	require.NoError(t, err)
	require.NotNil(t, s)
	require.Equal(t, 2, d.count(testAddr("a")))
}

func TestCache_FailureIsolatedPerAddress(t *testing.T) {
	d := &testDialer{fail: func(addr NodeAddress) error {
		if addr == testAddr("bad") {
			return errors.New("nope")
		}
		return nil
	}}
	c := newTestCache(t, d)

	good, err := c.Sender(t.Context(), testAddr("good"))
	require.NoError(t, err)

	_, err = c.Sender(t.Context(), testAddr("bad"))
	require.ErrorIs(t, err, ErrTransportUnavailable)

	again, err := c.Sender(t.Context(), testAddr("good"))
	require.NoError(t, err)
	require.Same(t, good, again)
}

func TestCache_Close(t *testing.T) {
	d := &testDialer{}
	c := newTestCache(t, d)

	s1, err := c.Sender(t.Context(), testAddr("a"))
	require.NoError(t, err)
	s2, err := c.Sender(t.Context(), testAddr("b"))
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.True(t, s1.(*testSender).closed.Load())
	require.True(t, s2.(*testSender).closed.Load())
	require.Equal(t, 0, c.Len())

	// idempotent
	require.NoError(t, c.Close())

	// not terminal: new senders are created after close
	s3, err := c.Sender(t.Context(), testAddr("c"))
	require.NoError(t, err)
	require.NotNil(t, s3)

	s4, err := c.Sender(t.Context(), testAddr("a"))
	require.NoError(t, err)
	require.NotSame(t, s1, s4)
	require.False(t, s4.(*testSender).closed.Load())
}

func TestCache_CloseDuringDial_NotCached(t *testing.T) {
	dialing := make(chan struct{})
	release := make(chan struct{})
	var dialed atomic.Pointer[testSender]

	c, err := NewCache(CacheOptions{
		Transport: "test",
		Log:       slog.New(slog.DiscardHandler),
		Dial: func(_ context.Context, addr NodeAddress) (Sender, error) {
			close(dialing)
			<-release
			s := &testSender{addr: addr}
			dialed.Store(s)
			return s, nil
		},
	})
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Sender(context.Background(), testAddr("slow"))
		errCh <- err
	}()

	<-dialing
	require.NoError(t, c.Close())
	close(release)

	err = <-errCh
	require.ErrorIs(t, err, ErrTransportUnavailable)
	require.ErrorIs(t, err, ErrFactoryClosed)
	require.Equal(t, 0, c.Len())
	require.True(t, dialed.Load().closed.Load())
}

func TestCache_Invalidate(t *testing.T) {
	d := &testDialer{}
	c := newTestCache(t, d)

	s1, err := c.Sender(t.Context(), testAddr("a"))
	require.NoError(t, err)
	other, err := c.Sender(t.Context(), testAddr("b"))
	require.NoError(t, err)

	c.Invalidate(s1)
	require.True(t, s1.(*testSender).closed.Load())
	require.Equal(t, 1, c.Len())

	// stale invalidation of an already replaced sender is ignored
	s2, err := c.Sender(t.Context(), testAddr("a"))
	require.NoError(t, err)
	require.NotSame(t, s1, s2)
	c.Invalidate(s1)
	require.False(t, s2.(*testSender).closed.Load())

	again, err := c.Sender(t.Context(), testAddr("b"))
	require.NoError(t, err)
	require.Same(t, other, again)
}

func TestCache_NilAddress(t *testing.T) {
	c := newTestCache(t, &testDialer{})
	_, err := c.Sender(t.Context(), nil)
	require.ErrorIs(t, err, ErrTransportUnavailable)
	require.ErrorIs(t, err, ErrUnknownAddress)
}

func TestCache_CallerAfterCloseDoesNotJoinStaleDial(t *testing.T) {
	dialing := make(chan struct{})
	release := make(chan struct{})
	var dials atomic.Int32

	c, err := NewCache(CacheOptions{
		Transport: "test",
		Log:       slog.New(slog.DiscardHandler),
		Dial: func(_ context.Context, addr NodeAddress) (Sender, error) {
			if dials.Add(1) == 1 {
				close(dialing)
				<-release
			}
			return &testSender{addr: addr}, nil
		},
	})
	require.NoError(t, err)

	staleErr := make(chan error, 1)
	go func() {
		_, err := c.Sender(context.Background(), testAddr("slow"))
		staleErr <- err
	}()
	<-dialing
	require.NoError(t, c.Close())

	// not blocked behind the dial that started before Close
	fresh, err := c.Sender(t.Context(), testAddr("slow"))
	require.NoError(t, err)
	require.EqualValues(t, 2, dials.Load())

	close(release)
	require.ErrorIs(t, <-staleErr, ErrFactoryClosed)

	again, err := c.Sender(t.Context(), testAddr("slow"))
	require.NoError(t, err)
	require.Same(t, fresh, again)
	require.Equal(t, 1, c.Len())
}

func TestCache_CloseConcurrentWithSends(t *testing.T) {
	d := &testDialer{}
	c := newTestCache(t, d)
	addrs := []NodeAddress{testAddr("a"), testAddr("b"), testAddr("c")}

	ctx, cancel := context.WithTimeout(t.Context(), 200*time.Millisecond)
	defer cancel()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; ctx.Err() == nil; i++ {
				s, err := c.Sender(ctx, addrs[(w+i)%len(addrs)])
				if err != nil {
					if !errors.Is(err, ErrFactoryClosed) {
						t.Errorf("unexpected dial error: %v", err)
					}
					continue
				}
				if err := s.Send(ctx, Envelope{}); err != nil && !errors.Is(err, ErrSenderClosed) {
					t.Errorf("unexpected send error: %v", err)
				}
			}
		}(w)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ctx.Err() == nil {
			if err := c.Close(); err != nil {
				t.Errorf("close: %v", err)
			}
			time.Sleep(time.Millisecond)
		}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("senders and Close did not finish")
	}

	require.NoError(t, c.Close())
	require.Equal(t, 0, c.Len())
}
