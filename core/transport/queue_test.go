package transport

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newQueueFactory(t *testing.T, hub *QueueHub, blocking bool) *Cache {
	f, err := NewQueueFactory(QueueOptions{
		Hub:      hub,
		Blocking: blocking,
		Log:      slog.New(slog.DiscardHandler),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, f.Close())
	})
	return f
}

func TestQueue_Send(t *testing.T) {
	hub := NewQueueHub()
	addr, rcv, err := hub.Listen("node-1", 4)
	require.NoError(t, err)

	f := newQueueFactory(t, hub, false)
	s, err := f.Sender(t.Context(), addr)
	require.NoError(t, err)
	require.Equal(t, addr, s.Addr())

	require.NoError(t, s.Send(t.Context(), Envelope{Shard: 3, Key: "k", Payload: "hello"}))

	select {
	case env := <-rcv:
		require.Equal(t, 3, env.Shard)
		require.Equal(t, "hello", env.Payload)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("no message received")
	}
}

func TestQueue_ListenTwice(t *testing.T) {
	hub := NewQueueHub()
	_, _, err := hub.Listen("n", 1)
	require.NoError(t, err)
	_, _, err = hub.Listen("n", 1)
	require.Error(t, err)
}

func TestQueue_UnknownAddress(t *testing.T) {
	f := newQueueFactory(t, NewQueueHub(), false)
	_, err := f.Sender(t.Context(), QueueAddress{Name: "missing"})
	require.ErrorIs(t, err, ErrTransportUnavailable)
	require.ErrorIs(t, err, ErrUnknownAddress)
}

func TestQueue_WrongAddressType(t *testing.T) {
	f := newQueueFactory(t, NewQueueHub(), false)
	_, err := f.Sender(t.Context(), PassthroughAddress{Name: "x"})
	require.ErrorIs(t, err, ErrAddressMismatch)
}

func TestQueue_NonBlocking_Full(t *testing.T) {
	hub := NewQueueHub()
	addr, _, err := hub.Listen("n", 1)
	require.NoError(t, err)

	f := newQueueFactory(t, hub, false)
	s, err := f.Sender(t.Context(), addr)
	require.NoError(t, err)

	require.NoError(t, s.Send(t.Context(), Envelope{Payload: 1}))
	err = s.Send(t.Context(), Envelope{Payload: 2})
	require.ErrorIs(t, err, ErrQueueFull)
	require.ErrorIs(t, err, ErrTransportUnavailable)
}

func TestQueue_Blocking_WaitsForRoom(t *testing.T) {
	hub := NewQueueHub()
	addr, rcv, err := hub.Listen("n", 1)
	require.NoError(t, err)

	f := newQueueFactory(t, hub, true)
	s, err := f.Sender(t.Context(), addr)
	require.NoError(t, err)
	require.NoError(t, s.Send(t.Context(), Envelope{Payload: 1}))

	done := make(chan error, 1)
	go func() { done <- s.Send(context.Background(), Envelope{Payload: 2}) }()

	select {
	case <-done:
		t.Fatal("blocking send returned while queue was full")
	case <-time.After(20 * time.Millisecond):
	}

	<-rcv
	require.NoError(t, <-done)
}

func TestQueue_Blocking_ContextCancelled(t *testing.T) {
	hub := NewQueueHub()
	addr, _, err := hub.Listen("n", 1)
	require.NoError(t, err)

	f := newQueueFactory(t, hub, true)
	s, err := f.Sender(t.Context(), addr)
	require.NoError(t, err)
	require.NoError(t, s.Send(t.Context(), Envelope{Payload: 1}))

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	err = s.Send(ctx, Envelope{Payload: 2})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_CloseUnblocksAndRejects(t *testing.T) {
	hub := NewQueueHub()
	addr, _, err := hub.Listen("n", 1)
	require.NoError(t, err)

	f := newQueueFactory(t, hub, true)
	s, err := f.Sender(t.Context(), addr)
	require.NoError(t, err)
	require.NoError(t, s.Send(t.Context(), Envelope{Payload: 1}))

	var wg sync.WaitGroup
	wg.Add(1)
	var blockedErr error
	go func() {
		defer wg.Done()
		blockedErr = s.Send(context.Background(), Envelope{Payload: 2})
	}()
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, f.Close())
	wg.Wait()
	require.ErrorIs(t, blockedErr, ErrSenderClosed)

	err = s.Send(t.Context(), Envelope{Payload: 3})
	require.ErrorIs(t, err, ErrSenderClosed)
	require.ErrorIs(t, err, ErrTransportUnavailable)
}
