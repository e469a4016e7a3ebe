package transport

import (
	"context"
	"sync"
)

// Sender transmits envelopes to exactly one node. Senders are owned by the
// Factory that created them; callers must not close them.
//
// Send reports a failure to reach the node as a *TransportError (see
// SendError). Every other error means the sender itself is fine: the envelope
// could not be encoded, or the node received it and refused it (see Reject).
type Sender interface {
	Send(ctx context.Context, env Envelope) error
	Addr() NodeAddress
	Close() error
}

// Factory hands out the sender bound to a node address, creating it on first
// use.
type Factory interface {
	Sender(ctx context.Context, addr NodeAddress) (Sender, error)
	// Close closes all senders created so far.
	Close() error
}

// Dialer opens a new Sender for addr. It is the transport specific part of a
// Factory, see NewCache.
type Dialer func(ctx context.Context, addr NodeAddress) (Sender, error)

// Guard tracks in-flight sends of one sender so that Close can wait for them
// to return. The zero value is ready to use.
//
//	if !s.guard.Enter() {
//	    return ErrSenderClosed
//	}
//	defer s.guard.Leave()
//
// A send that is still in flight may enter again, e.g. a handler sending to
// its own node; once Close started that Enter fails instead of blocking.
type Guard struct {
	initOnce sync.Once
	stopOnce sync.Once
	done     chan struct{}

	mu       sync.Mutex
	idle     *sync.Cond
	closed   bool
	inflight int
}

func (g *Guard) init() {
	g.initOnce.Do(func() {
		g.done = make(chan struct{})
		g.idle = sync.NewCond(&g.mu)
	})
}

// Enter registers an in-flight send. It returns false once Close was called.
func (g *Guard) Enter() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	g.inflight++
	return true
}

// Leave must be called once for every successful Enter.
func (g *Guard) Leave() {
	g.init()
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inflight--
	if g.inflight == 0 {
		g.idle.Broadcast()
	}
}

// Done is closed as soon as Close starts, so blocked sends can give up.
func (g *Guard) Done() <-chan struct{} {
	g.init()
	return g.done
}

// Close marks the guard closed and waits for in-flight sends. It reports
// whether this call was the one that closed it.
func (g *Guard) Close() bool {
	g.init()
	g.stopOnce.Do(func() { close(g.done) })

	g.mu.Lock()
	defer g.mu.Unlock()
	first := !g.closed
	g.closed = true
	for g.inflight > 0 {
		g.idle.Wait()
	}
	return first
}
