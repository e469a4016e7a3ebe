package dispatch

import (
	"context"
	"errors"

	"github.com/codewandler/clstr-dispatch/core/routing"
	"github.com/codewandler/clstr-dispatch/core/transport"
)

var (
	ErrDispatcherClosed = errors.New("dispatcher closed")
	// ErrCircuitOpen is wrapped in the TransportError returned while the
	// breaker of a node is open.
	ErrCircuitOpen = errors.New("circuit open")
)

const (
	KindRoutingUnavailable   = "routing_unavailable"
	KindTransportUnavailable = "transport_unavailable"
	KindCircuitOpen          = "circuit_open"
	KindRejected             = "rejected"
	KindOther                = "other"
)

// transportFailure reports whether err says the node could not be reached.
// A rejection wrapping a downstream transport failure of the receiving node
// is still a rejection.
func transportFailure(err error) bool {
	return err != nil && !errors.Is(err, transport.ErrRejected) && errors.Is(err, transport.ErrTransportUnavailable)
}

// ErrorKind classifies a dispatch error for metrics and logs.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCircuitOpen):
		return KindCircuitOpen
	case errors.Is(err, transport.ErrRejected):
		return KindRejected
	case errors.Is(err, routing.ErrRoutingUnavailable):
		return KindRoutingUnavailable
	case errors.Is(err, transport.ErrTransportUnavailable):
		return KindTransportUnavailable
	default:
		return KindOther
	}
}

// Retryable reports whether err is a recoverable condition worth another
// attempt. Context cancellation and deadlines never are, and neither is an
// envelope the node received and rejected.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, routing.ErrRoutingUnavailable) || transportFailure(err)
}
