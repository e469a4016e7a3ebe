package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrTransportUnavailable is matched by every dial and send failure.
	ErrTransportUnavailable = errors.New("transport unavailable")

	ErrFactoryClosed   = errors.New("sender factory closed")
	ErrSenderClosed    = errors.New("sender closed")
	ErrQueueFull       = errors.New("queue full")
	ErrUnknownAddress  = errors.New("unknown node address")
	ErrAddressMismatch = errors.New("address does not belong to transport")

	// ErrRejected is matched by errors of envelopes that reached the node and
	// were refused by its handler. It never matches ErrTransportUnavailable.
	ErrRejected = errors.New("envelope rejected")
)

// TransportError reports a failed dial or send for one node address.
type TransportError struct {
	Addr NodeAddress
	Op   string // "dial" or "send"
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s %s: %v", e.Op, addrString(e.Addr), e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransportUnavailable }

// SendError wraps err as a send failure for addr. A nil err stays nil and an
// error that already is a TransportError is returned unchanged.
func SendError(addr NodeAddress, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Addr: addr, Op: "send", Err: err}
}

func dialError(addr NodeAddress, err error) error {
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Addr: addr, Op: "dial", Err: err}
}

// RejectedError carries the error a receiving node's handler returned.
type RejectedError struct {
	Addr NodeAddress
	Err  error
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("transport: %s rejected envelope: %v", addrString(e.Addr), e.Err)
}

func (e *RejectedError) Unwrap() error { return e.Err }

func (e *RejectedError) Is(target error) bool { return target == ErrRejected }

// Reject wraps a handler error of the node at addr. A nil err stays nil.
func Reject(addr NodeAddress, err error) error {
	if err == nil {
		return nil
	}
	return &RejectedError{Addr: addr, Err: err}
}
