// Package transport provides the sender side of the dispatch core: node
// addressing, the [Sender] handle that transmits [Envelope]s to exactly one
// node, and the [Cache] sender factory that keeps one sender per node.
//
// # Sender Factories
//
// A transport contributes a [Dialer] that opens a [Sender] for one of its
// [NodeAddress] types. [NewCache] wraps the dialer into a [Factory] that
//
//   - creates at most one sender per address, even when many goroutines ask
//     for the same new address at once (only one dial happens)
//   - never caches a failed dial; the next request dials again
//   - closes every cached sender on [Cache.Close] and stays usable afterwards
//
// # Built-in Transports
//
// Two in-process transports are included:
//
//   - queue: envelopes are pushed into a buffered channel registered in a
//     [QueueHub] (see [NewQueueFactory]); blocking or fail-fast when full
//   - passthrough: envelopes are handed synchronously to a [Handler]
//     registered in a [PassthroughHub]
//
// Network transports live in adapters/nats and adapters/tcp.
//
// # Errors
//
// Every dial or send failure surfaces as a [*TransportError] which matches
// [ErrTransportUnavailable] with errors.Is and carries the failing address.
package transport
