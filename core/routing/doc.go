// Package routing resolves a message key to the [Destination] that owns it:
// the node to send to and the shard on that node.
//
// # Strategies
//
// A [Strategy] is a single method, Resolve(key, msg). Three implementations
// are provided, registered under the ids used in configuration:
//
//   - [Static] ("simple"): every key goes to one fixed node
//   - [Sharded] ("managed"): key -> shard by hashing, shard -> node through a
//     [Directory]
//   - [Rendezvous] ("group"): key -> node by rendezvous hashing over the
//     current [Members]
//
// Custom strategies can be written as a [StrategyFunc].
//
// # Directories
//
// Shard ownership is owned by cluster coordination and reaches this package
// only through the [Directory] interface. [StaticDirectory] is an in-memory
// directory that spreads shards over a fixed node list with rendezvous
// hashing; adapters/nats provides one backed by a JetStream KV bucket.
//
// # Errors
//
// When no destination can be resolved, Resolve returns a [*RoutingError]
// matching [ErrRoutingUnavailable]. Callers decide whether to retry, buffer
// or drop.
package routing
