// Package dispatch delivers messages to the node that owns their key.
//
// A Dispatcher combines a routing.Strategy with a transport.Factory: the
// strategy resolves the key to a node and shard, the factory hands out the
// cached sender for that node. Every node gets its own circuit breaker, so a
// dead node fails fast without affecting the others.
//
// DispatchAsync adds retries with exponential backoff for the recoverable
// conditions (routing or transport unavailable). Retries are timed by a
// schedule.Scheduler, which keeps no goroutine around while nothing is
// waiting.
package dispatch
