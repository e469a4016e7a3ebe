// Package tcp is a point-to-point transport over plain TCP connections.
//
// Each sender owns one connection to its node. An envelope travels as a
// frame: a 4 byte big-endian length followed by the encoded envelope. The
// server answers every frame with an ack frame carrying the handler's error,
// so Send returns only after the receiving node processed the envelope.
package tcp
