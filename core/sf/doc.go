// Package sf is a typed wrapper around golang.org/x/sync/singleflight.
//
// The transport sender cache uses it so that a burst of first-time requests
// for the same node address results in exactly one dial:
//
//	flights := sf.New[transport.Sender]()
//	s, _, err := flights.Do(key, func() (transport.Sender, error) {
//	    return dial(ctx, addr)
//	})
package sf
