package sf

import "golang.org/x/sync/singleflight"

// Singleflight deduplicates concurrent calls that share a key. Only the first
// caller runs fn, the others block and receive its result.
type Singleflight[T any] struct {
	group singleflight.Group
}

// Do runs fn for key unless a call for key is already in flight, in which
// case it waits for that call. shared reports whether the result was handed
// to more than one caller.
func (s *Singleflight[T]) Do(key string, fn func() (T, error)) (v T, shared bool, err error) {
	out, err, shared := s.group.Do(key, func() (any, error) {
		return fn()
	})
	if err != nil || out == nil {
		return v, shared, err
	}
	return out.(T), shared, nil
}

// Forget drops the in-flight record for key, later calls start a new flight.
func (s *Singleflight[T]) Forget(key string) {
	s.group.Forget(key)
}

// New creates a Singleflight for results of type T.
func New[T any]() *Singleflight[T] {
	return &Singleflight[T]{}
}
