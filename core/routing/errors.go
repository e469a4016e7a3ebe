package routing

import (
	"errors"
	"fmt"
)

var ErrRoutingUnavailable = errors.New("routing unavailable")

// RoutingError reports that no destination could be resolved for Key.
// Shard is -1 if the failure happened before a shard was chosen.
type RoutingError struct {
	Key    any
	Shard  int
	Reason string
}

func (e *RoutingError) Error() string {
	if e.Shard < 0 {
		return fmt.Sprintf("routing: key %v: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("routing: key %v (shard %d): %s", e.Key, e.Shard, e.Reason)
}

func (e *RoutingError) Is(target error) bool { return target == ErrRoutingUnavailable }

func unavailable(key any, shard int, reason string) error {
	return &RoutingError{Key: key, Shard: shard, Reason: reason}
}
