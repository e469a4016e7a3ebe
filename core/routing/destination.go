package routing

import (
	"fmt"

	"github.com/codewandler/clstr-dispatch/core/transport"
)

const (
	TypeSimple  = "simple"
	TypeManaged = "managed"
	TypeGroup   = "group"
)

// Destination is the node and shard that own a key.
type Destination struct {
	Node  transport.NodeAddress
	Shard int
}

func (d Destination) String() string {
	if d.Node == nil {
		return fmt.Sprintf("<nil>#%d", d.Shard)
	}
	return fmt.Sprintf("%s#%d", d.Node, d.Shard)
}

// Strategy resolves where a message must go. Implementations must be safe
// for concurrent use and must not modify msg.
type Strategy interface {
	Resolve(key any, msg any) (Destination, error)
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(key any, msg any) (Destination, error)

func (f StrategyFunc) Resolve(key any, msg any) (Destination, error) { return f(key, msg) }

// Directory answers which node currently owns a shard.
type Directory interface {
	NumShards() int
	Owner(shard int) (transport.NodeAddress, bool)
}

// Members lists the nodes currently taking part in routing.
type Members interface {
	Members() []transport.NodeAddress
}
