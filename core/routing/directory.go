package routing

import (
	"fmt"
	"sync"

	"github.com/codewandler/clstr-dispatch/core/transport"
	"github.com/codewandler/clstr-dispatch/internal/hrw"
)

// StaticDirectory assigns a fixed number of shards to a node list with
// rendezvous hashing. Changing the node list with SetNodes only moves the
// shards of nodes that left or joined.
type StaticDirectory struct {
	numShards int
	seed      string

	mu     sync.RWMutex
	nodes  []transport.NodeAddress
	owners []transport.NodeAddress
}

func NewStaticDirectory(numShards int, seed string, nodes ...transport.NodeAddress) (*StaticDirectory, error) {
	if numShards <= 0 {
		return nil, fmt.Errorf("routing: numShards must be positive, got %d", numShards)
	}
	d := &StaticDirectory{numShards: numShards, seed: seed}
	d.SetNodes(nodes...)
	return d, nil
}

// SetNodes replaces the node list and recomputes shard ownership.
func (d *StaticDirectory) SetNodes(nodes ...transport.NodeAddress) {
	sorted := sortedNodes(nodes)
	keys := nodeKeys(sorted)

	owners := make([]transport.NodeAddress, d.numShards)
	if len(sorted) > 0 {
		for shard := range owners {
			idx, _ := hrw.Best(fmt.Sprintf("shard:%d", shard), keys, d.seed)
			owners[shard] = sorted[idx]
		}
	}

	d.mu.Lock()
	d.nodes = sorted
	d.owners = owners
	d.mu.Unlock()
}

func (d *StaticDirectory) NumShards() int { return d.numShards }

func (d *StaticDirectory) Owner(shard int) (transport.NodeAddress, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if shard < 0 || shard >= len(d.owners) {
		return nil, false
	}
	n := d.owners[shard]
	return n, n != nil
}

// ShardsOf returns the shards owned by node.
func (d *StaticDirectory) ShardsOf(node transport.NodeAddress) []int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []int
	for shard, owner := range d.owners {
		if owner == node {
			out = append(out, shard)
		}
	}
	return out
}

func (d *StaticDirectory) Members() []transport.NodeAddress {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]transport.NodeAddress(nil), d.nodes...)
}

var (
	_ Directory = (*StaticDirectory)(nil)
	_ Members   = (*StaticDirectory)(nil)
)
