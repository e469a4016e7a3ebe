package routing

import (
	"sort"

	"github.com/codewandler/clstr-dispatch/core/transport"
	"github.com/codewandler/clstr-dispatch/internal/hrw"
)

// Static sends everything to one node, shard 0.
type Static struct {
	node transport.NodeAddress
}

func NewStatic(node transport.NodeAddress) *Static {
	return &Static{node: node}
}

func (s *Static) Resolve(key any, _ any) (Destination, error) {
	if s.node == nil {
		return Destination{}, unavailable(key, -1, "no node configured")
	}
	return Destination{Node: s.node, Shard: 0}, nil
}

type ShardedOption func(*Sharded)

// WithHasher replaces the default BLAKE2b hasher.
func WithHasher(h Hasher) ShardedOption {
	return func(s *Sharded) {
		if h != nil {
			s.hasher = h
		}
	}
}

// WithSeed seeds the default hasher.
func WithSeed(seed string) ShardedOption {
	return func(s *Sharded) {
		s.hasher = Blake2b(seed)
	}
}

// Sharded hashes the key onto a shard and asks the Directory who owns it.
type Sharded struct {
	dir    Directory
	hasher Hasher
}

func NewSharded(dir Directory, opts ...ShardedOption) *Sharded {
	s := &Sharded{dir: dir, hasher: Blake2b("")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sharded) Resolve(key any, _ any) (Destination, error) {
	if s.dir == nil {
		return Destination{}, unavailable(key, -1, "no shard directory")
	}
	n := s.dir.NumShards()
	if n <= 0 {
		return Destination{}, unavailable(key, -1, "no shards known")
	}
	shard := shardFor(s.hasher, KeyString(key), n)
	node, ok := s.dir.Owner(shard)
	if !ok || node == nil {
		return Destination{}, unavailable(key, shard, "shard has no owner")
	}
	return Destination{Node: node, Shard: shard}, nil
}

// Rendezvous picks the node with the highest rendezvous score for the key
// among the current members. The shard is the position of that node in the
// member list sorted by address, so every caller with the same view agrees
// on it.
type Rendezvous struct {
	members Members
	seed    string
}

func NewRendezvous(members Members, seed string) *Rendezvous {
	return &Rendezvous{members: members, seed: seed}
}

func (r *Rendezvous) Resolve(key any, _ any) (Destination, error) {
	if r.members == nil {
		return Destination{}, unavailable(key, -1, "no members source")
	}
	nodes := sortedNodes(r.members.Members())
	if len(nodes) == 0 {
		return Destination{}, unavailable(key, -1, "no members")
	}
	idx, _ := hrw.Best(KeyString(key), nodeKeys(nodes), r.seed)
	return Destination{Node: nodes[idx], Shard: idx}, nil
}

func sortedNodes(in []transport.NodeAddress) []transport.NodeAddress {
	out := make([]transport.NodeAddress, 0, len(in))
	for _, n := range in {
		if n != nil {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].String() < out[b].String() })
	return out
}

func nodeKeys(nodes []transport.NodeAddress) []string {
	keys := make([]string, len(nodes))
	for i, n := range nodes {
		keys[i] = n.String()
	}
	return keys
}

var (
	_ Strategy = (*Static)(nil)
	_ Strategy = (*Sharded)(nil)
	_ Strategy = (*Rendezvous)(nil)
	_ Strategy = StrategyFunc(nil)
)
