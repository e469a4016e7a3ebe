// Package hrw implements rendezvous (highest random weight) hashing with
// BLAKE2b scores.
package hrw

import (
	"encoding/binary"
	"sort"

	"golang.org/x/crypto/blake2b"
)

// TopK returns the indices of up to k nodes with the highest scores for key,
// best first. seed is optional and keeps separate clusters from agreeing by
// accident.
func TopK(key string, nodes []string, k int, seed string) []int {
	if k <= 0 || len(nodes) == 0 {
		return nil
	}
	if k > len(nodes) {
		k = len(nodes)
	}

	type entry struct {
		score uint64
		idx   int
	}
	all := make([]entry, len(nodes))
	keyB := []byte(key)
	for i, n := range nodes {
		all[i] = entry{score: Score(keyB, n, seed), idx: i}
	}

	// ties are broken by node name so the result never depends on input order
	sort.Slice(all, func(a, b int) bool {
		if all[a].score != all[b].score {
			return all[a].score > all[b].score
		}
		return nodes[all[a].idx] < nodes[all[b].idx]
	})

	out := make([]int, k)
	for i := range out {
		out[i] = all[i].idx
	}
	return out
}

// Best returns the index of the top node for key. ok is false if nodes is empty.
func Best(key string, nodes []string, seed string) (idx int, ok bool) {
	top := TopK(key, nodes, 1, seed)
	if len(top) == 0 {
		return -1, false
	}
	return top[0], true
}

// Score is the 64 bit weight of nodeID for key.
func Score(key []byte, nodeID string, seed string) uint64 {
	h, _ := blake2b.New(8, nil)

	if seed != "" {
		h.Write([]byte(seed))
		h.Write([]byte{0})
	}

	h.Write(key)
	h.Write([]byte{0})
	h.Write([]byte(nodeID))

	return binary.BigEndian.Uint64(h.Sum(nil))
}
