package hrw

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBest_Empty(t *testing.T) {
	_, ok := Best("k", nil, "")
	require.False(t, ok)
}

func TestBest_Deterministic(t *testing.T) {
	nodes := []string{"a", "b", "c", "d"}
	idx, ok := Best("key-1", nodes, "seed")
	require.True(t, ok)

	for range 10 {
		again, _ := Best("key-1", nodes, "seed")
		require.Equal(t, idx, again)
	}

	// input order does not change the winner
	reversed := []string{"d", "c", "b", "a"}
	ridx, _ := Best("key-1", reversed, "seed")
	require.Equal(t, nodes[idx], reversed[ridx])
}

func TestTopK(t *testing.T) {
	nodes := []string{"a", "b", "c"}
	top := TopK("k", nodes, 5, "")
	require.Len(t, top, 3)
	require.ElementsMatch(t, []int{0, 1, 2}, top)

	best, _ := Best("k", nodes, "")
	require.Equal(t, best, top[0])
	require.Nil(t, TopK("k", nodes, 0, ""))
}

func TestBest_MinimalMovement(t *testing.T) {
	nodes := []string{"n1", "n2", "n3", "n4"}
	fewer := []string{"n1", "n2", "n3"}

	moved := 0
	for i := range 1000 {
		key := fmt.Sprintf("key-%d", i)
		before, _ := Best(key, nodes, "")
		after, _ := Best(key, fewer, "")
		if nodes[before] != "n4" && nodes[before] != fewer[after] {
			moved++
		}
	}
	require.Zero(t, moved, "keys not owned by the removed node must stay put")
}
