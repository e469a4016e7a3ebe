package nats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewandler/clstr-dispatch/core/routing"
	"github.com/codewandler/clstr-dispatch/core/transport"
)

func TestParseShardKey(t *testing.T) {
	n, ok := parseShardKey(shardKey(12))
	assert.True(t, ok)
	assert.Equal(t, 12, n)

	_, ok = parseShardKey("other.1")
	assert.False(t, ok)
	_, ok = parseShardKey("shard.x")
	assert.False(t, ok)
}

func TestNats_Directory(t *testing.T) {
	connect := ReuseConnection(NewTestContainer(t))

	dir, err := NewDirectory(t.Context(), DirectoryConfig{Connect: connect, Log: discard, NumShards: 8})
	require.NoError(t, err)
	defer dir.Close()

	_, ok := dir.Owner(0)
	assert.False(t, ok)

	require.NoError(t, dir.Assign(t.Context(), 3, "n1"))
	require.Error(t, dir.Assign(t.Context(), 8, "n1"))
	require.Eventually(t, func() bool {
		owner, ok := dir.Owner(3)
		return ok && owner == Address{Node: "n1"}
	}, 5*time.Second, 10*time.Millisecond)

	// a second instance sees the same owners on start
	other, err := NewDirectory(t.Context(), DirectoryConfig{Connect: connect, Log: discard, NumShards: 8})
	require.NoError(t, err)
	defer other.Close()
	owner, ok := other.Owner(3)
	require.True(t, ok)
	assert.Equal(t, Address{Node: "n1"}, owner)

	// publish a full assignment and route with it
	static, err := routing.NewStaticDirectory(8, "s", Address{Node: "n1"}, Address{Node: "n2"})
	require.NoError(t, err)
	require.NoError(t, dir.Publish(t.Context(), static))
	require.Eventually(t, func() bool {
		for shard := 0; shard < 8; shard++ {
			want, _ := static.Owner(shard)
			got, ok := other.Owner(shard)
			if !ok || got != want {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []transport.NodeAddress{Address{Node: "n1"}, Address{Node: "n2"}}, other.Members())

	d, err := routing.NewSharded(other, routing.WithSeed("s")).Resolve("order-1", nil)
	require.NoError(t, err)
	want, _ := static.Owner(d.Shard)
	assert.Equal(t, want, d.Node)

	require.NoError(t, dir.Unassign(t.Context(), 0))
	require.Eventually(t, func() bool {
		_, ok := other.Owner(0)
		return !ok
	}, 5*time.Second, 10*time.Millisecond)
}
