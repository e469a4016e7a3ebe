package nats

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/codewandler/clstr-dispatch/core/routing"
	"github.com/codewandler/clstr-dispatch/core/transport"
)

const shardKeyPrefix = "shard."

type DirectoryConfig struct {
	Connect   Connector
	Log       *slog.Logger
	Bucket    string // Bucket holding the shard owners, default "clstr_shards".
	NumShards int
	// Address maps an owner's node id to its address. The default is the
	// NATS Address of the node.
	Address func(node string) transport.NodeAddress
}

// Directory is a routing.Directory whose shard owners live in a JetStream KV
// bucket, one key per shard. It keeps a local copy that follows the bucket,
// so Owner never touches the network.
type Directory struct {
	store     *KvStore[string]
	numShards int
	address   func(string) transport.NodeAddress
	log       *slog.Logger
	stop      func() error

	mu     sync.RWMutex
	owners map[int]string
}

// NewDirectory opens the bucket and returns once the current owners are
// loaded.
func NewDirectory(ctx context.Context, cfg DirectoryConfig) (*Directory, error) {
	if cfg.NumShards <= 0 {
		return nil, fmt.Errorf("nats: DirectoryConfig.NumShards must be positive")
	}
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "clstr_shards"
	}
	address := cfg.Address
	if address == nil {
		address = func(node string) transport.NodeAddress { return Address{Node: node} }
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	store, err := NewKvStore[string](ctx, KvConfig{Connect: cfg.Connect, Bucket: bucket})
	if err != nil {
		return nil, err
	}

	d := &Directory{
		store:     store,
		numShards: cfg.NumShards,
		address:   address,
		log:       log.With(slog.String("bucket", bucket)),
		owners:    make(map[int]string),
	}

	ready, stop, err := store.Watch(context.WithoutCancel(ctx), d.apply)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("nats: watch %s: %w", bucket, err)
	}
	d.stop = stop

	select {
	case <-ready:
	case <-ctx.Done():
		_ = stop()
		store.Close()
		return nil, ctx.Err()
	}
	return d, nil
}

func (d *Directory) apply(key, node string, deleted bool) {
	shard, ok := parseShardKey(key)
	if !ok {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if deleted || node == "" {
		delete(d.owners, shard)
		return
	}
	d.owners[shard] = node
}

func shardKey(shard int) string { return shardKeyPrefix + strconv.Itoa(shard) }

func parseShardKey(key string) (int, bool) {
	rest, ok := strings.CutPrefix(key, shardKeyPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	return n, err == nil
}

func (d *Directory) NumShards() int { return d.numShards }

func (d *Directory) Owner(shard int) (transport.NodeAddress, bool) {
	d.mu.RLock()
	node, ok := d.owners[shard]
	d.mu.RUnlock()
	if !ok || shard >= d.numShards {
		return nil, false
	}
	return d.address(node), true
}

// Members returns the nodes owning at least one shard, sorted by id.
func (d *Directory) Members() []transport.NodeAddress {
	d.mu.RLock()
	seen := make(map[string]struct{})
	for _, node := range d.owners {
		seen[node] = struct{}{}
	}
	d.mu.RUnlock()

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]transport.NodeAddress, len(ids))
	for i, id := range ids {
		out[i] = d.address(id)
	}
	return out
}

// Assign stores node as the owner of shard.
func (d *Directory) Assign(ctx context.Context, shard int, node string) error {
	if shard < 0 || shard >= d.numShards {
		return fmt.Errorf("nats: shard %d out of range [0, %d)", shard, d.numShards)
	}
	return d.store.Set(ctx, shardKey(shard), node)
}

// Unassign removes the owner of shard.
func (d *Directory) Unassign(ctx context.Context, shard int) error {
	return d.store.Delete(ctx, shardKey(shard))
}

// Publish copies the owners of src into the bucket, e.g. an assignment
// computed with routing.StaticDirectory. Shards src has no owner for are
// removed.
func (d *Directory) Publish(ctx context.Context, src routing.Directory) error {
	n := min(src.NumShards(), d.numShards)
	for shard := 0; shard < n; shard++ {
		owner, ok := src.Owner(shard)
		var err error
		if ok {
			err = d.Assign(ctx, shard, owner.String())
		} else {
			err = d.Unassign(ctx, shard)
		}
		if err != nil {
			return fmt.Errorf("nats: publish shard %d: %w", shard, err)
		}
	}
	d.log.Info("published shard owners", slog.Int("shards", n))
	return nil
}

func (d *Directory) Close() error {
	err := d.stop()
	d.store.Close()
	return err
}

var (
	_ routing.Directory = (*Directory)(nil)
	_ routing.Members   = (*Directory)(nil)
)
