package routing

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/crypto/blake2b"
)

// Hasher maps a key to a 64 bit value.
type Hasher interface {
	Sum64(key string) uint64
}

type blake2bHasher struct {
	seed string
}

// Blake2b returns the default Hasher, seeded so that separate clusters do not
// agree on placement by accident.
func Blake2b(seed string) Hasher { return blake2bHasher{seed: seed} }

func (h blake2bHasher) Sum64(key string) uint64 {
	d, _ := blake2b.New(8, nil)
	if h.seed != "" {
		d.Write([]byte(h.seed))
		d.Write([]byte{0})
	}
	d.Write([]byte(key))
	return binary.BigEndian.Uint64(d.Sum(nil))
}

type xxHasher struct {
	seed string
}

// XXHash returns a faster, non-cryptographic Hasher.
func XXHash(seed string) Hasher { return xxHasher{seed: seed} }

func (h xxHasher) Sum64(key string) uint64 {
	if h.seed == "" {
		return xxhash.Sum64String(key)
	}
	d := xxhash.New()
	_, _ = d.WriteString(h.seed)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(key)
	return d.Sum64()
}

// ShardFromString derives a stable shard in [0, numShards) from key.
func ShardFromString(key string, numShards int, seed string) int {
	return shardFor(Blake2b(seed), key, numShards)
}

func shardFor(h Hasher, key string, numShards int) int {
	if numShards <= 0 {
		return 0
	}
	return int(h.Sum64(key) % uint64(numShards))
}

// KeyString renders a routing key for hashing. Strings are used as they are,
// anything else is formatted with fmt.Sprint.
func KeyString(key any) string {
	switch k := key.(type) {
	case string:
		return k
	case []byte:
		return string(k)
	case nil:
		return ""
	default:
		return fmt.Sprint(k)
	}
}
