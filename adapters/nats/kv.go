package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

var (
	ErrKeyNotFound = errors.New("key not found")
)

type KvConfig struct {
	Connect Connector
	Bucket  string
}

// KvStore is a JetStream key-value bucket holding JSON encoded T values.
type KvStore[T any] struct {
	kv      jetstream.KeyValue
	release closeFunc
}

func NewKvStore[T any](ctx context.Context, cfg KvConfig) (*KvStore[T], error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket is required")
	}

	doConnect := cfg.Connect
	if doConnect == nil {
		doConnect = ConnectDefault()
	}

	nc, release, err := doConnect()
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		release()
		return nil, err
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:   cfg.Bucket,
		Storage:  jetstream.FileStorage,
		MaxBytes: 1024 * 1024,
	})
	if err != nil {
		release()
		return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
	}

	return &KvStore[T]{kv: kv, release: release}, nil
}

func (k *KvStore[T]) Set(ctx context.Context, key string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = k.kv.Put(ctx, key, data)
	return err
}

func (k *KvStore[T]) Get(ctx context.Context, key string) (out T, err error) {
	v, err := k.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return out, ErrKeyNotFound
		}
		return out, fmt.Errorf("failed to get %s: %w", key, err)
	}
	err = json.Unmarshal(v.Value(), &out)
	return out, err
}

func (k *KvStore[T]) Delete(ctx context.Context, key string) error {
	err := k.kv.Delete(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}
	return err
}

// Watch calls fn for every current key and every later change, on a
// goroutine of its own. ready is closed once the current keys were
// delivered. The watch ends with ctx or the returned stop function.
func (k *KvStore[T]) Watch(ctx context.Context, fn func(key string, v T, deleted bool)) (ready <-chan struct{}, stop func() error, err error) {
	w, err := k.kv.WatchAll(ctx)
	if err != nil {
		return nil, nil, err
	}

	readyCh := make(chan struct{})
	go func() {
		initial := true
		for e := range w.Updates() {
			if e == nil {
				if initial {
					initial = false
					close(readyCh)
				}
				continue
			}
			var v T
			switch e.Operation() {
			case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
				fn(e.Key(), v, true)
			default:
				if err := json.Unmarshal(e.Value(), &v); err != nil {
					continue
				}
				fn(e.Key(), v, false)
			}
		}
		if initial {
			close(readyCh)
		}
	}()
	return readyCh, w.Stop, nil
}

// Close releases the connection.
func (k *KvStore[T]) Close() {
	k.release()
}
