package storage

import (
	"context"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/jdziat/durable-training-queue/pkg/core"
)

const (
	redisFieldData    = "data"
	redisFieldVersion = "version"
)

// RedisBlobStore implements BlobStore as one Redis hash per object.
// Conditional writes use WATCH/MULTI so they are atomic.
type RedisBlobStore struct {
	client redis.UniversalClient
}

var _ BlobStore = (*RedisBlobStore)(nil)

// NewRedisBlobStore creates a blob store over an existing client.
func NewRedisBlobStore(client redis.UniversalClient) *RedisBlobStore {
	return &RedisBlobStore{client: client}
}

// Get implements BlobStore.
func (s *RedisBlobStore) Get(ctx context.Context, key string) ([]byte, int64, error) {
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, 0, err
	}
	data, ok := fields[redisFieldData]
	if !ok {
		return nil, 0, core.ErrObjectNotFound
	}
	version, err := strconv.ParseInt(fields[redisFieldVersion], 10, 64)
	if err != nil {
		return nil, 0, err
	}
	return []byte(data), version, nil
}

// Version implements BlobStore.
func (s *RedisBlobStore) Version(ctx context.Context, key string) (int64, error) {
	return readRedisVersion(ctx, s.client, key)
}

// Put implements BlobStore.
func (s *RedisBlobStore) Put(ctx context.Context, key string, data []byte, version int64) error {
	return s.client.HSet(ctx, key, redisFieldData, data, redisFieldVersion, version).Err()
}

// PutIf implements BlobStore.
func (s *RedisBlobStore) PutIf(ctx context.Context, key string, data []byte, version, expected int64) error {
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readRedisVersion(ctx, tx, key)
		if err != nil {
			return err
		}
		if current != expected {
			return core.ErrStaleQueue
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, redisFieldData, data, redisFieldVersion, version)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return core.ErrStaleQueue
	}
	return err
}

type hashGetter interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
}

func readRedisVersion(ctx context.Context, c hashGetter, key string) (int64, error) {
	v, err := c.HGet(ctx, key, redisFieldVersion).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}
