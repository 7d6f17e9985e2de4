package storage

import (
	"context"
	"time"

	"github.com/angelmondragon/crewsync/pkg/redis"
)

type redisDocuments interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Ping(ctx context.Context) error
	DocumentKey(name string) string
	Close() error
}

// RedisStore keeps documents as plain string keys so several agents on a rig
// gateway can share one queue.
type RedisStore struct {
	client redisDocuments
}

func NewRedisStore(client redisDocuments) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.Get(ctx, r.client.DocumentKey(key))
	if redis.IsNil(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(value), nil
}

func (r *RedisStore) Set(ctx context.Context, key string, body []byte) error {
	return r.client.Set(ctx, r.client.DocumentKey(key), string(body), 0)
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
