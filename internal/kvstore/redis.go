package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/desertthunder/ytsched/internal/shared"
)

var compareAndDelete = redis.NewScript(compareAndDeleteScript)

// RedisStore is a [Store] on a Redis connection (Vercel KV also accepts rediss:// URLs).
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore parses a redis:// or rediss:// URL and connects lazily.
func NewRedisStore(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%w: redis url: %v", shared.ErrInvalidConfig, err)
	}
	return &RedisStore{client: redis.NewClient(opts)}, nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// Close closes the connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func wrapRedis(op string, err error) error {
	return fmt.Errorf("%w: redis %s: %v", shared.ErrUpstream, op, err)
}

// Get fetches the string stored at key.
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", notFound(key)
	}
	if err != nil {
		return "", wrapRedis("GET", err)
	}
	return value, nil
}

// Set stores value at key without expiry.
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return wrapRedis("SET", err)
	}
	return nil
}

// SetNX stores value at key with expiry ttl if the key is absent.
func (s *RedisStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, wrapRedis("SETNX", err)
	}
	return ok, nil
}

// Delete removes key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return wrapRedis("DEL", err)
	}
	return nil
}

// CompareAndDelete removes key if it still holds value.
func (s *RedisStore) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	n, err := compareAndDelete.Run(ctx, s.client, []string{key}, value).Int()
	if err != nil {
		return false, wrapRedis("EVAL", err)
	}
	return n == 1, nil
}
