package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisBackend maps each namespace to one redis hash.
type RedisBackend struct {
	rdb  *redis.Client
	keys map[string]string
}

// OpenRedis connects and pings. keys maps namespaces to hash names; a
// namespace without an entry uses its own name.
func OpenRedis(ctx context.Context, redisURL string, keys map[string]string) (*RedisBackend, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for redis store")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisBackend(rdb, keys), nil
}

func NewRedisBackend(rdb *redis.Client, keys map[string]string) *RedisBackend {
	return &RedisBackend{rdb: rdb, keys: keys}
}

func (b *RedisBackend) Store(namespace string) (Store, error) {
	key := b.keys[namespace]
	if key == "" {
		key = namespace
	}
	return &RedisStore{rdb: b.rdb, key: key}, nil
}

func (b *RedisBackend) Close() error { return b.rdb.Close() }

type RedisStore struct {
	rdb *redis.Client
	key string
}

func (s *RedisStore) Save(ctx context.Context, id string, blob []byte) error {
	if err := s.rdb.HSet(ctx, s.key, id, blob).Err(); err != nil {
		return fmt.Errorf("hset %s %s: %w", s.key, id, err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, id string) ([]byte, error) {
	b, err := s.rdb.HGet(ctx, s.key, id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("hget %s %s: %w", s.key, id, err)
	}
	return b, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.rdb.HDel(ctx, s.key, id).Err(); err != nil {
		return fmt.Errorf("hdel %s %s: %w", s.key, id, err)
	}
	return nil
}

func (s *RedisStore) LoadAll(ctx context.Context) (map[string][]byte, error) {
	all, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", s.key, err)
	}
	out := make(map[string][]byte, len(all))
	for k, v := range all {
		out[k] = []byte(v)
	}
	return out, nil
}
