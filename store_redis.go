package memocache

import (
	"context"
	"errors"
	"time"

	"github.com/goforj/memocache/cachecore"
	"github.com/redis/go-redis/v9"
)

// RedisClient captures the subset of redis.Client used by the store.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// redisStore delegates expiry to redis' native key TTL.
type redisStore struct {
	client RedisClient
	prefix string
}

func newRedisStore(client RedisClient, prefix string) Store {
	if prefix == "" {
		prefix = defaultCachePrefix
	}
	return &redisStore{
		client: client,
		prefix: prefix,
	}
}

func (s *redisStore) Driver() Driver {
	return DriverRedis
}

// Set issues SET key value EX ttl. Redis rejects a non-positive expiry, and an
// entry that expires immediately is indistinguishable from no entry, so
// ttl <= 0 removes the key instead.
func (s *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s.client == nil {
		return s.unavailable("set", key)
	}
	if ttl <= 0 {
		_, err := s.Delete(ctx, key)
		return err
	}
	return s.wrap("set", key, s.client.Set(ctx, s.cacheKey(key), value, ttl).Err())
}

func (s *redisStore) Forever(ctx context.Context, key string, value []byte) error {
	if s.client == nil {
		return s.unavailable("forever", key)
	}
	return s.wrap("forever", key, s.client.Set(ctx, s.cacheKey(key), value, 0).Err())
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.client == nil {
		return nil, false, s.unavailable("get", key)
	}
	value, err := s.client.Get(ctx, s.cacheKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, s.wrap("get", key, err)
	}
	return []byte(value), true, nil
}

func (s *redisStore) Has(ctx context.Context, key string) (bool, error) {
	if s.client == nil {
		return false, s.unavailable("has", key)
	}
	n, err := s.client.Exists(ctx, s.cacheKey(key)).Result()
	if err != nil {
		return false, s.wrap("has", key, err)
	}
	return n > 0, nil
}

func (s *redisStore) Delete(ctx context.Context, key string) (bool, error) {
	if s.client == nil {
		return false, s.unavailable("delete", key)
	}
	n, err := s.client.Del(ctx, s.cacheKey(key)).Result()
	if err != nil {
		return false, s.wrap("delete", key, err)
	}
	return n > 0, nil
}

func (s *redisStore) cacheKey(key string) string {
	return s.prefix + ":" + key
}

func (s *redisStore) wrap(op, key string, err error) error {
	return cachecore.WrapStoreError(DriverRedis, op, key, err)
}

func (s *redisStore) unavailable(op, key string) error {
	return s.wrap(op, key, ErrStoreUnavailable)
}
