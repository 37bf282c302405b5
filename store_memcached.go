package memocache

import (
	"context"
	"errors"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/goforj/memocache/cachecore"
)

const (
	defaultMemcachedAddr = "127.0.0.1:11211"
	memcachedMaxKeyLen   = 250
	// memcachedRelativeLimit is the largest expiration memcached treats as
	// relative seconds; larger values are read as unix timestamps.
	memcachedRelativeLimit = 30 * 24 * 60 * 60
)

// MemcachedClient captures the subset of *memcache.Client used by the store.
type MemcachedClient interface {
	Get(key string) (*memcache.Item, error)
	Set(item *memcache.Item) error
	Delete(key string) error
}

type memcachedStore struct {
	client MemcachedClient
	prefix string
	now    Clock
}

func newMemcachedStore(cfg StoreConfig) Store {
	client := cfg.MemcachedClient
	if client == nil {
		addrs := cfg.MemcachedAddresses
		if len(addrs) == 0 {
			addrs = []string{defaultMemcachedAddr}
		}
		client = memcache.New(addrs...)
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultCachePrefix
	}
	clock := cfg.Clock
	if clock == nil {
		clock = cachecore.SystemClock
	}
	return &memcachedStore{client: client, prefix: prefix, now: clock}
}

func (s *memcachedStore) Driver() Driver { return DriverMemcached }

func (s *memcachedStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		_, err := s.Delete(ctx, key)
		return err
	}
	return s.put("set", key, value, s.expiration(ttl))
}

func (s *memcachedStore) Forever(_ context.Context, key string, value []byte) error {
	return s.put("forever", key, value, 0)
}

func (s *memcachedStore) put(op, key string, value []byte, expiration int32) error {
	err := s.client.Set(&memcache.Item{
		Key:        s.cacheKey(key),
		Value:      cloneBytes(value),
		Expiration: expiration,
	})
	return s.wrap(op, key, err)
}

func (s *memcachedStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	return s.read("get", key)
}

func (s *memcachedStore) Has(_ context.Context, key string) (bool, error) {
	_, ok, err := s.read("has", key)
	return ok, err
}

func (s *memcachedStore) read(op, key string) ([]byte, bool, error) {
	item, err := s.client.Get(s.cacheKey(key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, s.wrap(op, key, err)
	}
	if item == nil {
		return nil, false, nil
	}
	return cloneBytes(item.Value), true, nil
}

func (s *memcachedStore) Delete(_ context.Context, key string) (bool, error) {
	err := s.client.Delete(s.cacheKey(key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, s.wrap("delete", key, err)
	}
	return true, nil
}

// expiration converts ttl to memcached's expiration field, switching to an
// absolute unix timestamp past the relative-seconds window.
func (s *memcachedStore) expiration(ttl time.Duration) int32 {
	seconds := clampTTL(ttl)
	if seconds <= memcachedRelativeLimit {
		return int32(seconds)
	}
	return int32(s.now().Add(ttl).Unix())
}

// cacheKey prefixes key and falls back to a digest when the result is not a
// legal memcached key (too long, or containing spaces or control bytes).
func (s *memcachedStore) cacheKey(key string) string {
	full := s.prefix + ":" + key
	if legalMemcachedKey(full) {
		return full
	}
	return digestKey(s.prefix, key)
}

func (s *memcachedStore) wrap(op, key string, err error) error {
	return cachecore.WrapStoreError(DriverMemcached, op, key, err)
}

func legalMemcachedKey(key string) bool {
	if len(key) > memcachedMaxKeyLen {
		return false
	}
	for i := 0; i < len(key); i++ {
		if key[i] <= ' ' || key[i] == 0x7f {
			return false
		}
	}
	return true
}
