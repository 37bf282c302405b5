package memocache

import (
	"context"
	"sync"
	"time"

	"github.com/goforj/memocache/cachecore"
	gocache "github.com/patrickmn/go-cache"
)

// memoryStore keeps payloads in a go-cache map without a janitor. Expiry is
// checked lazily against the store clock on every read.
type memoryStore struct {
	cache *gocache.Cache
	now   Clock
	mu    sync.Mutex
}

func newMemoryStore(clock Clock) Store {
	if clock == nil {
		clock = cachecore.SystemClock
	}
	return &memoryStore{
		cache: gocache.New(gocache.NoExpiration, 0),
		now:   clock,
	}
}

func (s *memoryStore) Driver() Driver {
	return DriverMemory
}

func (s *memoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.cache.Set(key, cachecore.NewPayload(cloneBytes(value), ttl, s.now()), gocache.NoExpiration)
	return nil
}

func (s *memoryStore) Forever(_ context.Context, key string, value []byte) error {
	s.cache.Set(key, cachecore.ForeverPayload(cloneBytes(value)), gocache.NoExpiration)
	return nil
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	payload, ok := s.live(key)
	if !ok {
		return nil, false, nil
	}
	return cloneBytes(payload.Data), true, nil
}

func (s *memoryStore) Has(_ context.Context, key string) (bool, error) {
	_, ok := s.live(key)
	return ok, nil
}

func (s *memoryStore) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.cache.Get(key)
	if !ok {
		return false, nil
	}
	s.cache.Delete(key)
	payload, ok := item.(cachecore.Payload)
	return ok && !payload.Expired(s.now()), nil
}

// live returns the payload for key when present and unexpired, dropping it
// when expired.
func (s *memoryStore) live(key string) (cachecore.Payload, bool) {
	item, ok := s.cache.Get(key)
	if !ok {
		return cachecore.Payload{}, false
	}
	payload, ok := item.(cachecore.Payload)
	if !ok {
		return cachecore.Payload{}, false
	}
	if payload.Expired(s.now()) {
		s.evict(key, payload)
		return cachecore.Payload{}, false
	}
	return payload, true
}

// evict removes key only if it still holds the expired payload we saw, so a
// concurrent Set is never clobbered.
func (s *memoryStore) evict(key string, seen cachecore.Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.cache.Get(key)
	if !ok {
		return
	}
	current, ok := item.(cachecore.Payload)
	if !ok || !current.ExpiresAt.Equal(seen.ExpiresAt) || !current.Expired(s.now()) {
		return
	}
	s.cache.Delete(key)
}

func cloneBytes(value []byte) []byte {
	if value == nil {
		return nil
	}
	clone := make([]byte, len(value))
	copy(clone, value)
	return clone
}
