package memocache

import (
	"context"
	"sync/atomic"
)

type storeCell struct {
	store Store
}

var defaultStore atomic.Pointer[storeCell]

// DefaultStore returns the process-wide store used by wrappers configured
// without an explicit Store. It starts as an in-memory store.
func DefaultStore() Store {
	for {
		if cell := defaultStore.Load(); cell != nil {
			return cell.store
		}
		cell := &storeCell{store: NewMemoryStore(context.Background())}
		if defaultStore.CompareAndSwap(nil, cell) {
			return cell.store
		}
	}
}

// SetDefaultStore installs store as the process-wide default and returns the
// previous one, or nil when no default had been resolved yet. A nil store
// resets the default to a fresh in-memory store. Wrappers resolve the
// default on every call, so the change applies to wrappers created before it.
//
// Example: share a redis store
//
//	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
//	memocache.SetDefaultStore(memocache.NewRedisStore(ctx, rdb))
func SetDefaultStore(store Store) Store {
	if store == nil {
		store = NewMemoryStore(context.Background())
	}
	previous := defaultStore.Swap(&storeCell{store: store})
	if previous == nil {
		return nil
	}
	return previous.store
}
