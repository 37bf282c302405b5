package memocache

import "github.com/goforj/memocache/cachecore"

// StoreError reports a backend failure; see cachecore.StoreError.
type StoreError = cachecore.StoreError

var (
	ErrConfiguration    = cachecore.ErrConfiguration
	ErrSerialization    = cachecore.ErrSerialization
	ErrStoreUnavailable = cachecore.ErrStoreUnavailable
)
