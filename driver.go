package memocache

import "github.com/goforj/memocache/cachecore"

// Driver identifies cache backend.
type Driver = cachecore.Driver

const (
	DriverNull      = cachecore.DriverNull
	DriverFile      = cachecore.DriverFile
	DriverMemory    = cachecore.DriverMemory
	DriverMemcached = cachecore.DriverMemcached
	DriverDynamo    = cachecore.DriverDynamo
	DriverSQL       = cachecore.DriverSQL
	DriverRedis     = cachecore.DriverRedis
	DriverNATS      = cachecore.DriverNATS
)

// Store is the memoization backend contract. See cachecore.Store.
type Store = cachecore.Store

// Clock returns the current time for stores that track expiry locally.
type Clock = cachecore.Clock
