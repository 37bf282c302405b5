package memocache

import "context"

// NewStore returns a concrete store for the requested driver.
// Construction failures never return nil: the returned store reports the
// failure as a StoreError from every call.
//
// Example: select driver explicitly
//
//	ctx := context.Background()
//	store := memocache.NewStore(ctx, memocache.StoreConfig{
//		Driver: memocache.DriverMemory,
//	})
//	fmt.Println(store.Driver()) // memory
func NewStore(ctx context.Context, cfg StoreConfig) Store {
	cfg = cfg.withDefaults()
	store, err := buildStore(ctx, cfg)
	if err != nil {
		return &errorStore{driver: cfg.Driver, err: err}
	}
	store, err = newEncryptingStore(store, cfg.EncryptionKey)
	if err != nil {
		return &errorStore{driver: cfg.Driver, err: err}
	}
	return newShapingStore(store, cfg.Compression, cfg.MaxValueBytes)
}

func buildStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	switch cfg.Driver {
	case DriverNull:
		return newNullStore(), nil
	case DriverRedis:
		return newRedisStore(cfg.RedisClient, cfg.Prefix), nil
	case DriverNATS:
		return newNATSStore(cfg.NATSKeyValue, cfg.Prefix, cfg.NATSBucketTTL, cfg.Clock), nil
	case DriverMemcached:
		return newMemcachedStore(cfg), nil
	case DriverDynamo:
		return newDynamoStore(ctx, cfg)
	case DriverSQL:
		return newSQLStore(ctx, cfg)
	case DriverFile:
		return newFileStore(cfg.FileDir, cfg.Clock), nil
	default:
		return newMemoryStore(cfg.Clock), nil
	}
}

// NewStoreWith builds a store using a driver and a set of functional options.
//
// Example: redis store (options)
//
//	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
//	store := memocache.NewStoreWith(ctx, memocache.DriverRedis,
//		memocache.WithRedisClient(rdb),
//		memocache.WithPrefix("billing"),
//	)
//	fmt.Println(store.Driver()) // redis
func NewStoreWith(ctx context.Context, driver Driver, opts ...StoreOption) Store {
	cfg := StoreConfig{Driver: driver}
	for _, opt := range opts {
		cfg = opt(cfg)
	}
	return NewStore(ctx, cfg)
}

// NewMemoryStore is a convenience for an in-process store.
func NewMemoryStore(ctx context.Context, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverMemory, opts...)
}

// NewRedisStore is a convenience for a redis-backed store. The client is required.
func NewRedisStore(ctx context.Context, client RedisClient, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverRedis, append([]StoreOption{WithRedisClient(client)}, opts...)...)
}

// NewNATSStore is a convenience for a JetStream key-value store.
func NewNATSStore(ctx context.Context, kv NATSKeyValue, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverNATS, append([]StoreOption{WithNATSKeyValue(kv)}, opts...)...)
}

// NewMemcachedStore is a convenience for a memcached-backed store.
func NewMemcachedStore(ctx context.Context, addrs []string, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverMemcached, append([]StoreOption{WithMemcachedAddresses(addrs...)}, opts...)...)
}

// NewDynamoStore is a convenience for a DynamoDB-backed store.
func NewDynamoStore(ctx context.Context, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverDynamo, opts...)
}

// NewSQLStore is a convenience for a database/sql-backed store.
//
// Example: sqlite
//
//	store := memocache.NewSQLStore(ctx, "sqlite", "file:memo.db", "memo_entries")
func NewSQLStore(ctx context.Context, driverName, dsn, table string, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverSQL, append([]StoreOption{WithSQL(driverName, dsn, table)}, opts...)...)
}

// NewFileStore is a convenience for a filesystem-backed store.
func NewFileStore(ctx context.Context, dir string, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverFile, append([]StoreOption{WithFileDir(dir)}, opts...)...)
}

// NewNullStore returns a store that never retains anything. Installing it as
// the default store disables memoization.
func NewNullStore() Store {
	return newNullStore()
}
