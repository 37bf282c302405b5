package memocache

// StoreOption mutates StoreConfig when constructing a store.
type StoreOption func(StoreConfig) StoreConfig

// WithPrefix sets the key prefix for shared backends.
func WithPrefix(prefix string) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.Prefix = prefix
		return cfg
	}
}

// WithClock overrides the time source used for locally tracked expiry.
func WithClock(clock Clock) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.Clock = clock
		return cfg
	}
}

// WithRedisClient sets the redis client; required when using DriverRedis.
func WithRedisClient(client RedisClient) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.RedisClient = client
		return cfg
	}
}

// WithNATSKeyValue sets the JetStream key-value bucket; required when using DriverNATS.
func WithNATSKeyValue(kv NATSKeyValue) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.NATSKeyValue = kv
		return cfg
	}
}

// WithNATSBucketTTL stores raw values and defers expiry to the bucket TTL.
func WithNATSBucketTTL(enabled bool) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.NATSBucketTTL = enabled
		return cfg
	}
}

// WithMemcachedAddresses sets the memcached servers.
func WithMemcachedAddresses(addrs ...string) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.MemcachedAddresses = append([]string(nil), addrs...)
		return cfg
	}
}

// WithMemcachedClient injects a memcached client, bypassing address dialing.
func WithMemcachedClient(client MemcachedClient) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.MemcachedClient = client
		return cfg
	}
}

// WithDynamoClient injects a DynamoDB client.
func WithDynamoClient(client DynamoAPI) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.DynamoClient = client
		return cfg
	}
}

// WithDynamoEndpoint points the DynamoDB client at a custom endpoint (e.g. DynamoDB Local).
func WithDynamoEndpoint(endpoint string) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.DynamoEndpoint = endpoint
		return cfg
	}
}

// WithDynamoRegion sets the DynamoDB region.
func WithDynamoRegion(region string) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.DynamoRegion = region
		return cfg
	}
}

// WithDynamoTable sets the DynamoDB table name.
func WithDynamoTable(table string) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.DynamoTable = table
		return cfg
	}
}

// WithSQL configures the SQL driver name, DSN and table.
func WithSQL(driverName, dsn, table string) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.SQLDriverName = driverName
		cfg.SQLDSN = dsn
		cfg.SQLTable = table
		return cfg
	}
}

// WithFileDir sets the directory used by the file driver.
func WithFileDir(dir string) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.FileDir = dir
		return cfg
	}
}

// WithCompression enables value compression.
func WithCompression(codec CompressionCodec) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.Compression = codec
		return cfg
	}
}

// WithMaxValueBytes rejects stored values above limit bytes (after compression).
func WithMaxValueBytes(limit int) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.MaxValueBytes = limit
		return cfg
	}
}

// WithEncryptionKey enables AES-GCM encryption of stored values.
func WithEncryptionKey(key []byte) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.EncryptionKey = append([]byte(nil), key...)
		return cfg
	}
}
