package memocache

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"time"

	"github.com/goforj/memocache/cachecore"
)

const (
	defaultCachePrefix = "memo"
	defaultDynamoTable = "memocache_entries"
	defaultSQLTable    = "memocache_entries"
)

func defaultFileDir() string {
	return filepath.Join(os.TempDir(), "memocache-file")
}

// StoreConfig controls how a Store is constructed.
type StoreConfig struct {
	Driver Driver

	// Prefix namespaces keys on shared backends (redis, nats, memcached, sql, dynamodb).
	Prefix string

	// Clock drives expiry for stores that track it locally. Defaults to time.Now.
	Clock Clock

	// RedisClient is required when DriverRedis is used.
	RedisClient RedisClient

	// NATSKeyValue is required when DriverNATS is used.
	NATSKeyValue NATSKeyValue
	// NATSBucketTTL stores raw values and relies on the bucket's own TTL.
	NATSBucketTTL bool

	// MemcachedClient overrides the client built from MemcachedAddresses.
	MemcachedClient    MemcachedClient
	MemcachedAddresses []string

	DynamoClient   DynamoAPI
	DynamoEndpoint string
	DynamoRegion   string
	DynamoTable    string

	SQLDriverName string
	SQLDSN        string
	SQLTable      string

	// FileDir controls where the file driver writes entries.
	FileDir string

	Compression   CompressionCodec
	MaxValueBytes int
	EncryptionKey []byte
}

func (c StoreConfig) withDefaults() StoreConfig {
	if c.Driver == "" {
		c.Driver = DriverMemory
	}
	if c.Prefix == "" {
		c.Prefix = defaultCachePrefix
	}
	if c.Clock == nil {
		c.Clock = cachecore.SystemClock
	}
	if c.FileDir == "" {
		c.FileDir = defaultFileDir()
	}
	if c.DynamoRegion == "" {
		c.DynamoRegion = "us-east-1"
	}
	if c.DynamoTable == "" {
		c.DynamoTable = defaultDynamoTable
	}
	if c.SQLTable == "" {
		c.SQLTable = defaultSQLTable
	}
	if c.Compression == "" {
		c.Compression = CompressionNone
	}
	return c
}

// clampTTL converts a ttl to whole seconds for backends with second
// granularity, rounding up so a short ttl never becomes "no expiry".
func clampTTL(ttl time.Duration) int64 {
	seconds := int64(ttl / time.Second)
	if ttl%time.Second != 0 {
		seconds++
	}
	return seconds
}

// digestKey is the fixed-length stand-in for a key a backend cannot store
// verbatim.
func digestKey(prefix, key string) string {
	sum := sha256.Sum256([]byte(key))
	digest := hex.EncodeToString(sum[:])
	if prefix == "" {
		return "h:" + digest
	}
	return prefix + ":h:" + digest
}

// boundedKey prefixes key and falls back to digestKey once the result is
// longer than limit bytes.
func boundedKey(prefix, key string, limit int) string {
	full := key
	if prefix != "" {
		full = prefix + ":" + key
	}
	if len(full) <= limit {
		return full
	}
	return digestKey(prefix, key)
}
