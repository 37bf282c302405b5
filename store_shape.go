package memocache

import (
	"context"
	"time"

	"github.com/goforj/memocache/cachecore"
)

// shapingStore compresses values and enforces a size limit on top of any Store.
type shapingStore struct {
	inner Store
	codec CompressionCodec
	max   int
}

func newShapingStore(inner Store, codec CompressionCodec, max int) Store {
	if (codec == CompressionNone || codec == "") && max <= 0 {
		return inner
	}
	return &shapingStore{inner: inner, codec: codec, max: max}
}

func (s *shapingStore) Driver() Driver { return s.inner.Driver() }

func (s *shapingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	encoded, err := encodeValue(s.codec, s.max, value)
	if err != nil {
		return s.wrap("set", key, err)
	}
	return s.inner.Set(ctx, key, encoded, ttl)
}

func (s *shapingStore) Forever(ctx context.Context, key string, value []byte) error {
	encoded, err := encodeValue(s.codec, s.max, value)
	if err != nil {
		return s.wrap("forever", key, err)
	}
	return s.inner.Forever(ctx, key, encoded)
}

func (s *shapingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	body, ok, err := s.inner.Get(ctx, key)
	if err != nil || !ok {
		return body, ok, err
	}
	decoded, err := decodeValue(body)
	if err != nil {
		return nil, false, s.wrap("get", key, err)
	}
	return decoded, true, nil
}

func (s *shapingStore) Has(ctx context.Context, key string) (bool, error) {
	return s.inner.Has(ctx, key)
}

func (s *shapingStore) Delete(ctx context.Context, key string) (bool, error) {
	return s.inner.Delete(ctx, key)
}

func (s *shapingStore) wrap(op, key string, err error) error {
	return cachecore.WrapStoreError(s.inner.Driver(), op, key, err)
}
