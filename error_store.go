package memocache

import (
	"context"
	"time"

	"github.com/goforj/memocache/cachecore"
)

// errorStore is returned when a driver fails to initialize; it preserves the
// driver identity while surfacing the construction error on every call.
type errorStore struct {
	driver Driver
	err    error
}

func (e *errorStore) Driver() Driver { return e.driver }

func (e *errorStore) Set(_ context.Context, key string, _ []byte, _ time.Duration) error {
	return e.fail("set", key)
}

func (e *errorStore) Forever(_ context.Context, key string, _ []byte) error {
	return e.fail("forever", key)
}

func (e *errorStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	return nil, false, e.fail("get", key)
}

func (e *errorStore) Has(_ context.Context, key string) (bool, error) {
	return false, e.fail("has", key)
}

func (e *errorStore) Delete(_ context.Context, key string) (bool, error) {
	return false, e.fail("delete", key)
}

func (e *errorStore) fail(op, key string) error {
	return cachecore.WrapStoreError(e.driver, op, key, e.err)
}
