// Package cachecore holds the backend-agnostic contracts shared by memocache
// stores, decorators and test harnesses.
package cachecore

import (
	"context"
	"time"
)

// Store is the capability set every memoization backend provides.
//
// A plain miss is never an error: Get reports (nil, false, nil) and Has
// reports false. Set always installs a finite expiry and treats ttl <= 0 as
// already expired. Forever installs an entry that never expires. Has removes
// an expired entry it comes across. Delete removes the key and reports whether
// a live entry was removed; dropping an already expired entry reports false,
// matching backends with native expiry.
type Store interface {
	Driver() Driver
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Forever(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Has(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) (bool, error)
}

// Clock returns the current time. Stores that track expiry themselves read
// time through a Clock so tests can drive it.
type Clock func() time.Time

// SystemClock is the wall clock.
func SystemClock() time.Time { return time.Now() }
