package cachecore

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks a memoization registration that can never work.
	ErrConfiguration = errors.New("memocache: invalid configuration")
	// ErrSerialization marks a value or argument that cannot round-trip through the codec.
	ErrSerialization = errors.New("memocache: serialization failed")
	// ErrStoreUnavailable is returned by stores constructed without their client.
	ErrStoreUnavailable = errors.New("memocache: store client unavailable")
)

// StoreError reports a failure talking to a backend. It is distinct from a
// miss, which is never an error.
type StoreError struct {
	Driver Driver
	Op     string
	Key    string
	Err    error
}

func (e *StoreError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("memocache: %s %s: %v", e.Driver, e.Op, e.Err)
	}
	return fmt.Sprintf("memocache: %s %s %q: %v", e.Driver, e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// WrapStoreError wraps err in a StoreError unless it is nil or already one.
func WrapStoreError(driver Driver, op, key string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Driver: driver, Op: op, Key: key, Err: err}
}
