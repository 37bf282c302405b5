// Package cachefake provides an in-memory store that records every call so
// tests can assert how memoized code used its cache.
package cachefake

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goforj/memocache"
)

// Op identifies a store operation for assertions.
type Op string

const (
	OpGet     Op = "get"
	OpHas     Op = "has"
	OpSet     Op = "set"
	OpForever Op = "forever"
	OpDelete  Op = "delete"
)

// Fake is a deterministic in-memory store plus assertion helpers. Its clock
// only moves when Advance is called.
type Fake struct {
	store  *countingStore
	counts map[Op]map[string]int
	mu     sync.Mutex

	clockMu sync.Mutex
	now     time.Time
}

// New creates a Fake backed by the memory store.
func New() *Fake {
	f := &Fake{
		counts: make(map[Op]map[string]int),
		now:    time.Unix(1_700_000_000, 0),
	}
	inner := memocache.NewMemoryStore(context.Background(), memocache.WithClock(f.clock))
	f.store = &countingStore{inner: inner, onCount: f.record}
	return f
}

// Store returns the store to inject into code under test.
func (f *Fake) Store() memocache.Store { return f.store }

// Advance moves the fake clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.clockMu.Lock()
	defer f.clockMu.Unlock()
	f.now = f.now.Add(d)
}

func (f *Fake) clock() time.Time {
	f.clockMu.Lock()
	defer f.clockMu.Unlock()
	return f.now
}

// Reset clears recorded counts.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts = make(map[Op]map[string]int)
}

// AssertCalled verifies key was touched by op the expected number of times.
func (f *Fake) AssertCalled(t *testing.T, op Op, key string, times int) {
	t.Helper()
	if got := f.Count(op, key); got != times {
		t.Fatalf("expected %s %q called %d times, got %d", op, key, times, got)
	}
}

// AssertNotCalled ensures key was never touched by op.
func (f *Fake) AssertNotCalled(t *testing.T, op Op, key string) {
	t.Helper()
	if got := f.Count(op, key); got != 0 {
		t.Fatalf("expected %s %q not called, got %d", op, key, got)
	}
}

// AssertTotal ensures the total call count for an op matches times.
func (f *Fake) AssertTotal(t *testing.T, op Op, times int) {
	t.Helper()
	if got := f.Total(op); got != times {
		t.Fatalf("expected %s total=%d, got %d", op, times, got)
	}
}

// Count returns calls for op+key.
func (f *Fake) Count(op Op, key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[op][key]
}

// Total returns total calls for an op across keys.
func (f *Fake) Total(op Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sum int
	for _, v := range f.counts[op] {
		sum += v
	}
	return sum
}

// Keys returns the distinct keys touched by op.
func (f *Fake) Keys(op Op) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.counts[op]))
	for k := range f.counts[op] {
		keys = append(keys, k)
	}
	return keys
}

func (f *Fake) record(op Op, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counts[op] == nil {
		f.counts[op] = make(map[string]int)
	}
	f.counts[op][key]++
}

// countingStore wraps a Store to record calls.
type countingStore struct {
	inner   memocache.Store
	onCount func(Op, string)
}

func (s *countingStore) Driver() memocache.Driver { return s.inner.Driver() }

func (s *countingStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	s.bump(OpSet, key)
	return s.inner.Set(ctx, key, val, ttl)
}

func (s *countingStore) Forever(ctx context.Context, key string, val []byte) error {
	s.bump(OpForever, key)
	return s.inner.Forever(ctx, key, val)
}

func (s *countingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.bump(OpGet, key)
	return s.inner.Get(ctx, key)
}

func (s *countingStore) Has(ctx context.Context, key string) (bool, error) {
	s.bump(OpHas, key)
	return s.inner.Has(ctx, key)
}

func (s *countingStore) Delete(ctx context.Context, key string) (bool, error) {
	s.bump(OpDelete, key)
	return s.inner.Delete(ctx, key)
}

func (s *countingStore) bump(op Op, key string) {
	if s.onCount != nil {
		s.onCount(op, key)
	}
}
