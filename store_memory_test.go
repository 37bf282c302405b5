package memocache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goforj/memocache/cachecore"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newMemoryStore(clock.Now)

	if err := store.Set(ctx, "a", []byte(`{"x":1}`), 2*time.Second); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	body, ok, err := store.Get(ctx, "a")
	if err != nil || !ok || string(body) != `{"x":1}` {
		t.Fatalf("unexpected get: ok=%v err=%v body=%q", ok, err, body)
	}
	if has, _ := store.Has(ctx, "a"); !has {
		t.Fatalf("expected has=true before expiry")
	}

	clock.Advance(3 * time.Second)
	if has, _ := store.Has(ctx, "a"); has {
		t.Fatalf("expected has=false after expiry")
	}
	if _, ok, _ := store.Get(ctx, "a"); ok {
		t.Fatalf("expected miss after expiry")
	}
}

func TestMemoryStoreExpiryBoundary(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newMemoryStore(clock.Now)

	if err := store.Set(ctx, "k", []byte("v"), time.Second); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	clock.Advance(999 * time.Millisecond)
	if has, _ := store.Has(ctx, "k"); !has {
		t.Fatalf("expected entry live just before expiry")
	}
	clock.Advance(time.Millisecond)
	if has, _ := store.Has(ctx, "k"); has {
		t.Fatalf("expected entry expired at the expiry instant")
	}
}

func TestMemoryStoreZeroTTLRemovesEntry(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(newFakeClock().Now).(*memoryStore)

	if err := store.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if has, _ := store.Has(ctx, "k"); has {
		t.Fatalf("expected has=false for zero ttl")
	}
	if _, found := store.cache.Get("k"); found {
		t.Fatalf("expected expired entry evicted on read")
	}
	if removed, _ := store.Delete(ctx, "k"); removed {
		t.Fatalf("expected delete=false once evicted")
	}
}

func TestMemoryStoreForeverSurvivesClock(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newMemoryStore(clock.Now)

	if err := store.Forever(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("forever failed: %v", err)
	}
	clock.Advance(50 * 365 * 24 * time.Hour)
	if body, ok, _ := store.Get(ctx, "k"); !ok || string(body) != "v" {
		t.Fatalf("expected forever entry, ok=%v body=%q", ok, body)
	}
}

func TestMemoryStoreDeleteReportsLiveEntries(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newMemoryStore(clock.Now)

	if removed, _ := store.Delete(ctx, "absent"); removed {
		t.Fatalf("expected false for absent key")
	}
	_ = store.Set(ctx, "live", []byte("v"), time.Minute)
	if removed, _ := store.Delete(ctx, "live"); !removed {
		t.Fatalf("expected true for live key")
	}
	if has, _ := store.Has(ctx, "live"); has {
		t.Fatalf("expected key gone after delete")
	}

	_ = store.Set(ctx, "stale", []byte("v"), time.Second)
	clock.Advance(2 * time.Second)
	if removed, _ := store.Delete(ctx, "stale"); removed {
		t.Fatalf("expected false for an already expired key")
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(nil)
	value := []byte("value")
	_ = store.Set(ctx, "k", value, time.Minute)
	value[0] = 'X'

	body, _, _ := store.Get(ctx, "k")
	if string(body) != "value" {
		t.Fatalf("expected set to copy input, got %q", body)
	}
	body[0] = 'Y'
	again, _, _ := store.Get(ctx, "k")
	if string(again) != "value" {
		t.Fatalf("expected get to return a copy, got %q", again)
	}
}

func TestMemoryStoreEvictKeepsConcurrentWrite(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newMemoryStore(clock.Now).(*memoryStore)

	_ = store.Set(ctx, "k", []byte("old"), time.Second)
	item, _ := store.cache.Get("k")
	stale := item.(cachecore.Payload)
	clock.Advance(2 * time.Second)

	// A fresh write lands between the expiry check and the eviction.
	_ = store.Set(ctx, "k", []byte("new"), time.Minute)
	store.evict("k", stale)

	if body, ok, _ := store.Get(ctx, "k"); !ok || string(body) != "new" {
		t.Fatalf("expected concurrent write kept, ok=%v body=%q", ok, body)
	}
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(nil)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_ = store.Set(ctx, "shared", []byte("v"), time.Millisecond)
				_, _ = store.Has(ctx, "shared")
				_, _, _ = store.Get(ctx, "shared")
				_, _ = store.Delete(ctx, "shared")
			}
		}()
	}
	wg.Wait()
}
