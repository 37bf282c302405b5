package memocache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goforj/memocache/cachetest"
)

func TestShapingStoreContract(t *testing.T) {
	for _, codec := range []CompressionCodec{CompressionGzip, CompressionSnappy} {
		t.Run(string(codec), func(t *testing.T) {
			clock := newFakeClock()
			store := newShapingStore(newMemoryStore(clock.Now), codec, 0)
			cachetest.RunStoreContract(t, store, cachetest.Options{Advance: clock.Advance})
		})
	}
}

func TestShapingStorePassthroughWhenUnconfigured(t *testing.T) {
	inner := newMemoryStore(nil)
	if got := newShapingStore(inner, CompressionNone, 0); got != inner {
		t.Fatalf("expected inner store returned unchanged")
	}
}

func TestShapingStoreCompressesAtRest(t *testing.T) {
	ctx := context.Background()
	inner := newMemoryStore(nil)
	store := newShapingStore(inner, CompressionSnappy, 0)
	value := []byte(strings.Repeat("a", 512))

	if err := store.Set(ctx, "k", value, time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	raw, _, _ := inner.Get(ctx, "k")
	if !strings.HasPrefix(string(raw), "CMP1s") || len(raw) >= len(value) {
		t.Fatalf("expected compressed payload at rest, got %d bytes", len(raw))
	}
	body, ok, err := store.Get(ctx, "k")
	if err != nil || !ok || string(body) != string(value) {
		t.Fatalf("unexpected get: ok=%v err=%v", ok, err)
	}
}

func TestShapingStoreMaxValueBytes(t *testing.T) {
	ctx := context.Background()
	store := newShapingStore(newMemoryStore(nil), CompressionNone, 4)
	err := store.Forever(ctx, "k", []byte("too long"))
	var se *StoreError
	if !errors.Is(err, ErrValueTooLarge) || !errors.As(err, &se) || se.Op != "forever" {
		t.Fatalf("expected ErrValueTooLarge StoreError, got %v", err)
	}
	if has, _ := store.Has(ctx, "k"); has {
		t.Fatalf("expected nothing stored")
	}
}

func TestShapingStoreCorruptValue(t *testing.T) {
	ctx := context.Background()
	inner := newMemoryStore(nil)
	store := newShapingStore(inner, CompressionGzip, 0)
	_ = inner.Set(ctx, "k", []byte("CMP1gnot gzip"), time.Minute)
	if _, _, err := store.Get(ctx, "k"); !errors.Is(err, ErrCorruptCompression) {
		t.Fatalf("expected ErrCorruptCompression, got %v", err)
	}
}
