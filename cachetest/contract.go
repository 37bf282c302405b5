package cachetest

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/goforj/memocache/cachecore"
)

// Options configures shared store contract checks.
type Options struct {
	// CaseName is used to namespace keys. Defaults to t.Name().
	CaseName string
	// NullSemantics expects every read to miss, as with the null store.
	NullSemantics bool
	// SkipCloneCheck disables the "get returns a cloned value" assertion.
	SkipCloneCheck bool
	// TTL controls the expiry duration used in TTL tests.
	TTL time.Duration
	// TTLWait is how long the harness waits for expiry to occur in real time.
	TTLWait time.Duration
	// Advance moves the store's clock forward. When set, expiry is checked
	// against the simulated clock instead of sleeping.
	Advance func(time.Duration)
}

// Store is the minimal contract required by RunStoreContract.
type Store = cachecore.Store

// RunStoreContract runs a backend-agnostic store contract suite.
func RunStoreContract(t *testing.T, store Store, opts Options) {
	t.Helper()

	caseName := opts.CaseName
	if caseName == "" {
		caseName = t.Name()
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 50 * time.Millisecond
	}
	wait := opts.TTLWait
	if wait <= 0 {
		wait = 120 * time.Millisecond
	}

	ctx := context.Background()
	key := func(s string) string {
		return sanitize(caseName) + ":" + s
	}

	// Never written.
	if _, ok, err := store.Get(ctx, key("missing")); err != nil || ok {
		t.Fatalf("expected miss for unwritten key; ok=%v err=%v", ok, err)
	}
	if ok, err := store.Has(ctx, key("missing")); err != nil || ok {
		t.Fatalf("expected has=false for unwritten key; ok=%v err=%v", ok, err)
	}

	// Set/Get round-trip.
	if err := store.Set(ctx, key("alpha"), []byte("value"), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	body, ok, err := store.Get(ctx, key("alpha"))
	if err != nil {
		t.Fatalf("get failed: ok=%v err=%v", ok, err)
	}
	if opts.NullSemantics {
		if ok {
			t.Fatalf("expected miss for null semantics")
		}
	} else {
		if !ok || string(body) != "value" {
			t.Fatalf("unexpected get result: ok=%v body=%q", ok, string(body))
		}
		if has, err := store.Has(ctx, key("alpha")); err != nil || !has {
			t.Fatalf("expected has=true after set; has=%v err=%v", has, err)
		}
		if !opts.SkipCloneCheck {
			body[0] = 'X'
			body2, ok2, err2 := store.Get(ctx, key("alpha"))
			if err2 != nil || !ok2 || string(body2) != "value" {
				t.Fatalf("expected stored value unchanged, got ok=%v body=%q err=%v", ok2, string(body2), err2)
			}
		}
	}

	// Overwrite.
	if err := store.Set(ctx, key("alpha"), []byte("second"), time.Minute); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	if body, ok, err := store.Get(ctx, key("alpha")); err != nil {
		t.Fatalf("get after overwrite failed: %v", err)
	} else if !opts.NullSemantics && (!ok || string(body) != "second") {
		t.Fatalf("expected overwritten value, got ok=%v body=%q", ok, string(body))
	}

	// A non-positive ttl is already expired.
	if err := store.Set(ctx, key("zero"), []byte("v"), 0); err != nil {
		t.Fatalf("set zero ttl failed: %v", err)
	}
	if ok, err := store.Has(ctx, key("zero")); err != nil || ok {
		t.Fatalf("expected has=false for zero ttl; ok=%v err=%v", ok, err)
	}
	if _, ok, err := store.Get(ctx, key("zero")); err != nil || ok {
		t.Fatalf("expected miss for zero ttl; ok=%v err=%v", ok, err)
	}
	if removed, err := store.Delete(ctx, key("zero")); err != nil || removed {
		t.Fatalf("expected nothing to delete for zero ttl; removed=%v err=%v", removed, err)
	}

	// TTL expiry.
	if err := store.Set(ctx, key("ttl"), []byte("v"), ttl); err != nil {
		t.Fatalf("set ttl failed: %v", err)
	}
	if opts.Advance != nil {
		opts.Advance(ttl)
		if ok, err := store.Has(ctx, key("ttl")); err != nil || ok {
			t.Fatalf("expected has=false at expiry; ok=%v err=%v", ok, err)
		}
	} else if err := waitForMiss(ctx, store, key("ttl"), wait); err != nil {
		t.Fatalf("expected ttl expiry: %v", err)
	}
	if removed, err := store.Delete(ctx, key("ttl")); err != nil || removed {
		t.Fatalf("expected expired key gone; removed=%v err=%v", removed, err)
	}

	// Forever outlives any ttl.
	if err := store.Forever(ctx, key("forever"), []byte("kept")); err != nil {
		t.Fatalf("forever failed: %v", err)
	}
	if opts.Advance != nil {
		opts.Advance(100 * 365 * 24 * time.Hour)
	}
	if body, ok, err := store.Get(ctx, key("forever")); err != nil {
		t.Fatalf("get forever failed: %v", err)
	} else if !opts.NullSemantics && (!ok || string(body) != "kept") {
		t.Fatalf("expected forever value, got ok=%v body=%q", ok, string(body))
	}

	// Delete.
	if removed, err := store.Delete(ctx, key("absent")); err != nil || removed {
		t.Fatalf("expected delete of absent key to report false; removed=%v err=%v", removed, err)
	}
	removed, err := store.Delete(ctx, key("forever"))
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if removed == opts.NullSemantics {
		t.Fatalf("unexpected delete result removed=%v", removed)
	}
	if ok, err := store.Has(ctx, key("forever")); err != nil || ok {
		t.Fatalf("expected key deleted; ok=%v err=%v", ok, err)
	}
}

func waitForMiss(ctx context.Context, store Store, key string, wait time.Duration) error {
	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		ok, err := store.Has(ctx, key)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	ok, err := store.Has(ctx, key)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("key %q still present after %s", key, wait)
	}
	return nil
}

func sanitize(s string) string {
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
