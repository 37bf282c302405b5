package memocache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goforj/memocache/cachetest"
	"github.com/redis/go-redis/v9"
)

// stubRedisClient mimics the redis commands the store issues, with native
// expiry driven by a fake clock.
type stubRedisClient struct {
	mu      sync.Mutex
	now     func() time.Time
	store   map[string]string
	expires map[string]time.Time
	lastTTL map[string]time.Duration

	getErr    error
	setErr    error
	existsErr error
	delErr    error
}

func newStubRedisClient(now func() time.Time) *stubRedisClient {
	return &stubRedisClient{
		now:     now,
		store:   make(map[string]string),
		expires: make(map[string]time.Time),
		lastTTL: make(map[string]time.Duration),
	}
}

func (c *stubRedisClient) expireLocked(key string) {
	if exp, ok := c.expires[key]; ok && !c.now().Before(exp) {
		delete(c.store, key)
		delete(c.expires, key)
	}
}

func (c *stubRedisClient) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx, "get", key)
	if c.getErr != nil {
		cmd.SetErr(c.getErr)
		return cmd
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked(key)
	val, ok := c.store[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(val)
	return cmd
}

func (c *stubRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx, "set", key)
	if c.setErr != nil {
		cmd.SetErr(c.setErr)
		return cmd
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		c.store[key] = string(v)
	case string:
		c.store[key] = v
	default:
		cmd.SetErr(errors.New("unsupported value type"))
		return cmd
	}
	c.lastTTL[key] = expiration
	if expiration > 0 {
		c.expires[key] = c.now().Add(expiration)
	} else {
		delete(c.expires, key)
	}
	cmd.SetVal("OK")
	return cmd
}

func (c *stubRedisClient) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx, "exists")
	if c.existsErr != nil {
		cmd.SetErr(c.existsErr)
		return cmd
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for _, key := range keys {
		c.expireLocked(key)
		if _, ok := c.store[key]; ok {
			n++
		}
	}
	cmd.SetVal(n)
	return cmd
}

func (c *stubRedisClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx, "del")
	if c.delErr != nil {
		cmd.SetErr(c.delErr)
		return cmd
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for _, key := range keys {
		c.expireLocked(key)
		if _, ok := c.store[key]; ok {
			delete(c.store, key)
			delete(c.expires, key)
			n++
		}
	}
	cmd.SetVal(n)
	return cmd
}

func TestRedisStoreContract(t *testing.T) {
	clock := newFakeClock()
	store := newRedisStore(newStubRedisClient(clock.Now), "pfx")
	cachetest.RunStoreContract(t, store, cachetest.Options{Advance: clock.Advance})
}

func TestRedisStoreNilClientErrors(t *testing.T) {
	store := newRedisStore(nil, "")
	ctx := context.Background()

	checks := map[string]error{}
	_, _, checks["get"] = store.Get(ctx, "k")
	_, checks["has"] = store.Has(ctx, "k")
	checks["set"] = store.Set(ctx, "k", []byte("v"), time.Second)
	checks["forever"] = store.Forever(ctx, "k", []byte("v"))
	_, checks["delete"] = store.Delete(ctx, "k")

	for op, err := range checks {
		if !errors.Is(err, ErrStoreUnavailable) {
			t.Fatalf("%s: expected ErrStoreUnavailable, got %v", op, err)
		}
		var se *StoreError
		if !errors.As(err, &se) || se.Driver != DriverRedis || se.Op != op {
			t.Fatalf("%s: expected redis StoreError, got %#v", op, err)
		}
	}
}

func TestRedisStoreSetCommands(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	client := newStubRedisClient(clock.Now)
	store := newRedisStore(client, "pfx")

	if err := store.Set(ctx, "a", []byte("1"), 60*time.Second); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if got := client.lastTTL["pfx:a"]; got != 60*time.Second {
		t.Fatalf("expected SET with 60s expiry, got %v", got)
	}
	if err := store.Forever(ctx, "b", []byte("2")); err != nil {
		t.Fatalf("forever failed: %v", err)
	}
	if got, ok := client.lastTTL["pfx:b"]; !ok || got != 0 {
		t.Fatalf("expected SET without expiry, got %v", got)
	}

	// A zero ttl removes an existing key instead of sending an invalid expiry.
	if err := store.Set(ctx, "a", []byte("3"), 0); err != nil {
		t.Fatalf("zero ttl set failed: %v", err)
	}
	if _, ok := client.store["pfx:a"]; ok {
		t.Fatalf("expected key removed for zero ttl")
	}
}

func TestRedisStoreMissIsNotDecoded(t *testing.T) {
	ctx := context.Background()
	store := newRedisStore(newStubRedisClient(time.Now), "pfx")
	body, ok, err := store.Get(ctx, "missing")
	if err != nil || ok || body != nil {
		t.Fatalf("expected clean miss, got ok=%v body=%q err=%v", ok, body, err)
	}
}

func TestRedisStoreErrorPropagation(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	client := newStubRedisClient(time.Now)
	client.getErr = boom
	client.setErr = boom
	client.existsErr = boom
	client.delErr = boom
	store := newRedisStore(client, "pfx")

	if _, _, err := store.Get(ctx, "k"); !errors.Is(err, boom) {
		t.Fatalf("expected get error, got %v", err)
	}
	if _, err := store.Has(ctx, "k"); !errors.Is(err, boom) {
		t.Fatalf("expected has error, got %v", err)
	}
	if err := store.Set(ctx, "k", []byte("v"), time.Second); !errors.Is(err, boom) {
		t.Fatalf("expected set error, got %v", err)
	}
	if err := store.Set(ctx, "k", []byte("v"), 0); !errors.Is(err, boom) {
		t.Fatalf("expected zero ttl set to surface del error, got %v", err)
	}
	_, err := store.Delete(ctx, "k")
	var se *StoreError
	if !errors.As(err, &se) || se.Key != "k" || se.Op != "delete" {
		t.Fatalf("expected delete StoreError, got %v", err)
	}
}

func TestRedisStoreGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := newRedisStore(newStubRedisClient(time.Now), "p")
	if err := store.Set(ctx, "k", []byte("value"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	body, ok, err := store.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	body[0] = 'X'
	again, _, _ := store.Get(ctx, "k")
	if string(again) != "value" {
		t.Fatalf("expected stored value unchanged, got %q", again)
	}
}
