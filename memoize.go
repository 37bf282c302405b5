package memocache

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goforj/memocache/cachecore"
)

const (
	opMemoize  = "memoize"
	opRemember = "remember"
)

// KeyFunc derives the cache key for one call. args excludes any leading
// context.Context.
type KeyFunc func(objectID uint64, method string, args []any) string

// Options configures a memoized method.
type Options struct {
	// TTL is how long a computed result stays cached. Required, must be > 0.
	TTL time.Duration
	// Key overrides DefaultKey.
	Key KeyFunc
	// Store pins the wrapper to a store. Nil resolves DefaultStore on every call.
	Store Store
	// Codec encodes results. Defaults to JSONCodec.
	Codec Codec
	// Observer receives one event per call.
	Observer Observer
}

// DefaultKey renders the key used when Options.Key is nil:
//
//	cache#{obj_<objectID>}#<method>#<args as a JSON array>
//
// Keys are sensitive to argument order and type, so 1 and "1" differ.
func DefaultKey(objectID uint64, method string, args []any) (string, error) {
	if args == nil {
		args = []any{}
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("%w: key arguments for %s: %w", ErrSerialization, method, err)
	}
	var b strings.Builder
	b.Grow(len("cache#{obj_}##") + 20 + len(method) + len(encoded))
	b.WriteString("cache#{obj_")
	b.WriteString(strconv.FormatUint(objectID, 10))
	b.WriteString("}#")
	b.WriteString(method)
	b.WriteString("#")
	b.Write(encoded)
	return b.String(), nil
}

// call holds what a single memoized lookup needs once its key is known.
type call struct {
	op       string
	ttl      time.Duration
	store    Store
	codec    Codec
	observer Observer
}

func (c call) resolveStore() Store {
	if c.store != nil {
		return c.store
	}
	return DefaultStore()
}

// run serves key from the store, decoding into out on a hit. On a miss it
// runs compute, stores the encoded result and reports hit=false. Errors from
// compute are returned unchanged and nothing is stored.
func (c call) run(ctx context.Context, key string, out any, compute func() (any, error)) (hit bool, err error) {
	store := c.resolveStore()
	if c.observer != nil {
		start := time.Now()
		defer func() {
			c.observer.OnCacheOp(ctx, c.op, key, hit, err, time.Since(start), store.Driver())
		}()
	}

	present, err := store.Has(ctx, key)
	if err != nil {
		return false, err
	}
	if present {
		body, found, err := store.Get(ctx, key)
		if err != nil {
			return false, err
		}
		// A miss here means the entry expired between Has and Get.
		if found {
			if err := c.codec.Unmarshal(body, out); err != nil {
				return false, serializationError(store, "decode", key, err)
			}
			return true, nil
		}
	}

	value, err := compute()
	if err != nil {
		return false, err
	}
	body, err := c.codec.Marshal(value)
	if err != nil {
		return false, serializationError(store, "encode", key, err)
	}
	if err := store.Set(ctx, key, body, c.ttl); err != nil {
		return false, err
	}
	return false, nil
}

func serializationError(store Store, op, key string, err error) error {
	return &cachecore.StoreError{
		Driver: store.Driver(),
		Op:     op,
		Key:    key,
		Err:    fmt.Errorf("%w: %w", ErrSerialization, err),
	}
}

// memoizer binds a call to one owner and method.
type memoizer struct {
	call
	method   string
	objectID func() uint64
	key      KeyFunc
}

func newMemoizer[T any](owner *T, method string, hasFn bool, opts Options) (*memoizer, error) {
	if owner == nil {
		return nil, configError("owner must be a non-nil pointer")
	}
	if reflect.TypeFor[T]().Size() == 0 {
		return nil, configError("owner type %s has zero size and cannot carry an identity", reflect.TypeFor[T]())
	}
	if method == "" {
		return nil, configError("method name is required")
	}
	if !hasFn {
		return nil, configError("%s: function is nil", method)
	}
	if opts.TTL <= 0 {
		return nil, configError("%s: ttl must be positive, got %s", method, opts.TTL)
	}
	codec := opts.Codec
	if codec == nil {
		codec = JSONCodec
	}
	return &memoizer{
		call: call{
			op:       opMemoize,
			ttl:      opts.TTL,
			store:    opts.Store,
			codec:    codec,
			observer: opts.Observer,
		},
		method:   method,
		objectID: sync.OnceValue(func() uint64 { return identify(objectIDs, owner) }),
		key:      opts.Key,
	}, nil
}

func (m *memoizer) cacheKey(args []any) (string, error) {
	id := m.objectID()
	if m.key != nil {
		return m.key(id, m.method, args), nil
	}
	return DefaultKey(id, m.method, args)
}

// invoke derives the key for args and runs the call, returning the cached or
// freshly computed result.
func invoke[R any](ctx context.Context, m *memoizer, args []any, compute func() (R, error)) (R, error) {
	var result R
	key, err := m.cacheKey(args)
	if err != nil {
		return result, err
	}
	hit, err := m.run(ctx, key, &result, func() (any, error) {
		value, err := compute()
		result = value
		return value, err
	})
	if hit {
		return result, nil
	}
	return result, err
}

// Wrap0 memoizes a method without arguments.
//
// Example: memoize a method
//
//	type Pricing struct {
//		quote func(context.Context) (float64, error)
//	}
//	p := &Pricing{}
//	p.quote, _ = memocache.Wrap0(p, "quote", p.fetchQuote, memocache.Options{TTL: time.Minute})
func Wrap0[T, R any](owner *T, method string, fn func(context.Context) (R, error), opts Options) (func(context.Context) (R, error), error) {
	m, err := newMemoizer(owner, method, fn != nil, opts)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) (R, error) {
		return invoke(ctx, m, nil, func() (R, error) { return fn(ctx) })
	}, nil
}

// Wrap1 memoizes a method with one argument.
func Wrap1[T, A, R any](owner *T, method string, fn func(context.Context, A) (R, error), opts Options) (func(context.Context, A) (R, error), error) {
	m, err := newMemoizer(owner, method, fn != nil, opts)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, a A) (R, error) {
		return invoke(ctx, m, []any{a}, func() (R, error) { return fn(ctx, a) })
	}, nil
}

// Wrap2 memoizes a method with two arguments.
func Wrap2[T, A, B, R any](owner *T, method string, fn func(context.Context, A, B) (R, error), opts Options) (func(context.Context, A, B) (R, error), error) {
	m, err := newMemoizer(owner, method, fn != nil, opts)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, a A, b B) (R, error) {
		return invoke(ctx, m, []any{a, b}, func() (R, error) { return fn(ctx, a, b) })
	}, nil
}

// MustWrap0 is Wrap0 but panics on a configuration error.
func MustWrap0[T, R any](owner *T, method string, fn func(context.Context) (R, error), opts Options) func(context.Context) (R, error) {
	return must(Wrap0(owner, method, fn, opts))
}

// MustWrap1 is Wrap1 but panics on a configuration error.
func MustWrap1[T, A, R any](owner *T, method string, fn func(context.Context, A) (R, error), opts Options) func(context.Context, A) (R, error) {
	return must(Wrap1(owner, method, fn, opts))
}

// MustWrap2 is Wrap2 but panics on a configuration error.
func MustWrap2[T, A, B, R any](owner *T, method string, fn func(context.Context, A, B) (R, error), opts Options) func(context.Context, A, B) (R, error) {
	return must(Wrap2(owner, method, fn, opts))
}

func must[F any](fn F, err error) F {
	if err != nil {
		panic(err)
	}
	return fn
}

// Remember returns the value cached under key, or computes and stores it for
// ttl. A nil store uses DefaultStore.
//
// Example: remember a lookup
//
//	settings, err := memocache.Remember(ctx, store, "settings:alerts", time.Minute,
//		func(ctx context.Context) (Settings, error) {
//			return loadSettings(ctx)
//		})
func Remember[T any](ctx context.Context, store Store, key string, ttl time.Duration, fn func(context.Context) (T, error)) (T, error) {
	return RememberWith(ctx, key, fn, Options{TTL: ttl, Store: store})
}

// RememberWith is Remember with a codec and observer taken from opts.
// opts.Key is ignored.
func RememberWith[T any](ctx context.Context, key string, fn func(context.Context) (T, error), opts Options) (T, error) {
	var result T
	switch {
	case key == "":
		return result, configError("remember: key is required")
	case fn == nil:
		return result, configError("remember %q: function is nil", key)
	case opts.TTL <= 0:
		return result, configError("remember %q: ttl must be positive, got %s", key, opts.TTL)
	}
	codec := opts.Codec
	if codec == nil {
		codec = JSONCodec
	}
	c := call{op: opRemember, ttl: opts.TTL, store: opts.Store, codec: codec, observer: opts.Observer}
	hit, err := c.run(ctx, key, &result, func() (any, error) {
		value, err := fn(ctx)
		result = value
		return value, err
	})
	if hit {
		return result, nil
	}
	return result, err
}

func configError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}
