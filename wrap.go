package memocache

import (
	"context"
	"reflect"
)

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
)

// Wrap memoizes fn, a method of owner, and returns a function of the same
// type. fn must return (R, error). A leading context.Context parameter is
// passed to the store and left out of the key; every other argument,
// including each variadic element, is part of it.
//
// Example: memoize any signature
//
//	type Repo struct{ search func(context.Context, string, ...string) ([]Hit, error) }
//	r := &Repo{}
//	r.search, err = memocache.Wrap(r, "search", r.runSearch, memocache.Options{TTL: time.Minute})
func Wrap[T any, F any](owner *T, method string, fn F, opts Options) (F, error) {
	var zero F
	ft := reflect.TypeFor[F]()
	if ft.Kind() != reflect.Func {
		return zero, configError("%s: %s is not a function", method, ft)
	}
	fv := reflect.ValueOf(fn)
	m, err := newMemoizer(owner, method, !fv.IsNil(), opts)
	if err != nil {
		return zero, err
	}
	if ft.NumOut() != 2 || ft.Out(1) != errorType {
		return zero, configError("%s: %s must return (result, error)", method, ft)
	}
	withContext := ft.NumIn() > 0 && ft.In(0) == contextType
	resultType := ft.Out(0)

	impl := func(in []reflect.Value) []reflect.Value {
		ctx := context.Background()
		keyed := in
		if withContext {
			if c, ok := in[0].Interface().(context.Context); ok && c != nil {
				ctx = c
			}
			keyed = in[1:]
		}
		args := keyArgs(keyed, ft.IsVariadic())

		key, err := m.cacheKey(args)
		if err != nil {
			return []reflect.Value{reflect.Zero(resultType), errorValue(err)}
		}
		out := reflect.New(resultType)
		computed := reflect.Zero(resultType)
		hit, err := m.run(ctx, key, out.Interface(), func() (any, error) {
			var results []reflect.Value
			if ft.IsVariadic() {
				results = fv.CallSlice(in)
			} else {
				results = fv.Call(in)
			}
			computed = results[0]
			if results[1].IsNil() {
				return computed.Interface(), nil
			}
			return computed.Interface(), results[1].Interface().(error)
		})
		if hit {
			return []reflect.Value{out.Elem(), errorValue(nil)}
		}
		return []reflect.Value{computed, errorValue(err)}
	}
	return reflect.MakeFunc(ft, impl).Interface().(F), nil
}

// MustWrap is Wrap but panics on a configuration error.
func MustWrap[T any, F any](owner *T, method string, fn F, opts Options) F {
	return must(Wrap(owner, method, fn, opts))
}

// keyArgs flattens call arguments into key arguments, spreading the trailing
// slice of a variadic call.
func keyArgs(in []reflect.Value, variadic bool) []any {
	args := make([]any, 0, len(in))
	for i, v := range in {
		if variadic && i == len(in)-1 {
			for j := 0; j < v.Len(); j++ {
				args = append(args, v.Index(j).Interface())
			}
			continue
		}
		args = append(args, v.Interface())
	}
	return args
}

func errorValue(err error) reflect.Value {
	if err == nil {
		return reflect.Zero(errorType)
	}
	return reflect.ValueOf(&err).Elem()
}
