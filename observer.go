package memocache

import (
	"context"
	"log/slog"
	"time"
)

// Observer receives one event per memoized call once it completes.
// op is "memoize" for wrapped methods and "remember" for Remember. hit is
// true when the result came from the store.
type Observer interface {
	OnCacheOp(ctx context.Context, op string, key string, hit bool, err error, dur time.Duration, driver Driver)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, op string, key string, hit bool, err error, dur time.Duration, driver Driver)

// OnCacheOp implements Observer.
func (f ObserverFunc) OnCacheOp(ctx context.Context, op string, key string, hit bool, err error, dur time.Duration, driver Driver) {
	if f == nil {
		return
	}
	f(ctx, op, key, hit, err, dur, driver)
}

// Observers fans an event out to each non-nil observer in order.
func Observers(observers ...Observer) Observer {
	return ObserverFunc(func(ctx context.Context, op string, key string, hit bool, err error, dur time.Duration, driver Driver) {
		for _, o := range observers {
			if o != nil {
				o.OnCacheOp(ctx, op, key, hit, err, dur, driver)
			}
		}
	})
}

// LogObserver logs each call at debug level, or warn when it failed.
// A nil logger uses slog.Default().
func LogObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return ObserverFunc(func(ctx context.Context, op string, key string, hit bool, err error, dur time.Duration, driver Driver) {
		attrs := []slog.Attr{
			slog.String("op", op),
			slog.String("key", key),
			slog.Bool("hit", hit),
			slog.String("driver", string(driver)),
			slog.Duration("dur", dur),
		}
		if err != nil {
			attrs = append(attrs, slog.Any("err", err))
			logger.LogAttrs(ctx, slog.LevelWarn, "memocache call failed", attrs...)
			return
		}
		logger.LogAttrs(ctx, slog.LevelDebug, "memocache call", attrs...)
	})
}
