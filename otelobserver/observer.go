// Package otelobserver records memocache calls as OpenTelemetry metrics.
package otelobserver

import (
	"context"
	"time"

	"github.com/goforj/memocache"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Observer implements memocache.Observer on top of a metric.Meter.
type Observer struct {
	calls    metric.Int64Counter
	hits     metric.Int64Counter
	errors   metric.Int64Counter
	duration metric.Float64Histogram
}

var _ memocache.Observer = (*Observer)(nil)

// New creates the instruments on meter.
func New(meter metric.Meter) (*Observer, error) {
	calls, err := meter.Int64Counter(
		"memocache.calls",
		metric.WithDescription("Total number of memoized calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	hits, err := meter.Int64Counter(
		"memocache.hits",
		metric.WithDescription("Memoized calls served from the store"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errs, err := meter.Int64Counter(
		"memocache.errors",
		metric.WithDescription("Memoized calls that returned an error"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"memocache.duration_ms",
		metric.WithDescription("Memoized call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &Observer{
		calls:    calls,
		hits:     hits,
		errors:   errs,
		duration: duration,
	}, nil
}

// OnCacheOp implements memocache.Observer. Keys are not recorded as
// attributes since they are unbounded.
func (o *Observer) OnCacheOp(ctx context.Context, op string, _ string, hit bool, err error, dur time.Duration, driver memocache.Driver) {
	opt := metric.WithAttributes(
		attribute.String("memocache.op", op),
		attribute.String("memocache.driver", string(driver)),
	)
	o.calls.Add(ctx, 1, opt)
	if hit {
		o.hits.Add(ctx, 1, opt)
	}
	if err != nil {
		o.errors.Add(ctx, 1, opt)
	}
	o.duration.Record(ctx, float64(dur)/float64(time.Millisecond), opt)
}
