// Package promobserver exports memocache calls as Prometheus metrics.
package promobserver

import (
	"context"
	"time"

	"github.com/goforj/memocache"
	"github.com/prometheus/client_golang/prometheus"
)

// Observer implements memocache.Observer with Prometheus collectors labelled
// by op and driver.
type Observer struct {
	calls    *prometheus.CounterVec
	hits     *prometheus.CounterVec
	errors   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var _ memocache.Observer = (*Observer)(nil)

var labels = []string{"op", "driver"}

// New builds the collectors and registers them with reg. A nil reg skips
// registration.
func New(reg prometheus.Registerer) (*Observer, error) {
	o := &Observer{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "memocache_calls_total",
			Help: "Total number of memoized calls",
		}, labels),
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "memocache_hits_total",
			Help: "Memoized calls served from the store",
		}, labels),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "memocache_errors_total",
			Help: "Memoized calls that returned an error",
		}, labels),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "memocache_call_duration_seconds",
			Help:    "Memoized call duration",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, labels),
	}
	if reg == nil {
		return o, nil
	}
	for _, c := range []prometheus.Collector{o.calls, o.hits, o.errors, o.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// OnCacheOp implements memocache.Observer.
func (o *Observer) OnCacheOp(_ context.Context, op string, _ string, hit bool, err error, dur time.Duration, driver memocache.Driver) {
	values := []string{op, string(driver)}
	o.calls.WithLabelValues(values...).Inc()
	if hit {
		o.hits.WithLabelValues(values...).Inc()
	}
	if err != nil {
		o.errors.WithLabelValues(values...).Inc()
	}
	o.duration.WithLabelValues(values...).Observe(dur.Seconds())
}
