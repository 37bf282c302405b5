// Package cachetest provides reusable contract tests for memocache.Store
// implementations.
//
// Stores with an injectable clock should pass Options.Advance so expiry is
// checked without sleeping:
//
//	func TestMemoryStoreContract(t *testing.T) {
//		now := time.Unix(1_700_000_000, 0)
//		store := memocache.NewMemoryStore(ctx, memocache.WithClock(func() time.Time { return now }))
//		cachetest.RunStoreContract(t, store, cachetest.Options{
//			Advance: func(d time.Duration) { now = now.Add(d) },
//		})
//	}
//
// Backends with native expiry run in real time; tune the wait to the
// backend's granularity:
//
//	cachetest.RunStoreContract(t, store, cachetest.Options{
//		TTL:     time.Second,
//		TTLWait: 2500 * time.Millisecond,
//	})
package cachetest
