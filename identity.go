package memocache

import (
	"runtime"
	"sync"
	"sync/atomic"
	"weak"
)

// identityRegistry hands out a stable id per live owner. Entries are keyed by
// weak pointer so the registry never keeps an owner alive, and a cleanup
// drops the entry once the owner is collected. Ids are never reused.
type identityRegistry struct {
	mu   sync.Mutex
	ids  map[any]uint64
	next atomic.Uint64
}

var objectIDs = newIdentityRegistry()

func newIdentityRegistry() *identityRegistry {
	return &identityRegistry{ids: make(map[any]uint64)}
}

// identify returns owner's id, assigning the next one on first sight.
func identify[T any](r *identityRegistry, owner *T) uint64 {
	handle := weak.Make(owner)
	r.mu.Lock()
	if id, ok := r.ids[handle]; ok {
		r.mu.Unlock()
		return id
	}
	id := r.next.Add(1)
	r.ids[handle] = id
	r.mu.Unlock()

	runtime.AddCleanup(owner, r.forget, any(handle))
	return id
}

func (r *identityRegistry) forget(handle any) {
	r.mu.Lock()
	delete(r.ids, handle)
	r.mu.Unlock()
}

func (r *identityRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

// ObjectID returns the id the default key uses for owner, assigning one if
// owner has not been seen yet.
func ObjectID[T any](owner *T) uint64 {
	return identify(objectIDs, owner)
}
