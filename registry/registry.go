// Package registry implements the shared, mutable completed-function store and
// the per-function worker pool: analysis runs single-threaded per function,
// with no suspension on I/O inside a function's fixpoint, while independent
// functions analyse concurrently. Registry itself is a plain map behind a
// sync.RWMutex, writes serialised with Lock, reads with RLock, no finer
// locking than that because writes only ever happen at a function's
// completion boundary, never mid-fixpoint.
package registry

import (
	"sync"

	"github.com/das-labor/panopticon-sub002/rreil"
	"github.com/google/uuid"
)

// Registry is the shared store of completed Functions, keyed by UUID.
type Registry struct {
	mux       sync.RWMutex
	functions map[uuid.UUID]*rreil.Function
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{functions: make(map[uuid.UUID]*rreil.Function)}
}

// Put records fn under its own ID, replacing any previous entry of the
// same ID. Callers publish only a fully-built Function: the Function's
// own invariants (disjoint blocks, full reachability) must already hold,
// since Registry does not validate what it's given.
func (r *Registry) Put(fn *rreil.Function) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.functions[fn.ID] = fn
}

// Get returns the Function registered under id, or (nil, false). Readers
// observe a consistent snapshot but the returned pointer is never copied:
// callers must treat it as read-only, same discipline Function.CheckInvariants
// assumes of its receiver.
func (r *Registry) Get(id uuid.UUID) (*rreil.Function, bool) {
	r.mux.RLock()
	defer r.mux.RUnlock()
	fn, ok := r.functions[id]
	return fn, ok
}

// Delete drops id from the registry, for callers implementing cancellation.
func (r *Registry) Delete(id uuid.UUID) {
	r.mux.Lock()
	defer r.mux.Unlock()
	delete(r.functions, id)
}

// Count implements the same RLock-guarded read pattern as
// wazevo.go's CompiledModuleCount.
func (r *Registry) Count() int {
	r.mux.RLock()
	defer r.mux.RUnlock()
	return len(r.functions)
}

// Snapshot copies every registered Function pointer into a new slice.
// The slice and its contents are a point-in-time view; a Function value
// itself is never mutated in place once published via Put (the pipeline
// only ever replaces, never edits, a registry entry), so holding a
// Snapshot across later Put/Delete calls is safe.
func (r *Registry) Snapshot() []*rreil.Function {
	r.mux.RLock()
	defer r.mux.RUnlock()
	out := make([]*rreil.Function, 0, len(r.functions))
	for _, fn := range r.functions {
		out = append(out, fn)
	}
	return out
}
