// Package grouplock serializes read-modify-write sequences on a single
// group's derived fields. The unit of consistency is one group; no ordering
// is needed across groups.
package grouplock

import "sync"

// Default is the process-wide registry. The ledger and consent services
// share it so membership changes and round initiation on the same group
// never interleave.
var Default = New()

type Registry struct {
	mu    sync.Mutex
	locks map[int]*sync.Mutex
}

func New() *Registry {
	return &Registry{locks: make(map[int]*sync.Mutex)}
}

// Lock acquires the mutex for groupID, creating it on first use. Locks are
// never removed; the registry grows with the number of distinct groups seen
// by this process.
func (r *Registry) Lock(groupID int) {
	r.mu.Lock()
	l, ok := r.locks[groupID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[groupID] = l
	}
	r.mu.Unlock()
	l.Lock()
}

func (r *Registry) Unlock(groupID int) {
	r.mu.Lock()
	l := r.locks[groupID]
	r.mu.Unlock()
	if l != nil {
		l.Unlock()
	}
}
