// Package keylock provides in-process advisory locks keyed by string, used
// to serialize sync and workflow runs that touch the same property or entity.
package keylock

import (
	"sync"
)

type entry struct {
	mu   sync.Mutex
	refs int
}

// Registry hands out one mutex per key. Entries are released once the last
// holder unlocks, so the map stays bounded by the number of in-flight keys.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewRegistry creates an empty lock registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Lock acquires the advisory lock for key, blocking until it is available,
// and returns the unlock function.
func (r *Registry) Lock(key string) func() {
	r.mu.Lock()
	e, ok := r.entries[key]
	if !ok {
		e = &entry{}
		r.entries[key] = e
	}
	e.refs++
	r.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()

			r.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(r.entries, key)
			}
			r.mu.Unlock()
		})
	}
}

// Len returns the number of keys currently tracked. Used in tests.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
