package lock

import (
	"context"
	"sync"
	"time"
)

// MutexCleanInterval start to clean unused mutex at specified interval
var MutexCleanInterval = 10 * time.Minute

// Registry hands out one mutex per key. Keys never share a mutex.
type Registry struct {
	mu    sync.Mutex
	locks map[string]*Mutex
}

// Mutex a mutual exclusion lock scoped to a single registry key.
type Mutex struct {
	// key lock key in pool
	key string
	// usedby how many callers hold or wait on it
	usedby int
	// lastUsed when the mutex was last released
	lastUsed time.Time
	// retired the mutex was removed from the registry; waiters must look up a fresh one
	retired bool

	reg *Registry
	sync.Mutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{locks: make(map[string]*Mutex)}
}

func (r *Registry) get(key string) *Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.locks[key]; ok {
		m.usedby++
		return m
	}

	m := &Mutex{key: key, usedby: 1, reg: r}
	r.locks[key] = m
	return m
}

// Acquire returns the locked mutex for key, creating it if absent.
func (r *Registry) Acquire(key string) *Mutex {
	for {
		m := r.get(key)
		m.Mutex.Lock()

		r.mu.Lock()
		retired := m.retired
		r.mu.Unlock()

		if !retired {
			return m
		}
		m.Unlock()
	}
}

// Unlock implements Locker.Unlock, and marks the mutex as released by one caller
func (m *Mutex) Unlock() {
	m.reg.mu.Lock()
	defer m.reg.mu.Unlock()

	m.usedby--
	m.lastUsed = time.Now()
	m.Mutex.Unlock()
}

// Key returns the registry key of the mutex.
func (m *Mutex) Key() string {
	return m.key
}

// Remove drops key from the registry. A caller holding the mutex keeps its
// critical section; callers queued on it re-acquire through the registry.
func (r *Registry) Remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.locks[key]; ok {
		m.retired = true
		delete(r.locks, key)
	}
}

// Len returns the number of keys currently tracked.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}

// CleanUnused removes mutexes nobody holds or waits on that were last used
// more than idle ago.
func (r *Registry) CleanUnused(idle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-idle)
	removed := 0
	for k, v := range r.locks {
		if v.usedby < 1 && !v.lastUsed.After(cutoff) {
			v.retired = true
			delete(r.locks, k)
			removed++
		}
	}
	return removed
}

// StartCleaner runs CleanUnused every interval until ctx is done.
func (r *Registry) StartCleaner(ctx context.Context, interval, idle time.Duration, onClean func(removed, remaining int)) {
	if interval <= 0 {
		interval = MutexCleanInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := r.CleanUnused(idle)
			if onClean != nil {
				onClean(removed, r.Len())
			}
		}
	}
}
