// Package syncx provides extended synchronization primitives
package syncx

import "sync"

// Latest holds the most recent value published by any goroutine, and
// whether one has been published at all.
type Latest[T any] struct {
	mu    sync.RWMutex
	value T
	set   bool
	gen   uint64
}

// Store publishes v.
func (l *Latest[T]) Store(v T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.value = v
	l.set = true
	l.gen++
}

// Load returns the last published value and false if nothing was published.
func (l *Latest[T]) Load() (T, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.value, l.set
}

// Generation counts Store calls; callers compare generations to tell a
// fresh value from a reused one.
func (l *Latest[T]) Generation() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.gen
}
