// Package repository provides the thread-safe keyed stores shared between
// caller threads and venue-callback threads. Each store owns a single lock
// scoped to its own map; no operation ever acquires two store locks, which
// keeps deadlock-freedom provable by construction.
package repository

import "sync"

// Store is a generic thread-safe keyed store. The lock is held only for the
// duration of the map operation, never across a venue call.
type Store[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]V
}

// NewStore creates an empty store.
func NewStore[K comparable, V any]() *Store[K, V] {
	return &Store[K, V]{items: make(map[K]V)}
}

// Get returns the value for k, if present.
func (s *Store[K, V]) Get(k K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[k]
	return v, ok
}

// Put inserts or overwrites the value for k.
func (s *Store[K, V]) Put(k K, v V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[k] = v
}

// Delete removes k, if present.
func (s *Store[K, V]) Delete(k K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, k)
}

// Snapshot returns a copy of all values. Order is unspecified.
func (s *Store[K, V]) Snapshot() []V {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]V, 0, len(s.items))
	for _, v := range s.items {
		out = append(out, v)
	}
	return out
}

// Len returns the number of stored entries.
func (s *Store[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Clear removes all entries.
func (s *Store[K, V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[K]V)
}

// Replace swaps the whole contents for the given map under one lock
// acquisition. Used by query-time reconciliation (positions, accounts) where
// the venue response is authoritative and replaces prior state wholesale.
func (s *Store[K, V]) Replace(items map[K]V) {
	fresh := make(map[K]V, len(items))
	for k, v := range items {
		fresh[k] = v
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = fresh
}
