// Package store holds the last known collection of domain records in memory
// and pushes every change to subscribers as a full collection value.
package store

import (
	"sync"

	"finflow/internal/stream"
)

// Store is an ordered, id-unique collection of records.
//
// New records are inserted at the front so newest-first views work without
// a refetch; replacing an existing record keeps its position. Every mutation
// emits a fresh copy of the whole collection.
type Store[K comparable, T any] struct {
	emitMu sync.Mutex // keeps emissions in mutation order
	mu     sync.RWMutex
	keyOf  func(T) K
	items  []T
	out    *stream.BehaviorSubject[[]T]
}

// New creates an empty store. keyOf extracts the record identity.
func New[K comparable, T any](keyOf func(T) K) *Store[K, T] {
	return &Store[K, T]{
		keyOf: keyOf,
		out:   stream.NewBehaviorSubject[[]T](nil),
	}
}

// ReplaceAll sets the full collection. Duplicate ids are collapsed to their
// first occurrence.
func (s *Store[K, T]) ReplaceAll(items []T) {
	s.mutate(func() {
		seen := make(map[K]struct{}, len(items))
		next := make([]T, 0, len(items))
		for _, it := range items {
			k := s.keyOf(it)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			next = append(next, it)
		}
		s.items = next
	})
}

// Upsert replaces the record with the same id in place, or inserts it at the
// front when absent.
func (s *Store[K, T]) Upsert(item T) {
	s.mutate(func() {
		k := s.keyOf(item)
		if i := s.indexLocked(k); i >= 0 {
			next := make([]T, len(s.items))
			copy(next, s.items)
			next[i] = item
			s.items = next
			return
		}
		next := make([]T, 0, len(s.items)+1)
		next = append(next, item)
		next = append(next, s.items...)
		s.items = next
	})
}

// RemoveByID drops the record with the given id. Absent ids are ignored.
func (s *Store[K, T]) RemoveByID(id K) {
	s.mutate(func() {
		i := s.indexLocked(id)
		if i < 0 {
			return
		}
		next := make([]T, 0, len(s.items)-1)
		next = append(next, s.items[:i]...)
		next = append(next, s.items[i+1:]...)
		s.items = next
	})
}

// Reset empties the store.
func (s *Store[K, T]) Reset() {
	s.ReplaceAll(nil)
}

// Snapshot returns a copy of the current collection.
func (s *Store[K, T]) Snapshot() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.items)
}

// Get returns the record with the given id.
func (s *Store[K, T]) Get(id K) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.items[i], true
	}
	var zero T
	return zero, false
}

// Len returns the number of records held.
func (s *Store[K, T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// OnCollectionChange subscribes fn to the collection stream. fn receives the
// current collection right away and then one value per mutation. fn must not
// mutate the store synchronously.
func (s *Store[K, T]) OnCollectionChange(fn func([]T)) (unsubscribe func()) {
	return s.out.Subscribe(func(items []T) { fn(clone(items)) })
}

func (s *Store[K, T]) mutate(apply func()) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	apply()
	snap := clone(s.items)
	s.mu.Unlock()

	s.out.Next(snap)
}

func (s *Store[K, T]) indexLocked(id K) int {
	for i, it := range s.items {
		if s.keyOf(it) == id {
			return i
		}
	}
	return -1
}

func clone[T any](in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	return out
}
