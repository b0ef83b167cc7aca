// Package stream provides small push-based streams used to fan out state
// changes to subscribers.
//
// Subject delivers values only to current subscribers. BehaviorSubject also
// keeps the latest value, hands it to every new subscriber and exposes it
// through Value for synchronous reads.
package stream

import "sync"

// Subject is a broadcast stream without replay.
type Subject[T any] struct {
	emitMu sync.Mutex // serializes deliveries
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]func(T)
	order  []uint64
}

// NewSubject creates an empty subject.
func NewSubject[T any]() *Subject[T] {
	return &Subject[T]{subs: make(map[uint64]func(T))}
}

// Subscribe registers fn and returns a function that removes it again.
// Calling the returned function more than once is a no-op.
func (s *Subject[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(fn)
}

func (s *Subject[T]) addLocked(fn func(T)) func() {
	if s.subs == nil {
		s.subs = make(map[uint64]func(T))
	}
	s.nextID++
	id := s.nextID
	s.subs[id] = fn
	s.order = append(s.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(id) })
	}
}

func (s *Subject[T]) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Next delivers v to every current subscriber in subscription order.
// Callbacks run on the caller's goroutine, outside the subscriber lock.
func (s *Subject[T]) Next(v T) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	for _, fn := range s.snapshot() {
		fn(v)
	}
}

func (s *Subject[T]) snapshot() []func(T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fns := make([]func(T), 0, len(s.order))
	for _, id := range s.order {
		fns = append(fns, s.subs[id])
	}
	return fns
}

// Len returns the number of active subscribers.
func (s *Subject[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// BehaviorSubject is a Subject that remembers its latest value.
type BehaviorSubject[T any] struct {
	subject Subject[T]
	valMu   sync.RWMutex
	value   T
}

// NewBehaviorSubject creates a subject holding initial.
func NewBehaviorSubject[T any](initial T) *BehaviorSubject[T] {
	return &BehaviorSubject[T]{
		subject: Subject[T]{subs: make(map[uint64]func(T))},
		value:   initial,
	}
}

// Value returns the latest emitted value.
func (b *BehaviorSubject[T]) Value() T {
	b.valMu.RLock()
	defer b.valMu.RUnlock()
	return b.value
}

// Subscribe registers fn and immediately delivers the current value to it.
// No emission can interleave between the replay and the registration.
func (b *BehaviorSubject[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	b.subject.emitMu.Lock()
	defer b.subject.emitMu.Unlock()

	b.subject.mu.Lock()
	unsubscribe = b.subject.addLocked(fn)
	b.subject.mu.Unlock()

	fn(b.Value())
	return unsubscribe
}

// Next stores v as the current value and delivers it to subscribers.
func (b *BehaviorSubject[T]) Next(v T) {
	b.subject.emitMu.Lock()
	defer b.subject.emitMu.Unlock()

	b.valMu.Lock()
	b.value = v
	b.valMu.Unlock()

	for _, fn := range b.subject.snapshot() {
		fn(v)
	}
}

// Len returns the number of active subscribers.
func (b *BehaviorSubject[T]) Len() int {
	return b.subject.Len()
}
