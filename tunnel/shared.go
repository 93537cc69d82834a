package tunnel

import "sync"

// Shared is a value that several session loops read concurrently while at most
// one of them changes it at a time.
type Shared[T any] struct {
	mu sync.RWMutex
	v  T
}

// NewShared returns a Shared holding v.
func NewShared[T any](v T) *Shared[T] {
	return &Shared[T]{v: v}
}

// Load returns the current value under a read lock.
func (s *Shared[T]) Load() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v
}

// Store replaces the value.
func (s *Shared[T]) Store(v T) {
	s.mu.Lock()
	s.v = v
	s.mu.Unlock()
}

// Read calls f with the value while holding the read lock.
func (s *Shared[T]) Read(f func(T)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f(s.v)
}

// Update calls f with exclusive access to the value.
func (s *Shared[T]) Update(f func(*T)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f(&s.v)
}
