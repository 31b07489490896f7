package store

import (
	"sync"

	"github.com/achintir-projects/elite-ai-agent/core"
)

// InMemoryOptions configures an InMemory store.
type InMemoryOptions[V any] struct {
	// Clone copies values on Put and on every read so callers never share
	// internal state. Nil stores values as given.
	Clone func(V) V
	// Name labels NotFound errors (e.g. "task", "task memory").
	Name string
}

// InMemory is a volatile core.Store keeping values in a process local map. It
// is safe for concurrent access. List returns values in first-insertion order.
type InMemory[V any] struct {
	mu    sync.RWMutex
	items map[string]V
	order []string
	opts  InMemoryOptions[V]
}

// NewInMemory constructs an empty in-memory store.
func NewInMemory[V any](optFns ...func(o *InMemoryOptions[V])) *InMemory[V] {
	opts := InMemoryOptions[V]{Name: "entry"}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &InMemory[V]{items: make(map[string]V), opts: opts}
}

func (s *InMemory[V]) copyOf(v V) V {
	if s.opts.Clone == nil {
		return v
	}
	return s.opts.Clone(v)
}

// Get returns the value stored under key.
func (s *InMemory[V]) Get(key string) (V, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	if !ok {
		var zero V
		return zero, core.NewNotFoundError("store.Get", s.opts.Name, key)
	}
	return s.copyOf(v), nil
}

// Put inserts or overwrites the value under key.
func (s *InMemory[V]) Put(key string, value V) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[key]; !exists {
		s.order = append(s.order, key)
	}
	s.items[key] = s.copyOf(value)
	return nil
}

// Delete removes the value under key.
func (s *InMemory[V]) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[key]; !ok {
		return core.NewNotFoundError("store.Delete", s.opts.Name, key)
	}
	delete(s.items, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// List returns a snapshot of all values in insertion order.
func (s *InMemory[V]) List() ([]V, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]V, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.copyOf(s.items[k]))
	}
	return out, nil
}

// Len returns the number of stored values.
func (s *InMemory[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
