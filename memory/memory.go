// Package memory holds the volatile tier: values live in-process, by
// reference, and disappear on restart. Nothing is serialized.
package memory

import "sync"

// Store is a volatile key/value tier. Implementations must be safe for
// concurrent use; concurrent writers to one key race and the last write wins.
type Store interface {
	Get(key string) (any, bool)
	Set(key string, value any)
	Delete(key string)
	Has(key string) bool
	Close() error
}

// Map is an unbounded Store. A stored nil is still a hit: Has reports true
// and Get returns (nil, true).
type Map struct {
	mu sync.RWMutex
	m  map[string]any
}

var _ Store = (*Map)(nil)

func NewMap() *Map {
	return &Map{m: make(map[string]any)}
}

func (s *Map) Get(key string) (any, bool) {
	s.mu.RLock()
	v, ok := s.m[key]
	s.mu.RUnlock()
	return v, ok
}

func (s *Map) Set(key string, value any) {
	s.mu.Lock()
	s.m[key] = value
	s.mu.Unlock()
}

func (s *Map) Delete(key string) {
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
}

func (s *Map) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Len reports the number of stored keys.
func (s *Map) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

// Close drops every entry.
func (s *Map) Close() error {
	s.mu.Lock()
	s.m = make(map[string]any)
	s.mu.Unlock()
	return nil
}
