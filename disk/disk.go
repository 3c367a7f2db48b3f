// Package disk defines the synchronous persistent tier: a string-keyed,
// string-valued store whose keys can be walked by integer index, the way
// window.localStorage exposes them.
package disk

import (
	"context"
	"errors"
	"sync"
)

// ErrQuotaExceeded is returned by Set when a store has no room for the value.
var ErrQuotaExceeded = errors.New("disk: quota exceeded")

// Store is the contract every disk tier backend satisfies.
//
// Values round-trip exactly as stored. Key(i) addresses keys in the store's
// own order; removing a key may shift the index of keys after it, so callers
// deleting while iterating must walk from Len()-1 down to 0.
type Store interface {
	// Get returns ("", false, nil) on miss.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Remove is a no-op for missing keys.
	Remove(ctx context.Context, key string) error
	// Key returns ("", false, nil) when index is out of range.
	Key(ctx context.Context, index int) (string, bool, error)
	Len(ctx context.Context) (int, error)
	Close(ctx context.Context) error
}

// Mem is an in-process Store kept in insertion order. Overwriting a key keeps
// its position. It is the default disk tier and the one tests use.
type Mem struct {
	mu       sync.RWMutex
	order    []string
	values   map[string]string
	size     int
	maxBytes int
}

var _ Store = (*Mem)(nil)

func NewMem() *Mem {
	return &Mem{values: make(map[string]string)}
}

// NewMemWithQuota bounds the sum of key and value lengths, like a browser's
// per-origin storage quota.
func NewMemWithQuota(maxBytes int) *Mem {
	m := NewMem()
	m.maxBytes = maxBytes
	return m
}

func (m *Mem) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	v, ok := m.values[key]
	m.mu.RUnlock()
	return v, ok, nil
}

func (m *Mem) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, exists := m.values[key]
	size := m.size + len(value)
	if exists {
		size -= len(old)
	} else {
		size += len(key)
	}
	if m.maxBytes > 0 && size > m.maxBytes {
		return ErrQuotaExceeded
	}
	if !exists {
		m.order = append(m.order, key)
	}
	m.values[key] = value
	m.size = size
	return nil
}

func (m *Mem) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.values[key]
	if !ok {
		return nil
	}
	delete(m.values, key)
	m.size -= len(key) + len(v)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Mem) Key(_ context.Context, index int) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if index < 0 || index >= len(m.order) {
		return "", false, nil
	}
	return m.order[index], true, nil
}

func (m *Mem) Len(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order), nil
}

func (m *Mem) Close(_ context.Context) error { return nil }
