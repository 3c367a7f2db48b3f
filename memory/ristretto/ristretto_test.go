package ristretto

import "testing"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{NumCounters: 1000, MaxCost: 100, BufferItems: 64})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestInvalidConfig(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error on zero config")
	}
}

func TestSetIsVisibleToNextGet(t *testing.T) {
	s := newTestStore(t)
	s.Set("k", map[string]any{"n": 1})
	v, ok := s.Get("k")
	if !ok {
		t.Fatalf("expected hit right after Set")
	}
	if v.(map[string]any)["n"] != 1 {
		t.Fatalf("unexpected value %v", v)
	}
	if !s.Has("k") {
		t.Fatalf("Has should report true")
	}
	s.Delete("k")
	if s.Has("k") {
		t.Fatalf("expected miss after Delete")
	}
}

func TestStoredNilIsAHit(t *testing.T) {
	s := newTestStore(t)
	s.Set("nil", nil)
	v, ok := s.Get("nil")
	if !ok || v != nil {
		t.Fatalf("stored nil must be a hit, got v=%v ok=%v", v, ok)
	}
}
