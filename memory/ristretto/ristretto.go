// Package ristretto is a bounded volatile tier. When the cost budget is
// exhausted ristretto's admission policy may drop entries; callers that need
// every write to stick should use memory.Map.
package ristretto

import (
	"errors"

	rc "github.com/dgraph-io/ristretto"

	"github.com/unkn0wn-root/tiercache/memory"
)

// nilValue stands in for a stored nil; ristretto can't tell it from a miss.
type nilValue struct{}

type Store struct {
	c    *rc.Cache
	cost int64 // 0 defers to Config.Cost
}

var _ memory.Store = (*Store)(nil)

type Config struct {
	NumCounters int64 // ~10x expected items
	MaxCost     int64 // each entry costs 1 unless Cost is set
	BufferItems int64 // 64 is the ristretto recommendation
	Metrics     bool
	Cost        func(value any) int64
}

func New(cfg Config) (*Store, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	conf := &rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	}
	if cfg.Cost != nil {
		conf.Cost = func(v interface{}) int64 {
			if _, ok := v.(nilValue); ok {
				return 1
			}
			return cfg.Cost(v)
		}
	}
	c, err := rc.NewCache(conf)
	if err != nil {
		return nil, err
	}
	s := &Store{c: c, cost: 1}
	if cfg.Cost != nil {
		s.cost = 0
	}
	return s, nil
}

func (s *Store) Get(key string) (any, bool) {
	v, ok := s.c.Get(key)
	if !ok {
		return nil, false
	}
	if _, isNil := v.(nilValue); isNil {
		return nil, true
	}
	return v, true
}

// Set blocks until ristretto has applied the write so the next Get sees it.
func (s *Store) Set(key string, value any) {
	if value == nil {
		value = nilValue{}
	}
	if s.c.Set(key, value, s.cost) {
		s.c.Wait()
	}
}

func (s *Store) Delete(key string) {
	s.c.Del(key)
	s.c.Wait()
}

func (s *Store) Has(key string) bool {
	_, ok := s.c.Get(key)
	return ok
}

func (s *Store) Close() error {
	s.c.Close()
	return nil
}

// Metrics exposes ristretto's counters (nil unless Config.Metrics).
func (s *Store) Metrics() *rc.Metrics { return s.c.Metrics }
