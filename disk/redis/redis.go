// Package redis is a disk tier shared through a redis hash. Useful when several
// processes should see the same persistent keys; concurrent writers race and
// the last write wins.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/tiercache/disk"
)

var ErrNilClient = errors.New("redis disk: nil client")

type Config struct {
	Client      goredis.UniversalClient
	Namespace   string // hash key is "disk:<ns>"; "" => "default"
	CloseClient bool
}

// Store orders keys lexically: a hash has no insertion order, and a sorted
// snapshot keeps Key(i) stable for indexes below a removed key.
type Store struct {
	rdb         goredis.UniversalClient
	hash        string
	closeClient bool
}

var _ disk.Store = (*Store)(nil)

func New(cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = "default"
	}
	return &Store{rdb: cfg.Client, hash: "disk:" + ns, closeClient: cfg.CloseClient}, nil
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.HGet(ctx, s.hash, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("disk get: %w", err)
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.rdb.HSet(ctx, s.hash, key, value).Err(); err != nil {
		return fmt.Errorf("disk set: %w", err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	if err := s.rdb.HDel(ctx, s.hash, key).Err(); err != nil {
		return fmt.Errorf("disk remove: %w", err)
	}
	return nil
}

func (s *Store) Key(ctx context.Context, index int) (string, bool, error) {
	if index < 0 {
		return "", false, nil
	}
	keys, err := s.rdb.HKeys(ctx, s.hash).Result()
	if err != nil {
		return "", false, fmt.Errorf("disk key: %w", err)
	}
	if index >= len(keys) {
		return "", false, nil
	}
	sort.Strings(keys)
	return keys[index], true, nil
}

func (s *Store) Len(ctx context.Context) (int, error) {
	n, err := s.rdb.HLen(ctx, s.hash).Result()
	if err != nil {
		return 0, fmt.Errorf("disk len: %w", err)
	}
	return int(n), nil
}

func (s *Store) Close(context.Context) error {
	if s.closeClient {
		if err := s.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
