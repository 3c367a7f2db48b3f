// Package badger backs the async tier with an embedded BadgerDB.
// It is the persistent, single-process option: the closest analog to a
// browser's IndexedDB.
package badger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	pr "github.com/unkn0wn-root/tiercache/provider"
)

// Config configures the badger provider.
type Config struct {
	// Dir is the directory to store data in. Ignored when InMemory is set.
	Dir string

	// InMemory keeps everything in RAM (tests).
	InMemory bool

	// SyncWrites fsyncs every write.
	SyncWrites bool

	// GCInterval runs value log GC periodically; 0 disables.
	GCInterval time.Duration

	// GCDiscardRatio is passed to RunValueLogGC; 0 => 0.5.
	GCDiscardRatio float64
}

type Provider struct {
	db *badger.DB

	gcStop chan struct{}
	gcWg   sync.WaitGroup
	once   sync.Once
}

var _ pr.Provider = (*Provider)(nil)

func New(cfg Config) (*Provider, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Dir == "" {
			return nil, errors.New("badger provider: dir is required")
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	p := &Provider{db: db, gcStop: make(chan struct{})}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		ratio := cfg.GCDiscardRatio
		if ratio <= 0 {
			ratio = 0.5
		}
		p.startGC(cfg.GCInterval, ratio)
	}
	return p, nil
}

// NewFromDB wraps an existing database. Close will close db.
func NewFromDB(db *badger.DB) *Provider {
	return &Provider{db: db, gcStop: make(chan struct{})}
}

func (p *Provider) startGC(interval time.Duration, discardRatio float64) {
	p.gcWg.Add(1)
	go func() {
		defer p.gcWg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-p.gcStop:
				return
			case <-ticker.C:
				for {
					if err := p.db.RunValueLogGC(discardRatio); err != nil {
						break
					}
				}
			}
		}
	}()
}

func (p *Provider) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	var value []byte
	err := p.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (p *Provider) Set(ctx context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	err := p.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *Provider) Del(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (p *Provider) Close(_ context.Context) error {
	var err error
	p.once.Do(func() {
		close(p.gcStop)
		p.gcWg.Wait()
		err = p.db.Close()
	})
	return err
}
