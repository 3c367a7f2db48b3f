// Package sqlite is a file-backed disk tier on modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/unkn0wn-root/tiercache/disk"
)

const createKVTable = `
CREATE TABLE IF NOT EXISTS kv (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	namespace TEXT NOT NULL,
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	UNIQUE (namespace, key)
);
`

// Config selects the database file and the logical namespace inside it.
// Several stores may share one file under different namespaces.
type Config struct {
	Path      string // ":memory:" keeps the database in RAM for the life of the store
	Namespace string // "" => "default"
}

// Store keeps keys in insertion order (seq). Overwriting a key keeps its seq.
type Store struct {
	db *sql.DB
	ns string
}

var _ disk.Store = (*Store)(nil)

func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite: path is required")
	}
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open disk db: %w", err)
	}
	// one connection: writes are serialized and ":memory:" stays a single database
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, createKVTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate disk db: %w", err)
	}

	ns := cfg.Namespace
	if ns == "" {
		ns = "default"
	}
	return &Store{db: db, ns: ns}, nil
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE namespace = ? AND key = ?`, s.ns, key,
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("disk get: %w", err)
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (namespace, key, value) VALUES (?, ?, ?)
		 ON CONFLICT (namespace, key) DO UPDATE SET value = excluded.value`,
		s.ns, key, value,
	)
	if err != nil {
		return fmt.Errorf("disk set: %w", err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM kv WHERE namespace = ? AND key = ?`, s.ns, key,
	)
	if err != nil {
		return fmt.Errorf("disk remove: %w", err)
	}
	return nil
}

func (s *Store) Key(ctx context.Context, index int) (string, bool, error) {
	if index < 0 {
		return "", false, nil
	}
	var k string
	err := s.db.QueryRowContext(ctx,
		`SELECT key FROM kv WHERE namespace = ? ORDER BY seq LIMIT 1 OFFSET ?`, s.ns, index,
	).Scan(&k)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("disk key: %w", err)
	}
	return k, true, nil
}

func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM kv WHERE namespace = ?`, s.ns,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("disk len: %w", err)
	}
	return n, nil
}

func (s *Store) Close(_ context.Context) error {
	return s.db.Close()
}
