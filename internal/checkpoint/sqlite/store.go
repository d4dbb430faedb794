// Package sqlite implements a checkpoint.Store backed by modernc.org/sqlite.
//
// Timestamps are stored as RFC3339Nano strings: SQLite has no native
// timestamp type, and text round-trips reliably and stays debuggable.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/abbasaisolutions/sygnify-sub002/internal/checkpoint"
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS checkpoints (
	dataset    TEXT PRIMARY KEY,
	last_key   TEXT NOT NULL,
	version    INTEGER NOT NULL,
	updated_at TEXT NOT NULL
)`

// Store implements checkpoint.Store for SQLite.
type Store struct {
	db *sql.DB
}

func init() {
	checkpoint.Register("sqlite", func(ctx context.Context, cfg checkpoint.Config) (checkpoint.Store, error) {
		return New(ctx, cfg.DSN)
	})
}

// New opens the database and ensures the checkpoint table exists.
func New(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create checkpoints table: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() { _ = s.db.Close() }

func (s *Store) Load(ctx context.Context, dataset string) (checkpoint.Checkpoint, bool, error) {
	var cp checkpoint.Checkpoint
	var updated string

	err := s.db.QueryRowContext(ctx,
		`SELECT dataset, last_key, version, updated_at FROM checkpoints WHERE dataset = ?`,
		dataset,
	).Scan(&cp.Dataset, &cp.LastKey, &cp.Version, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return checkpoint.Checkpoint{}, false, nil
	}
	if err != nil {
		return checkpoint.Checkpoint{}, false, err
	}

	if t, perr := time.Parse(time.RFC3339Nano, updated); perr == nil {
		cp.UpdatedAt = t
	}
	return cp, true, nil
}

// Save performs an optimistic-versioned upsert: the UPDATE only matches the
// caller's version, and a fresh INSERT only succeeds for version 0.
func (s *Store) Save(ctx context.Context, cp checkpoint.Checkpoint) (checkpoint.Checkpoint, error) {
	now := time.Now()

	res, err := s.db.ExecContext(ctx,
		`UPDATE checkpoints SET last_key = ?, version = version + 1, updated_at = ? WHERE dataset = ? AND version = ?`,
		cp.LastKey, now.Format(time.RFC3339Nano), cp.Dataset, cp.Version,
	)
	if err != nil {
		return checkpoint.Checkpoint{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return checkpoint.Checkpoint{}, err
	}
	if affected == 1 {
		cp.Version++
		cp.UpdatedAt = now
		return cp, nil
	}

	if cp.Version != 0 {
		return checkpoint.Checkpoint{}, checkpoint.ErrVersionConflict
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO checkpoints (dataset, last_key, version, updated_at) VALUES (?, ?, 1, ?)`,
		cp.Dataset, cp.LastKey, now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return checkpoint.Checkpoint{}, err
	}

	// A lost insert race means another writer got there first.
	saved, ok, err := s.Load(ctx, cp.Dataset)
	if err != nil {
		return checkpoint.Checkpoint{}, err
	}
	if !ok || saved.Version != 1 || saved.LastKey != cp.LastKey {
		return checkpoint.Checkpoint{}, checkpoint.ErrVersionConflict
	}
	return saved, nil
}
