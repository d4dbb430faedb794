// Package postgres implements a checkpoint.Store on pgx connection pools.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abbasaisolutions/sygnify-sub002/internal/checkpoint"
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS checkpoints (
	dataset    TEXT PRIMARY KEY,
	last_key   TEXT NOT NULL,
	version    BIGINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Store implements checkpoint.Store for Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func init() {
	checkpoint.Register("postgres", func(ctx context.Context, cfg checkpoint.Config) (checkpoint.Store, error) {
		return New(ctx, cfg.DSN)
	})
}

// New opens a pool and ensures the checkpoint table exists.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("checkpoint pool: %w", err)
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create checkpoints table: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) Load(ctx context.Context, dataset string) (checkpoint.Checkpoint, bool, error) {
	var cp checkpoint.Checkpoint

	err := s.pool.QueryRow(ctx,
		`SELECT dataset, last_key, version, updated_at FROM checkpoints WHERE dataset = $1`,
		dataset,
	).Scan(&cp.Dataset, &cp.LastKey, &cp.Version, &cp.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return checkpoint.Checkpoint{}, false, nil
	}
	if err != nil {
		return checkpoint.Checkpoint{}, false, err
	}
	return cp, true, nil
}

// Save upserts with optimistic versioning in a single statement: the insert
// claims version 1, and the conflict path only advances when the stored
// version matches the caller's.
func (s *Store) Save(ctx context.Context, cp checkpoint.Checkpoint) (checkpoint.Checkpoint, error) {
	var out checkpoint.Checkpoint

	err := s.pool.QueryRow(ctx,
		`INSERT INTO checkpoints (dataset, last_key, version, updated_at)
		 VALUES ($1, $2, 1, now())
		 ON CONFLICT (dataset) DO UPDATE
		   SET last_key = EXCLUDED.last_key,
		       version = checkpoints.version + 1,
		       updated_at = now()
		 WHERE checkpoints.version = $3
		 RETURNING dataset, last_key, version, updated_at`,
		cp.Dataset, cp.LastKey, cp.Version,
	).Scan(&out.Dataset, &out.LastKey, &out.Version, &out.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return checkpoint.Checkpoint{}, checkpoint.ErrVersionConflict
	}
	if err != nil {
		return checkpoint.Checkpoint{}, err
	}
	return out, nil
}
