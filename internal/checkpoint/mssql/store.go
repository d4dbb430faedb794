// Package mssql implements a checkpoint.Store on SQL Server.
package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/abbasaisolutions/sygnify-sub002/internal/checkpoint"
)

const createTableSQL = `IF OBJECT_ID('checkpoints', 'U') IS NULL
CREATE TABLE checkpoints (
	dataset    NVARCHAR(255) NOT NULL PRIMARY KEY,
	last_key   NVARCHAR(MAX) NOT NULL,
	version    BIGINT NOT NULL,
	updated_at DATETIMEOFFSET NOT NULL
)`

// Store implements checkpoint.Store for SQL Server.
type Store struct {
	db *sql.DB
}

func init() {
	checkpoint.Register("mssql", func(ctx context.Context, cfg checkpoint.Config) (checkpoint.Store, error) {
		return New(ctx, cfg.DSN)
	})
}

// New opens a connection and ensures the checkpoint table exists.
func New(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlserver: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlserver: %w", err)
	}
	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create checkpoints table: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() { s.db.Close() }

func (s *Store) Load(ctx context.Context, dataset string) (checkpoint.Checkpoint, bool, error) {
	var (
		cp checkpoint.Checkpoint
		at time.Time
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT dataset, last_key, version, updated_at FROM checkpoints WHERE dataset = @p1`,
		dataset,
	).Scan(&cp.Dataset, &cp.LastKey, &cp.Version, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return checkpoint.Checkpoint{}, false, nil
	}
	if err != nil {
		return checkpoint.Checkpoint{}, false, err
	}
	cp.UpdatedAt = at
	return cp, true, nil
}

// Save advances the row only when the stored version matches the caller's,
// inserting version 1 for a dataset seen for the first time.
func (s *Store) Save(ctx context.Context, cp checkpoint.Checkpoint) (checkpoint.Checkpoint, error) {
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`UPDATE checkpoints SET last_key = @p1, version = version + 1, updated_at = @p2
		 WHERE dataset = @p3 AND version = @p4`,
		cp.LastKey, now, cp.Dataset, cp.Version,
	)
	if err != nil {
		return checkpoint.Checkpoint{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return checkpoint.Checkpoint{}, err
	}
	if n == 0 {
		if cp.Version != 0 {
			return checkpoint.Checkpoint{}, checkpoint.ErrVersionConflict
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO checkpoints (dataset, last_key, version, updated_at)
			 SELECT @p1, @p2, 1, @p3
			 WHERE NOT EXISTS (SELECT 1 FROM checkpoints WHERE dataset = @p1)`,
			cp.Dataset, cp.LastKey, now,
		)
		if err != nil {
			return checkpoint.Checkpoint{}, err
		}
	}

	out, found, err := s.Load(ctx, cp.Dataset)
	if err != nil {
		return checkpoint.Checkpoint{}, err
	}
	if !found {
		return checkpoint.Checkpoint{}, checkpoint.ErrVersionConflict
	}
	if n == 0 && out.Version != 1 {
		// Lost the insert race to a writer that got there first.
		return checkpoint.Checkpoint{}, checkpoint.ErrVersionConflict
	}
	return out, nil
}
