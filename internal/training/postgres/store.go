// Package postgres stores the training corpus in PostgreSQL.
//
// Each record is one JSONB row in training_records keyed by record name, so
// several deployments can share a database under different names.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/voxcmd/internal/training"
)

// Compile-time interface checks.
var (
	_ training.Store  = (*Store)(nil)
	_ training.Pinger = (*Store)(nil)
)

const ddlTrainingRecords = `
CREATE TABLE IF NOT EXISTS training_records (
    name        TEXT         PRIMARY KEY,
    data        JSONB        NOT NULL,
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);`

// Store is a PostgreSQL-backed [training.Store]. It is safe for concurrent
// use.
type Store struct {
	pool *pgxpool.Pool
	name string
}

// NewStore connects to dsn, verifies the connection and creates the
// training_records table if needed. name selects the row the store reads
// and writes.
func NewStore(ctx context.Context, dsn, name string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}
	return &Store{pool: pool, name: name}, nil
}

// Migrate creates the training_records table. It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlTrainingRecords); err != nil {
		return fmt.Errorf("create training_records: %w", err)
	}
	return nil
}

// Load implements [training.Store.Load].
func (s *Store) Load(ctx context.Context) (*training.Record, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM training_records WHERE name = $1`, s.name,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: load %q: %w", s.name, err)
	}
	return training.DecodeRecord(data)
}

// Save implements [training.Store.Save].
func (s *Store) Save(ctx context.Context, rec *training.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("postgres store: marshal: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO training_records (name, data, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		s.name, data,
	)
	if err != nil {
		return fmt.Errorf("postgres store: save %q: %w", s.name, err)
	}
	return nil
}

// Delete removes the record row.
func (s *Store) Delete(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM training_records WHERE name = $1`, s.name); err != nil {
		return fmt.Errorf("postgres store: delete %q: %w", s.name, err)
	}
	return nil
}

// Ping implements [training.Pinger].
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
