// Package postgres persists full-state snapshots in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/lumino-network/light-client/internal/app/storage"
	"github.com/lumino-network/light-client/internal/jsonbig"
)

// Schema creates the snapshot table. Applied by Init; kept as plain DDL so
// operators can run it through their own migration tooling instead.
const Schema = `
CREATE TABLE IF NOT EXISTS light_client_snapshots (
	id         UUID PRIMARY KEY,
	state      JSONB       NOT NULL,
	taken_at   TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS light_client_snapshots_created_at_idx
	ON light_client_snapshots (created_at DESC);
`

// Store implements storage.Snapshotter backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.Snapshotter = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects to PostgreSQL and applies the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, err
	}
	s := New(db)
	if err := s.Init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Init applies the schema.
func (s *Store) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, Schema)
	return err
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes one snapshot row. Snapshots are append-only; Latest picks the
// newest, and retention is an operator concern.
func (s *Store) Save(ctx context.Context, snap storage.Snapshot) error {
	stateJSON, err := jsonbig.Marshal(snap)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO light_client_snapshots (id, state, taken_at, created_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.NewString(), stateJSON, snap.TakenAt, time.Now().UTC())
	return err
}

// Latest returns the most recent snapshot, if any.
func (s *Store) Latest(ctx context.Context) (storage.Snapshot, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT state
		FROM light_client_snapshots
		ORDER BY created_at DESC
		LIMIT 1
	`)

	var stateRaw []byte
	if err := row.Scan(&stateRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Snapshot{}, false, nil
		}
		return storage.Snapshot{}, false, err
	}

	var snap storage.Snapshot
	if err := jsonbig.Unmarshal(stateRaw, &snap); err != nil {
		return storage.Snapshot{}, false, err
	}
	return snap, true, nil
}
