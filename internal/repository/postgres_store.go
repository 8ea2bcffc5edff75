package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// PostgresStore keeps blobs in the project_blobs table.
type PostgresStore struct {
	db *sqlx.DB
}

type blobRow struct {
	Key       string    `db:"key"`
	Value     []byte    `db:"value"`
	UpdatedAt time.Time `db:"updated_at"`
}

// NewPostgresStore constructs the store.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Load fetches the blob stored under key.
func (s *PostgresStore) Load(ctx context.Context, key string) ([]byte, error) {
	const query = `SELECT value FROM project_blobs WHERE key = $1`
	var value []byte
	if err := s.db.GetContext(ctx, &value, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load blob %s: %w", key, err)
	}
	return value, nil
}

// Save upserts the blob.
func (s *PostgresStore) Save(ctx context.Context, key string, value []byte) error {
	const query = `INSERT INTO project_blobs (key, value, updated_at)
VALUES (:key, :value, :updated_at)
ON CONFLICT (key)
DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	row := blobRow{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("save blob %s: %w", key, err)
	}
	return nil
}

// Clear deletes the blob.
func (s *PostgresStore) Clear(ctx context.Context, key string) error {
	const query = `DELETE FROM project_blobs WHERE key = $1`
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("clear blob %s: %w", key, err)
	}
	return nil
}

// ClearAll empties the blob table.
func (s *PostgresStore) ClearAll(ctx context.Context) error {
	const query = `DELETE FROM project_blobs`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("clear blobs: %w", err)
	}
	return nil
}

// IsAuthenticated reports whether a pool is attached.
func (s *PostgresStore) IsAuthenticated() bool {
	return s != nil && s.db != nil
}

// Keys lists stored keys sharing prefix, most recently updated first.
func (s *PostgresStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	const query = `SELECT key FROM project_blobs WHERE key LIKE $1 ORDER BY updated_at DESC`
	var keys []string
	if err := s.db.SelectContext(ctx, &keys, query, prefix+"%"); err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}
	return keys, nil
}
