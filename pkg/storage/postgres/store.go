// Package storagesql stores the register in a PostgreSQL table created by the
// migrations in the sql directory.
package storagesql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openkcm/api-client/pkg/storage"
)

type Store struct {
	db *pgxpool.Pool
}

var _ storage.Store = (*Store)(nil)

func New(db *pgxpool.Pool) *Store {
	return &Store{
		db: db,
	}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	if err := s.db.QueryRow(ctx, `SELECT value
FROM kv_store
WHERE key = $1
	AND (expires_at IS NULL OR expires_at > now());`,
		key,
	).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("selecting from kv_store: %w", err)
	}

	return value, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expiresAt = &t
	}

	if _, err := s.db.Exec(ctx, `INSERT INTO kv_store (key, value, expires_at)
VALUES ($1, $2, $3)
	ON CONFLICT (key)
	DO UPDATE SET (value, expires_at) = (EXCLUDED.value, EXCLUDED.expires_at);`,
		key, value, expiresAt,
	); err != nil {
		return fmt.Errorf("upserting into kv_store: %w", err)
	}

	return nil
}

// Take deletes the row and returns it in one statement; concurrent takers
// serialise on the row lock and only one of them sees it.
func (s *Store) Take(ctx context.Context, key string) ([]byte, error) {
	var (
		value     []byte
		expiresAt *time.Time
	)
	if err := s.db.QueryRow(ctx, `DELETE FROM kv_store
WHERE key = $1
RETURNING value, expires_at;`,
		key,
	).Scan(&value, &expiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("deleting from kv_store: %w", err)
	}

	if expiresAt != nil && !time.Now().Before(*expiresAt) {
		return nil, storage.ErrNotFound
	}

	return value, nil
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	if _, err := s.db.Exec(ctx, `DELETE FROM kv_store WHERE key = ANY($1);`, keys); err != nil {
		return fmt.Errorf("deleting from kv_store: %w", err)
	}

	return nil
}

// PurgeExpired removes rows whose TTL elapsed and returns how many were removed.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM kv_store WHERE expires_at IS NOT NULL AND expires_at <= now();`)
	if err != nil {
		return 0, fmt.Errorf("purging kv_store: %w", err)
	}

	return tag.RowsAffected(), nil
}
