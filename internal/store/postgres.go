package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createKVTable = `
	CREATE TABLE IF NOT EXISTS flowforge_kv (
		bucket     TEXT        NOT NULL,
		key        TEXT        NOT NULL,
		value      JSONB       NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (bucket, key)
	)
`

// PostgresStore — хранилище в PostgreSQL: таблица flowforge_kv.
type PostgresStore struct {
	dsn  string
	pool *pgxpool.Pool
	owns bool
}

// NewPostgresStore создаёт PostgresStore, который сам откроет пул по dsn.
func NewPostgresStore(dsn string) *PostgresStore {
	return &PostgresStore{dsn: dsn}
}

// NewPostgresStoreWithPool создаёт PostgresStore поверх существующего пула.
// Close такого хранилища пул не закрывает.
func NewPostgresStoreWithPool(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Open реализует Store: подключается и создаёт таблицу.
func (s *PostgresStore) Open(ctx context.Context) error {
	if s.pool == nil {
		pool, err := NewPool(ctx, s.dsn)
		if err != nil {
			return storageErr("postgres connect", err)
		}
		s.pool = pool
		s.owns = true
	}

	if _, err := s.pool.Exec(ctx, createKVTable); err != nil {
		return storageErr("create table", err)
	}
	return nil
}

// Close реализует Store.
func (s *PostgresStore) Close() error {
	if s.pool != nil && s.owns {
		s.pool.Close()
	}
	s.pool = nil
	return nil
}

// Get реализует Store.
func (s *PostgresStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	if s.pool == nil {
		return nil, ErrClosed
	}

	var value []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM flowforge_kv WHERE bucket = $1 AND key = $2`,
		bucket, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("select value", err)
	}
	return value, nil
}

// Set реализует Store.
func (s *PostgresStore) Set(ctx context.Context, bucket, key string, value []byte) error {
	if s.pool == nil {
		return ErrClosed
	}

	query := `
		INSERT INTO flowforge_kv (bucket, key, value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (bucket, key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`
	if _, err := s.pool.Exec(ctx, query, bucket, key, string(value)); err != nil {
		return storageErr("upsert value", err)
	}
	return nil
}

// List реализует Store.
func (s *PostgresStore) List(ctx context.Context, bucket string) (map[string][]byte, error) {
	if s.pool == nil {
		return nil, ErrClosed
	}

	rows, err := s.pool.Query(ctx, `SELECT key, value FROM flowforge_kv WHERE bucket = $1`, bucket)
	if err != nil {
		return nil, storageErr("list values", err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, storageErr("scan value", err)
		}
		out[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list values", err)
	}
	return out, nil
}

// Delete реализует Store.
func (s *PostgresStore) Delete(ctx context.Context, bucket, key string) error {
	if s.pool == nil {
		return ErrClosed
	}

	result, err := s.pool.Exec(ctx, `DELETE FROM flowforge_kv WHERE bucket = $1 AND key = $2`, bucket, key)
	if err != nil {
		return storageErr("delete value", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
