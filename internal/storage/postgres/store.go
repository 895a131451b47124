// Package postgres implements kv.Store on a single PostgreSQL table.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/eventeye/server/internal/storage/kv"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const backend = "postgres"

// Store is a kv.Store over the kv_store table.
type Store struct {
	pool *pgxpool.Pool
	own  bool
}

// New opens a pool for databaseURL and pings it. Close closes the pool.
func New(ctx context.Context, databaseURL string, maxConns int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, kv.Unavailable(backend, "connect", "", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, kv.Unavailable(backend, "ping", "", err)
	}
	return &Store{pool: pool, own: true}, nil
}

// NewFromPool wraps a pool owned by the caller; Close leaves it open.
func NewFromPool(pool *pgxpool.Pool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("postgres store: pool is nil")
	}
	return &Store{pool: pool}, nil
}

// Pool exposes the connection pool for components that share it (job queue,
// metrics collector).
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	const query = `SELECT value::text FROM kv_store WHERE key = $1`
	var value string
	err := s.pool.QueryRow(ctx, query, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, kv.Unavailable(backend, "get", key, err)
	}
	return []byte(value), nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	const query = `
INSERT INTO kv_store (key, value)
VALUES ($1, $2::text::jsonb)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	_, err := s.pool.Exec(ctx, query, key, string(value))
	return kv.Unavailable(backend, "set", key, err)
}

func (s *Store) SetIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	const query = `
INSERT INTO kv_store (key, value)
VALUES ($1, $2::text::jsonb)
ON CONFLICT (key) DO NOTHING`
	tag, err := s.pool.Exec(ctx, query, key, string(value))
	if err != nil {
		return false, kv.Unavailable(backend, "set_if_absent", key, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) GetByPrefix(ctx context.Context, prefix string) ([]kv.Entry, error) {
	const query = `SELECT key, value::text FROM kv_store WHERE key LIKE $1 ESCAPE '\' ORDER BY key`
	rows, err := s.pool.Query(ctx, query, escapeLikePattern(prefix)+"%")
	if err != nil {
		return nil, kv.Unavailable(backend, "scan", prefix, err)
	}
	defer rows.Close()

	entries := make([]kv.Entry, 0)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, kv.Unavailable(backend, "scan", prefix, err)
		}
		entries = append(entries, kv.Entry{Key: key, Value: []byte(value)})
	}
	if err := rows.Err(); err != nil {
		return nil, kv.Unavailable(backend, "scan", prefix, err)
	}
	return entries, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return kv.Unavailable(backend, "ping", "", s.pool.Ping(ctx))
}

func (s *Store) Close() error {
	if s.own {
		s.pool.Close()
	}
	return nil
}

// escapeLikePattern escapes LIKE metacharacters so the prefix matches literally.
func escapeLikePattern(s string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`,
		`%`, `\%`,
		`_`, `\_`,
	)
	return replacer.Replace(s)
}
