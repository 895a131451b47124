// Package storage opens the configured kv.Store backend.
package storage

import (
	"context"
	"fmt"

	"github.com/eventeye/server/internal/config"
	"github.com/eventeye/server/internal/storage/badger"
	"github.com/eventeye/server/internal/storage/kv"
	"github.com/eventeye/server/internal/storage/postgres"
	"github.com/eventeye/server/internal/storage/redis"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Backend is an opened, instrumented store.
type Backend struct {
	kv.Store

	Name string
	// Pool is set for the postgres backend only. The job queue shares it.
	Pool *pgxpool.Pool
}

// Open connects the backend named by cfg.Backend. The postgres backend
// applies pending schema migrations before it is returned.
func Open(ctx context.Context, cfg config.StoreConfig, logger zerolog.Logger) (*Backend, error) {
	logger = logger.With().Str("component", "storage").Str("backend", cfg.Backend).Logger()

	switch cfg.Backend {
	case config.BackendMemory:
		logger.Warn().Msg("using in-memory store; data is lost on restart")
		return wrap(cfg.Backend, kv.NewMemory(), nil), nil

	case config.BackendBadger:
		store, err := badger.New(
			badger.WithDataDir(cfg.DataDir),
			badger.WithLogger(logger),
			badger.WithGCInterval(cfg.GCInterval),
		)
		if err != nil {
			return nil, fmt.Errorf("open badger store: %w", err)
		}
		logger.Info().Str("data_dir", cfg.DataDir).Msg("badger store opened")
		return wrap(cfg.Backend, store, nil), nil

	case config.BackendRedis:
		store, err := redis.New(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		logger.Info().Msg("redis store connected")
		return wrap(cfg.Backend, store, nil), nil

	case config.BackendPostgres:
		if err := postgres.MigrateUp(cfg.DatabaseURL, ""); err != nil {
			return nil, fmt.Errorf("migrate postgres store: %w", err)
		}
		store, err := postgres.New(ctx, cfg.DatabaseURL, cfg.MaxConnections)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		logger.Info().Int("max_connections", cfg.MaxConnections).Msg("postgres store connected")
		return wrap(cfg.Backend, store, store.Pool()), nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func wrap(name string, store kv.Store, pool *pgxpool.Pool) *Backend {
	return &Backend{
		Store: Instrument(name, store),
		Name:  name,
		Pool:  pool,
	}
}
