package storage

import (
	"context"
	"testing"

	"github.com/eventeye/server/internal/config"
	"github.com/eventeye/server/internal/metrics"
	"github.com/eventeye/server/internal/storage/kv"
	"github.com/eventeye/server/internal/storage/kv/kvtest"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumentedConformance(t *testing.T) {
	kvtest.Run(t, func(t *testing.T) kv.Store {
		return Instrument("memory", kv.NewMemory())
	})
}

func TestInstrumentedIgnoresNotFound(t *testing.T) {
	store := Instrument("instrumented_test", kv.NewMemory())

	_, err := store.Get(context.Background(), "missing")
	require.ErrorIs(t, err, kv.ErrNotFound)

	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.StoreErrors.WithLabelValues("instrumented_test", "get", "store_error")))
}

func TestInstrumentedCountsUnavailable(t *testing.T) {
	inner := kv.NewMemory()
	store := Instrument("instrumented_closed", inner)
	require.NoError(t, inner.Close())

	err := store.Set(context.Background(), "k", []byte(`1`))
	require.ErrorIs(t, err, kv.ErrUnavailable)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StoreErrors.WithLabelValues("instrumented_closed", "set", "store_error")))
}

func TestOpenBackends(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.StoreConfig
	}{
		{name: "memory", cfg: config.StoreConfig{Backend: config.BackendMemory}},
		{name: "badger in memory", cfg: config.StoreConfig{Backend: config.BackendBadger}},
		{name: "badger on disk", cfg: config.StoreConfig{Backend: config.BackendBadger, DataDir: t.TempDir()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, err := Open(context.Background(), tt.cfg, zerolog.Nop())
			require.NoError(t, err)
			t.Cleanup(func() { _ = backend.Close() })

			assert.Equal(t, tt.cfg.Backend, backend.Name)
			assert.Nil(t, backend.Pool)
			require.NoError(t, backend.Ping(context.Background()))
		})
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Backend: "etcd"}, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "etcd")
}
