package storage

import (
	"context"
	"time"

	"github.com/eventeye/server/internal/metrics"
	"github.com/eventeye/server/internal/storage/kv"
)

type instrumented struct {
	backend string
	next    kv.Store
}

// Instrument records latency and errors of every call to next.
func Instrument(backend string, next kv.Store) kv.Store {
	return &instrumented{backend: backend, next: next}
}

func (s *instrumented) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	value, err := s.next.Get(ctx, key)
	metrics.RecordStoreOperation(s.backend, "get", start, err, kv.ErrNotFound)
	return value, err
}

func (s *instrumented) Set(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	err := s.next.Set(ctx, key, value)
	metrics.RecordStoreOperation(s.backend, "set", start, err)
	return err
}

func (s *instrumented) SetIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	start := time.Now()
	stored, err := s.next.SetIfAbsent(ctx, key, value)
	metrics.RecordStoreOperation(s.backend, "set_if_absent", start, err)
	return stored, err
}

func (s *instrumented) GetByPrefix(ctx context.Context, prefix string) ([]kv.Entry, error) {
	start := time.Now()
	entries, err := s.next.GetByPrefix(ctx, prefix)
	metrics.RecordStoreOperation(s.backend, "get_by_prefix", start, err)
	return entries, err
}

func (s *instrumented) Ping(ctx context.Context) error {
	start := time.Now()
	err := s.next.Ping(ctx)
	metrics.RecordStoreOperation(s.backend, "ping", start, err)
	return err
}

func (s *instrumented) Close() error {
	return s.next.Close()
}
