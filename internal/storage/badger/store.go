// Package badger implements kv.Store on an embedded Badger database.
package badger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/eventeye/server/internal/storage/kv"
	"github.com/rs/zerolog"
)

const backend = "badger"

// DefaultGCInterval is used when no WithGCInterval option is given.
const DefaultGCInterval = 5 * time.Minute

// Store is a kv.Store backed by Badger.
type Store struct {
	db         *badger.DB
	logger     zerolog.Logger
	dataDir    string
	gcInterval time.Duration
	gcStop     chan struct{}
	gcWg       sync.WaitGroup
	closeOnce  sync.Once
}

// New opens the database. Without WithDataDir the store lives in memory.
func New(opts ...Option) (*Store, error) {
	s := &Store{
		logger:     zerolog.Nop(),
		gcInterval: DefaultGCInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "badger").Logger()

	var badgerOpts badger.Options
	if s.dataDir == "" {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
		s.gcInterval = 0
	} else {
		if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		badgerOpts = badger.DefaultOptions(s.dataDir).WithCompression(options.Snappy)
	}
	badgerOpts = badgerOpts.
		WithLogger(badgerLogger{logger: s.logger}).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, kv.Unavailable(backend, "open", "", err)
	}
	s.db = db

	if s.gcInterval > 0 {
		s.gcStop = make(chan struct{})
		s.gcWg.Add(1)
		go s.runGC()
	}
	return s, nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, kv.Unavailable(backend, "get", key, err)
	}
	return value, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	return kv.Unavailable(backend, "set", key, err)
}

// SetIfAbsent relies on Badger's serializable transactions: two writers that
// both read the key as absent cannot both commit, the loser gets ErrConflict.
func (s *Store) SetIfAbsent(_ context.Context, key string, value []byte) (bool, error) {
	stored := false
	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		stored = true
		return txn.Set([]byte(key), value)
	})
	if errors.Is(err, badger.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, kv.Unavailable(backend, "set_if_absent", key, err)
	}
	return stored, nil
}

func (s *Store) GetByPrefix(_ context.Context, prefix string) ([]kv.Entry, error) {
	entries := make([]kv.Entry, 0)
	p := []byte(prefix)
	err := s.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = p
		it := txn.NewIterator(iterOpts)
		defer it.Close()
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			entries = append(entries, kv.Entry{Key: string(item.KeyCopy(nil)), Value: value})
		}
		return nil
	})
	if err != nil {
		return nil, kv.Unavailable(backend, "scan", prefix, err)
	}
	return entries, nil
}

func (s *Store) Ping(context.Context) error {
	if s.db.IsClosed() {
		return kv.Unavailable(backend, "ping", "", errors.New("database closed"))
	}
	return nil
}

// Close stops the garbage collector and closes the database.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.gcStop != nil {
			close(s.gcStop)
			s.gcWg.Wait()
		}
		err = s.db.Close()
	})
	return err
}

func (s *Store) runGC() {
	defer s.gcWg.Done()
	ticker := time.NewTicker(s.gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			for {
				// Keep collecting while there is something to rewrite.
				err := s.db.RunValueLogGC(0.5)
				if err == nil {
					continue
				}
				if !errors.Is(err, badger.ErrNoRewrite) {
					s.logger.Warn().Err(err).Msg("value log GC failed")
				}
				break
			}
		case <-s.gcStop:
			return
		}
	}
}
