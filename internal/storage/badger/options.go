package badger

import (
	"time"

	"github.com/rs/zerolog"
)

// Option configures a Store.
type Option func(*Store)

// WithDataDir persists data under dir. An empty dir keeps the store in memory.
func WithDataDir(dir string) Option {
	return func(s *Store) {
		s.dataDir = dir
	}
}

// WithLogger routes badger's internal logging through logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithGCInterval sets how often the value log is garbage collected.
// Zero disables the collector.
func WithGCInterval(interval time.Duration) Option {
	return func(s *Store) {
		s.gcInterval = interval
	}
}
