package repository

import (
	"time"

	"github.com/okian/scramble/pkg/logger"
)

// Option applies a configuration option to the SQLiteStore.
type Option func(*SQLiteStore)

// WithClock sets the time source for created_at and updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator sets the generator for row ids.
func WithIDGenerator(gen func() string) Option {
	return func(s *SQLiteStore) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithFeedBuffer sets the per-subscriber buffer of the change feeds.
func WithFeedBuffer(size int) Option {
	return func(s *SQLiteStore) {
		if size > 0 {
			s.feedBuffer = size
		}
	}
}

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(s *SQLiteStore) {
		if l != nil {
			s.logger = l
		}
	}
}
