package submission

import (
	"time"

	"github.com/okian/scramble/pkg/logger"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithLogger sets a custom logger for the engine.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock sets the time source for optimistic rows and write stamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator sets the generator for locally synthesized row ids.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) {
		if gen != nil {
			e.newID = gen
		}
	}
}

// WithSyncedTTL sets how long the synced flag stays raised after a drain.
func WithSyncedTTL(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.syncedTTL = d
		}
	}
}
