package worker

import (
	"github.com/okian/scramble/pkg/logger"
)

// Option configures an InMemoryWorker. Options passed to NewPool apply to
// every worker in the pool.
type Option func(*InMemoryWorker)

// WithName names the worker's logger.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets the parent logger; the worker name is appended to it.
func WithLogger(logger logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}
