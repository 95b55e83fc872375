package pending

import "github.com/okian/scramble/pkg/logger"

// Option applies a configuration option to the SQLiteQueue.
type Option func(*SQLiteQueue)

// WithLogger sets a custom logger for the queue.
func WithLogger(l logger.Logger) Option {
	return func(q *SQLiteQueue) {
		if l != nil {
			q.logger = l
		}
	}
}
