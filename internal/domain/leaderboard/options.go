package leaderboard

import (
	"time"

	"github.com/okian/scramble/pkg/logger"
)

// AggregatorOption applies a configuration option to the Aggregator.
type AggregatorOption func(*Aggregator)

// WithLogger sets a custom logger for the aggregator.
func WithLogger(l logger.Logger) AggregatorOption {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithRankOptions sets the ordering policy used on every recompute.
func WithRankOptions(opts ...RankOption) AggregatorOption {
	return func(a *Aggregator) {
		a.rank = append(a.rank, opts...)
	}
}

// WithResubscribeDelay sets the pause between failed re-subscription attempts.
func WithResubscribeDelay(d time.Duration) AggregatorOption {
	return func(a *Aggregator) {
		if d > 0 {
			a.resubscribeDelay = d
		}
	}
}
