package leaderboard

import "github.com/cockroachdb/errors"

// ErrAlreadyStarted is returned when Start is called twice.
var ErrAlreadyStarted = errors.New("aggregator already started")
