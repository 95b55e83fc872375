package pending

import "github.com/cockroachdb/errors"

// Sentinel kinds for pending queue errors.
var (
	ErrStorage     = errors.New("pending queue storage failure")
	ErrInvalidItem = errors.New("invalid pending entry")
)
