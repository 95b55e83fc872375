package simulate

import "github.com/cockroachdb/errors"

var (
	// ErrMismatch is returned when the server's leaderboard disagrees with
	// the local computation.
	ErrMismatch = errors.New("leaderboard mismatch")
	// ErrSubmissionsFailed is returned when any score could not be written.
	ErrSubmissionsFailed = errors.New("score submissions failed")
)
