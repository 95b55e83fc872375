package submission

import "github.com/cockroachdb/errors"

// Sentinel kinds for submission errors.
var (
	// ErrQueueUnavailable means a submission could not be written to the
	// pending queue. The optimistic update stands but delivery is not
	// guaranteed; callers surface it as a non-blocking warning.
	ErrQueueUnavailable = errors.New("pending queue unavailable")
	// ErrDrainInProgress is returned when a drain is requested while one runs.
	ErrDrainInProgress = errors.New("drain already in progress")
	// ErrNoTeam is returned when a submission names no team.
	ErrNoTeam = errors.New("no team selected")
)
