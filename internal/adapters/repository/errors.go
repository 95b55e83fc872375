package repository

import "github.com/cockroachdb/errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound     = errors.New("score not found")
	ErrTeamNotFound = errors.New("team not found")
	ErrInvalidScore = errors.New("invalid score")
	ErrInvalidTeam  = errors.New("invalid team")
	ErrClosed       = errors.New("store closed")
)
