package api

import "github.com/cockroachdb/errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
	ErrNotFound   = errors.New("not found")
)

// Error codes carried in ErrorResponse.Code.
const (
	CodeBadRequest   = "bad_request"
	CodeInvalidScore = "invalid_score"
	CodeInvalidTeam  = "invalid_team"
	CodeTeamNotFound = "team_not_found"
	CodeNotFound     = "not_found"
	CodeInternal     = "internal_error"
)
