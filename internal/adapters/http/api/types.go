package api

import (
	"encoding/json"

	"github.com/okian/scramble/internal/domain/leaderboard"
	"github.com/okian/scramble/internal/domain/model"
)

// WebSocket message types.
const (
	MessageScoreChange = "score_change"
	MessageTeamChange  = "team_change"
	MessageLeaderboard = "leaderboard"
)

// UpsertScoreRequest is the body of PUT /api/scores.
type UpsertScoreRequest struct {
	TeamID     string `json:"team_id" validate:"required"`
	HoleNumber int    `json:"hole_number" validate:"min=1,max=18"`
	Strokes    int    `json:"strokes" validate:"min=1,max=15"`
}

// CreateTeamRequest is the body of POST /api/teams.
type CreateTeamRequest struct {
	PlayerName  string  `json:"player_name" validate:"required,max=100"`
	PartnerName string  `json:"partner_name" validate:"required,max=100"`
	ShirtSize   string  `json:"shirt_size" validate:"required,oneof=Small Medium Large XL XXL"`
	Notes       *string `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// LeaderboardResponse is the body of GET /api/leaderboard.
type LeaderboardResponse struct {
	Entries  []leaderboard.Entry `json:"entries"`
	Loading  bool                `json:"loading"`
	TotalPar int                 `json:"total_par"`
}

// CourseResponse is the body of GET /api/course.
type CourseResponse struct {
	Name     string             `json:"name"`
	City     string             `json:"city"`
	TotalPar int                `json:"total_par"`
	Holes    []model.CourseHole `json:"holes"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Message is one frame on the /ws stream.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}
