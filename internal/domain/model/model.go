// Package model contains domain models passed between layers.
package model

import (
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Stroke and hole bounds accepted by the scoring core.
const (
	MinStrokes = 1
	MaxStrokes = 15
	MinHole    = 1
	MaxHole    = 18
)

// ErrInvalidKey is returned when a pending-queue key cannot be parsed.
var ErrInvalidKey = errors.New("invalid score key")

// ShirtSize is the registration shirt size.
type ShirtSize string

// Shirt sizes offered at registration.
const (
	ShirtSmall  ShirtSize = "Small"
	ShirtMedium ShirtSize = "Medium"
	ShirtLarge  ShirtSize = "Large"
	ShirtXL     ShirtSize = "XL"
	ShirtXXL    ShirtSize = "XXL"
)

// ShirtSizes lists every valid size in display order.
var ShirtSizes = []ShirtSize{ShirtSmall, ShirtMedium, ShirtLarge, ShirtXL, ShirtXXL}

// Valid reports whether s is one of ShirtSizes.
func (s ShirtSize) Valid() bool {
	for _, v := range ShirtSizes {
		if v == s {
			return true
		}
	}
	return false
}

// Team is a registered two-player team. Read-only to the scoring core.
type Team struct {
	ID          string    `json:"id"`
	PlayerName  string    `json:"player_name"`
	PartnerName string    `json:"partner_name"`
	ShirtSize   ShirtSize `json:"shirt_size"`
	Notes       *string   `json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
}

// DisplayName is the name shown on the leaderboard.
func (t Team) DisplayName() string {
	return t.PlayerName + " & " + t.PartnerName
}

// CourseHole is static reference data for one hole.
type CourseHole struct {
	HoleNumber int `json:"hole_number"`
	Par        int `json:"par"`
	Yardage    int `json:"yardage"`
	Handicap   int `json:"handicap"`
}

// Score is one team's stroke count on one hole. At most one Score exists
// per (TeamID, HoleNumber).
type Score struct {
	ID         string    `json:"id"`
	TeamID     string    `json:"team_id"`
	HoleNumber int       `json:"hole_number"`
	Strokes    int       `json:"strokes"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Key returns the natural key of the score.
func (s Score) Key() ScoreKey {
	return ScoreKey{TeamID: s.TeamID, HoleNumber: s.HoleNumber}
}

// ScoreKey is the (team, hole) natural key and upsert conflict target.
type ScoreKey struct {
	TeamID     string
	HoleNumber int
}

// String renders the key as team_id:hole_number.
func (k ScoreKey) String() string {
	return k.TeamID + ":" + strconv.Itoa(k.HoleNumber)
}

// ParseScoreKey is the inverse of ScoreKey.String.
func ParseScoreKey(s string) (ScoreKey, error) {
	i := strings.LastIndexByte(s, ':')
	if i <= 0 || i == len(s)-1 {
		return ScoreKey{}, errors.Wrapf(ErrInvalidKey, "%q", s)
	}
	hole, err := strconv.Atoi(s[i+1:])
	if err != nil {
		return ScoreKey{}, errors.Wrapf(ErrInvalidKey, "%q: %v", s, err)
	}
	return ScoreKey{TeamID: s[:i], HoleNumber: hole}, nil
}

// PendingScore is a local-only submission awaiting confirmation by the store.
type PendingScore struct {
	Key        string `json:"key"`
	TeamID     string `json:"team_id"`
	HoleNumber int    `json:"hole_number"`
	Strokes    int    `json:"strokes"`
	// Timestamp is the local write time in Unix milliseconds.
	Timestamp int64 `json:"timestamp"`
}

// NewPendingScore builds an entry whose Key matches its team and hole.
func NewPendingScore(teamID string, hole, strokes int, ts int64) PendingScore {
	return PendingScore{
		Key:        ScoreKey{TeamID: teamID, HoleNumber: hole}.String(),
		TeamID:     teamID,
		HoleNumber: hole,
		Strokes:    strokes,
		Timestamp:  ts,
	}
}

// Submission is a score-entry intent emitted by the presentation layer.
type Submission struct {
	TeamID     string
	HoleNumber int
	Strokes    int
	// Seq is the local write stamp assigned when the optimistic update was applied.
	Seq int64
}

// ChangeOp is the kind of row change carried by a change event.
type ChangeOp string

// Row change kinds.
const (
	OpInsert ChangeOp = "INSERT"
	OpUpdate ChangeOp = "UPDATE"
	OpDelete ChangeOp = "DELETE"
)

// ScoreChange is a change notification for the scores table. For deletes
// Score holds the removed row.
type ScoreChange struct {
	Op    ChangeOp `json:"op"`
	Score Score    `json:"score"`
}

// TeamChange is a change notification for the teams table.
type TeamChange struct {
	Op   ChangeOp `json:"op"`
	Team Team     `json:"team"`
}
