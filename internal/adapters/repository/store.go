// Package repository holds the score record store: teams, one row per
// (team, hole) and change feeds over both tables.
package repository

import (
	"context"

	"github.com/okian/scramble/internal/domain/model"
)

// Store provides read/write access to the tournament rows.
type Store interface {
	// UpsertScore inserts or updates the row for (teamID, hole) and returns
	// the stored row. Concurrent upserts for one key leave exactly one row.
	UpsertScore(ctx context.Context, teamID string, hole, strokes int) (model.Score, error)
	// QueryScores returns rows for teamID, or every row when teamID is empty.
	QueryScores(ctx context.Context, teamID string) ([]model.Score, error)
	// DeleteScore removes the row for (teamID, hole).
	// Returns ErrNotFound if no such row exists.
	DeleteScore(ctx context.Context, teamID string, hole int) error
	// SubscribeScores streams committed score changes until ctx ends.
	SubscribeScores(ctx context.Context) (<-chan model.ScoreChange, error)

	// QueryTeams returns every registered team.
	QueryTeams(ctx context.Context) ([]model.Team, error)
	// CreateTeam registers a team and returns it with server-assigned fields.
	CreateTeam(ctx context.Context, t model.Team) (model.Team, error)
	// SubscribeTeams streams committed team changes until ctx ends.
	SubscribeTeams(ctx context.Context) (<-chan model.TeamChange, error)

	Close() error
}
