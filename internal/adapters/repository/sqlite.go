package repository

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/okian/scramble/internal/domain/model"
	"github.com/okian/scramble/pkg/logger"
	"github.com/okian/scramble/pkg/metrics"
)

const (
	feedScores = "scores"
	feedTeams  = "teams"

	// fixed width so stored timestamps sort as text
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

// SQLiteStore implements Store on an embedded SQLite database.
type SQLiteStore struct {
	db         *sql.DB
	now        func() time.Time
	newID      func() string
	feedBuffer int
	logger     logger.Logger

	// writeMu orders commits with their change events so subscribers see
	// each key's changes in commit order.
	writeMu sync.Mutex
	scores  *Feed[model.ScoreChange]
	teams   *Feed[model.TeamChange]
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at path and migrates it.
func NewSQLiteStore(path string, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{
		now:        func() time.Time { return time.Now().UTC() },
		newID:      func() string { return uuid.NewString() },
		feedBuffer: defaultFeedBuffer,
		logger:     logger.Get().Named("store"),
	}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	// single connection: SQLite serializes writers anyway
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	s.db = db

	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	s.scores = NewFeed[model.ScoreChange](feedScores, s.feedBuffer)
	s.teams = NewFeed[model.TeamChange](feedTeams, s.feedBuffer)
	return s, nil
}

func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on&_busy_timeout=5000"
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS teams (
			id TEXT PRIMARY KEY,
			player_name TEXT NOT NULL,
			partner_name TEXT NOT NULL,
			shirt_size TEXT NOT NULL,
			notes TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS scores (
			id TEXT PRIMARY KEY,
			team_id TEXT NOT NULL,
			hole_number INTEGER NOT NULL CHECK (hole_number BETWEEN 1 AND 18),
			strokes INTEGER NOT NULL CHECK (strokes BETWEEN 1 AND 15),
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY (team_id) REFERENCES teams(id) ON DELETE CASCADE,
			UNIQUE(team_id, hole_number)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scores_team ON scores(team_id)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return errors.Wrap(err, "migrate")
		}
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close ends all subscriptions and closes the database.
func (s *SQLiteStore) Close() error {
	s.scores.Close()
	s.teams.Close()
	return s.db.Close()
}

// UpsertScore writes the row for (teamID, hole) with a single
// INSERT ... ON CONFLICT statement.
func (s *SQLiteStore) UpsertScore(ctx context.Context, teamID string, hole, strokes int) (model.Score, error) {
	if err := validateScore(teamID, hole, strokes); err != nil {
		return model.Score{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	id := s.newID()
	ts := formatTime(s.now())
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO scores (id, team_id, hole_number, strokes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(team_id, hole_number) DO UPDATE SET
			strokes = excluded.strokes,
			updated_at = excluded.updated_at
		RETURNING id, team_id, hole_number, strokes, created_at, updated_at`,
		id, teamID, hole, strokes, ts, ts)

	sc, err := scanScore(row)
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintForeignKey {
			return model.Score{}, errors.Wrapf(ErrTeamNotFound, "team %s", teamID)
		}
		metrics.RecordErrorByComponent("store", "upsert")
		s.logger.Error(ctx, "upsert failed",
			logger.String("key", model.ScoreKey{TeamID: teamID, HoleNumber: hole}.String()),
			logger.Error(err),
		)
		return model.Score{}, errors.Wrap(err, "upsert score")
	}

	op := model.OpUpdate
	if sc.ID == id {
		op = model.OpInsert
	}
	metrics.RecordStoreWrite(feedScores, string(op))
	s.scores.Publish(model.ScoreChange{Op: op, Score: sc})
	return sc, nil
}

// QueryScores returns rows ordered by team and hole.
func (s *SQLiteStore) QueryScores(ctx context.Context, teamID string) ([]model.Score, error) {
	query := `SELECT id, team_id, hole_number, strokes, created_at, updated_at FROM scores`
	var args []any
	if teamID != "" {
		query += ` WHERE team_id = ?`
		args = append(args, teamID)
	}
	query += ` ORDER BY team_id, hole_number`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query scores")
	}
	defer rows.Close()

	out := []model.Score{}
	for rows.Next() {
		sc, err := scanScore(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan score")
		}
		out = append(out, sc)
	}
	return out, errors.Wrap(rows.Err(), "query scores")
}

// DeleteScore removes one row and publishes its last state.
func (s *SQLiteStore) DeleteScore(ctx context.Context, teamID string, hole int) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	row := s.db.QueryRowContext(ctx, `
		DELETE FROM scores WHERE team_id = ? AND hole_number = ?
		RETURNING id, team_id, hole_number, strokes, created_at, updated_at`,
		teamID, hole)
	sc, err := scanScore(row)
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Wrapf(ErrNotFound, "%s", model.ScoreKey{TeamID: teamID, HoleNumber: hole})
	}
	if err != nil {
		return errors.Wrap(err, "delete score")
	}

	metrics.RecordStoreWrite(feedScores, string(model.OpDelete))
	s.scores.Publish(model.ScoreChange{Op: model.OpDelete, Score: sc})
	return nil
}

// SubscribeScores streams score changes committed after the call.
func (s *SQLiteStore) SubscribeScores(ctx context.Context) (<-chan model.ScoreChange, error) {
	return s.scores.Subscribe(ctx)
}

// QueryTeams returns teams in registration order.
func (s *SQLiteStore) QueryTeams(ctx context.Context) ([]model.Team, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, player_name, partner_name, shirt_size, notes, created_at
		FROM teams ORDER BY created_at, id`)
	if err != nil {
		return nil, errors.Wrap(err, "query teams")
	}
	defer rows.Close()

	out := []model.Team{}
	for rows.Next() {
		var (
			t       model.Team
			notes   sql.NullString
			created string
		)
		if err := rows.Scan(&t.ID, &t.PlayerName, &t.PartnerName, &t.ShirtSize, &notes, &created); err != nil {
			return nil, errors.Wrap(err, "scan team")
		}
		if notes.Valid {
			n := notes.String
			t.Notes = &n
		}
		if t.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, errors.Wrap(rows.Err(), "query teams")
}

// CreateTeam registers t. ID and CreatedAt are assigned by the store.
func (s *SQLiteStore) CreateTeam(ctx context.Context, t model.Team) (model.Team, error) {
	t.PlayerName = strings.TrimSpace(t.PlayerName)
	t.PartnerName = strings.TrimSpace(t.PartnerName)
	if t.PlayerName == "" || t.PartnerName == "" {
		return model.Team{}, errors.Wrap(ErrInvalidTeam, "player and partner names are required")
	}
	if !t.ShirtSize.Valid() {
		return model.Team{}, errors.Wrapf(ErrInvalidTeam, "shirt size %q", t.ShirtSize)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	t.ID = s.newID()
	t.CreatedAt = s.now()
	var notes sql.NullString
	if t.Notes != nil {
		notes = sql.NullString{String: *t.Notes, Valid: true}
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO teams (id, player_name, partner_name, shirt_size, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.PlayerName, t.PartnerName, string(t.ShirtSize), notes, formatTime(t.CreatedAt)); err != nil {
		return model.Team{}, errors.Wrap(err, "create team")
	}
	// round-trip through the stored text form
	t.CreatedAt, _ = parseTime(formatTime(t.CreatedAt))

	metrics.RecordStoreWrite(feedTeams, string(model.OpInsert))
	s.teams.Publish(model.TeamChange{Op: model.OpInsert, Team: t})
	return t, nil
}

// SubscribeTeams streams team changes committed after the call.
func (s *SQLiteStore) SubscribeTeams(ctx context.Context) (<-chan model.TeamChange, error) {
	return s.teams.Subscribe(ctx)
}

func validateScore(teamID string, hole, strokes int) error {
	if teamID == "" {
		return errors.Wrap(ErrInvalidScore, "team id is required")
	}
	if hole < model.MinHole || hole > model.MaxHole {
		return errors.Wrapf(ErrInvalidScore, "hole %d out of range %d-%d", hole, model.MinHole, model.MaxHole)
	}
	if strokes < model.MinStrokes || strokes > model.MaxStrokes {
		return errors.Wrapf(ErrInvalidScore, "strokes %d out of range %d-%d", strokes, model.MinStrokes, model.MaxStrokes)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanScore(row scanner) (model.Score, error) {
	var (
		sc               model.Score
		created, updated string
	)
	if err := row.Scan(&sc.ID, &sc.TeamID, &sc.HoleNumber, &sc.Strokes, &created, &updated); err != nil {
		return model.Score{}, err
	}
	var err error
	if sc.CreatedAt, err = parseTime(created); err != nil {
		return model.Score{}, err
	}
	if sc.UpdatedAt, err = parseTime(updated); err != nil {
		return model.Score{}, err
	}
	return sc, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(timeLayout, v)
	return t, errors.Wrapf(err, "parse time %q", v)
}
