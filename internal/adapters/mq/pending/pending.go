// Package pending is the device-local store of score submissions that have
// not yet been confirmed by the score record store. Entries survive restarts.
package pending

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"

	"github.com/okian/scramble/internal/domain/model"
	"github.com/okian/scramble/pkg/logger"
	"github.com/okian/scramble/pkg/metrics"
)

// Queue is a durable map from score key to the latest unsynced submission.
type Queue interface {
	// Put inserts or overwrites the entry for item.Key.
	Put(ctx context.Context, item model.PendingScore) error
	// GetAll returns every entry in first-insertion order.
	GetAll(ctx context.Context) ([]model.PendingScore, error)
	// Delete removes the entry for key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// DeleteThrough removes the entry for key only if its timestamp is at or
	// before ts, so a confirmation never discards a newer queued write.
	// Reports whether an entry was removed.
	DeleteThrough(ctx context.Context, key string, ts int64) (bool, error)
	// Clear removes every entry.
	Clear(ctx context.Context) error
	// Len returns the number of entries.
	Len(ctx context.Context) (int, error)
}

// SQLiteQueue implements Queue in a local SQLite file.
type SQLiteQueue struct {
	db     *sql.DB
	logger logger.Logger
}

var _ Queue = (*SQLiteQueue)(nil)

// Open opens (or creates) the queue database at path.
func Open(path string, opts ...Option) (*SQLiteQueue, error) {
	q := &SQLiteQueue{logger: logger.Get().Named("pending")}
	for _, opt := range opts {
		opt(q)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "open %s", path), ErrStorage)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// seq keeps first-insertion order across overwrites of the same key.
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS pending_scores (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		key TEXT NOT NULL UNIQUE,
		team_id TEXT NOT NULL,
		hole_number INTEGER NOT NULL,
		strokes INTEGER NOT NULL,
		timestamp INTEGER NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, errors.Mark(errors.Wrap(err, "migrate"), ErrStorage)
	}

	q.db = db
	if n, err := q.Len(context.Background()); err == nil {
		metrics.UpdatePendingQueueDepth(n)
		if n > 0 {
			q.logger.Info(context.Background(), "pending entries restored", logger.Int("count", n))
		}
	}
	return q, nil
}

// Close closes the database.
func (q *SQLiteQueue) Close() error {
	return q.db.Close()
}

// Put inserts or overwrites the entry for item.Key.
func (q *SQLiteQueue) Put(ctx context.Context, item model.PendingScore) error {
	if item.Key != (model.ScoreKey{TeamID: item.TeamID, HoleNumber: item.HoleNumber}).String() {
		return errors.Wrapf(ErrInvalidItem, "key %q does not match %s/%d", item.Key, item.TeamID, item.HoleNumber)
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO pending_scores (key, team_id, hole_number, strokes, timestamp)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			strokes = excluded.strokes,
			timestamp = excluded.timestamp`,
		item.Key, item.TeamID, item.HoleNumber, item.Strokes, item.Timestamp)
	if err != nil {
		return q.fail(ctx, "put", err)
	}
	q.updateDepth(ctx)
	return nil
}

// GetAll returns every entry in first-insertion order.
func (q *SQLiteQueue) GetAll(ctx context.Context) ([]model.PendingScore, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT key, team_id, hole_number, strokes, timestamp
		FROM pending_scores ORDER BY seq`)
	if err != nil {
		return nil, q.fail(ctx, "get_all", err)
	}
	defer rows.Close()

	out := []model.PendingScore{}
	for rows.Next() {
		var p model.PendingScore
		if err := rows.Scan(&p.Key, &p.TeamID, &p.HoleNumber, &p.Strokes, &p.Timestamp); err != nil {
			return nil, q.fail(ctx, "get_all", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, q.fail(ctx, "get_all", err)
	}
	return out, nil
}

// Delete removes the entry for key.
func (q *SQLiteQueue) Delete(ctx context.Context, key string) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM pending_scores WHERE key = ?`, key); err != nil {
		return q.fail(ctx, "delete", err)
	}
	q.updateDepth(ctx)
	return nil
}

// DeleteThrough removes the entry for key if it was written at or before ts.
func (q *SQLiteQueue) DeleteThrough(ctx context.Context, key string, ts int64) (bool, error) {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM pending_scores WHERE key = ? AND timestamp <= ?`, key, ts)
	if err != nil {
		return false, q.fail(ctx, "delete_through", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, q.fail(ctx, "delete_through", err)
	}
	q.updateDepth(ctx)
	return n > 0, nil
}

// Clear removes every entry.
func (q *SQLiteQueue) Clear(ctx context.Context) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM pending_scores`); err != nil {
		return q.fail(ctx, "clear", err)
	}
	metrics.UpdatePendingQueueDepth(0)
	return nil
}

// Len returns the number of entries.
func (q *SQLiteQueue) Len(ctx context.Context) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_scores`).Scan(&n); err != nil {
		return 0, q.fail(ctx, "len", err)
	}
	return n, nil
}

func (q *SQLiteQueue) updateDepth(ctx context.Context) {
	if n, err := q.Len(ctx); err == nil {
		metrics.UpdatePendingQueueDepth(n)
	}
}

func (q *SQLiteQueue) fail(ctx context.Context, op string, err error) error {
	metrics.RecordErrorByComponent("pending", op)
	q.logger.Error(ctx, "pending queue operation failed", logger.String("op", op), logger.Error(err))
	return errors.Mark(errors.Wrapf(err, "pending %s", op), ErrStorage)
}
