package simulate

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sourcegraph/conc/pool"

	"github.com/okian/scramble/internal/adapters/http/client"
	"github.com/okian/scramble/internal/domain/course"
	"github.com/okian/scramble/internal/domain/leaderboard"
	"github.com/okian/scramble/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

const (
	defaultTimeout       = 10 * time.Second
	defaultSettleTimeout = 15 * time.Second
	settlePollInterval   = 100 * time.Millisecond
)

// Run registers cfg.Teams teams, plays their rounds against the server and
// verifies the server's leaderboard.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get().Named("simulate")

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.SettleTimeout <= 0 {
		cfg.SettleTimeout = defaultSettleTimeout
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Seed == 0 {
		cfg.Seed = uint64(time.Now().UnixNano())
	}

	log.Info(ctx, "starting tournament simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("teams", cfg.Teams),
		logger.Int("workers", cfg.Workers),
		logger.Any("seed", cfg.Seed),
	)

	c, err := client.New(cfg.BaseURL, client.WithTimeout(cfg.Timeout))
	if err != nil {
		return stats, err
	}

	// Step 1: Check server health
	if err := c.Check(ctx); err != nil {
		return stats, errors.Wrap(err, "server health check failed")
	}

	// Step 2: Load the course the server scores against
	cr, err := c.Course(ctx)
	if err != nil {
		return stats, errors.Wrap(err, "load course")
	}
	crs, err := course.New(cr.Name, cr.City, cr.Holes)
	if err != nil {
		return stats, errors.Wrap(err, "server course")
	}

	// Step 3: Generate and register teams
	rounds := newGenerator(cfg.Seed, crs).rounds(cfg.Teams, cfg.CorrectionRate)
	if err := registerTeams(ctx, c, cfg, rounds, stats); err != nil {
		return stats, errors.Wrap(err, "team registration failed")
	}

	// Step 4: Play every round concurrently
	playRounds(ctx, c, cfg, rounds, stats)

	// Step 5: Verify the leaderboard once it has converged
	if err := awaitConsistent(ctx, c, cfg, crs, rounds, stats); err != nil {
		return stats, err
	}

	// Step 6: Save rounds to file
	if cfg.OutputFile != "" {
		if err := saveRounds(cfg.OutputFile, rounds); err != nil {
			log.Warn(ctx, "failed to save rounds", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)

	if stats.ScoresFailed > 0 {
		return stats, errors.Wrapf(ErrSubmissionsFailed, "%d of %d", stats.ScoresFailed, stats.ScoresSubmitted)
	}
	return stats, nil
}

func registerTeams(ctx context.Context, c *client.Client, cfg *Config, rounds []Round, stats *Stats) error {
	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError().WithMaxGoroutines(cfg.Workers)
	for i := range rounds {
		p.Go(func(ctx context.Context) error {
			team, err := c.CreateTeam(ctx, rounds[i].Team)
			if err != nil {
				return errors.Wrapf(err, "register %s", rounds[i].Team.DisplayName())
			}
			rounds[i].Team = team
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return err
	}
	stats.TeamsRegistered = len(rounds)
	return nil
}

// playRounds enters each team's card in hole order. Teams play in parallel;
// a team's own entries are sequential so corrections land after the wrong
// value.
func playRounds(ctx context.Context, c *client.Client, cfg *Config, rounds []Round, stats *Stats) {
	log := logger.Get().Named("simulate")
	var submitted, failed, corrected atomic.Int64

	p := pool.New().WithContext(ctx).WithMaxGoroutines(cfg.Workers)
	for i := range rounds {
		r := rounds[i]
		p.Go(func(ctx context.Context) error {
			submit := func(hole, strokes int) {
				submitted.Add(1)
				if _, err := c.UpsertScore(ctx, r.Team.ID, hole, strokes); err != nil {
					failed.Add(1)
					log.Warn(ctx, "score submission failed",
						logger.String("team", r.Team.ID),
						logger.Int("hole", hole),
						logger.Error(err),
					)
					return
				}
				if cfg.Verbose {
					log.Debug(ctx, "score submitted",
						logger.String("team", r.Team.ID),
						logger.Int("hole", hole),
						logger.Int("strokes", strokes),
					)
				}
			}
			for h, strokes := range r.Strokes {
				hole := h + 1
				if wrong, ok := r.Corrections[hole]; ok {
					submit(hole, wrong)
					corrected.Add(1)
				}
				submit(hole, strokes)
			}
			return nil
		})
	}
	_ = p.Wait()

	stats.ScoresSubmitted = int(submitted.Load())
	stats.ScoresFailed = int(failed.Load())
	stats.Corrections = int(corrected.Load())
}

// awaitConsistent polls until the server's standings match a local
// recomputation, or SettleTimeout passes.
func awaitConsistent(ctx context.Context, c *client.Client, cfg *Config, crs *course.Course, rounds []Round, stats *Stats) error {
	log := logger.Get().Named("simulate")
	log.Info(ctx, "waiting for the leaderboard to settle")

	var rank []leaderboard.RankOption
	if cfg.UnstartedLast {
		rank = append(rank, leaderboard.WithUnstartedLast())
	}

	deadline := time.Now().Add(cfg.SettleTimeout)
	var lastErr error
	for {
		lastErr = verify(ctx, c, crs, rounds, rank, stats)
		if lastErr == nil {
			log.Info(ctx, "leaderboard verified", logger.Int("entries", stats.LeaderboardTeams))
			return nil
		}
		if !errors.Is(lastErr, ErrMismatch) || time.Now().After(deadline) {
			return lastErr
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "waiting for leaderboard")
		case <-time.After(settlePollInterval):
		}
	}
}

func verify(ctx context.Context, c *client.Client, crs *course.Course, rounds []Round, rank []leaderboard.RankOption, stats *Stats) error {
	board, err := c.Leaderboard(ctx)
	if err != nil {
		return errors.Wrap(err, "fetch leaderboard")
	}
	if board.Loading {
		return errors.Wrap(ErrMismatch, "leaderboard still loading")
	}
	teams, err := c.QueryTeams(ctx)
	if err != nil {
		return errors.Wrap(err, "fetch teams")
	}
	rows, err := c.QueryScores(ctx, "")
	if err != nil {
		return errors.Wrap(err, "fetch scores")
	}

	if err := checkRounds(rounds, rows); err != nil {
		return err
	}
	local := leaderboard.Compute(crs, teams, rows, rank...)
	if err := compareEntries(board.Entries, local); err != nil {
		return err
	}
	stats.LeaderboardTeams = len(board.Entries)
	return nil
}

func saveRounds(filename string, rounds []Round) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return errors.Wrap(err, "create directory")
		}
	}
	data, err := json.MarshalIndent(rounds, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal rounds")
	}
	return errors.Wrap(os.WriteFile(filename, data, filePermission), "write rounds")
}

func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.ScoresSubmitted) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("teamsRegistered", stats.TeamsRegistered),
		logger.Int("scoresSubmitted", stats.ScoresSubmitted),
		logger.Int("scoresFailed", stats.ScoresFailed),
		logger.Int("corrections", stats.Corrections),
		logger.Int("leaderboardEntries", stats.LeaderboardTeams),
		logger.Duration("duration", stats.Duration),
		logger.Float64("scoresPerSecond", perSecond),
	)
}
