// Package service wires the tournament server: the score record store, the
// live leaderboard and the HTTP API in front of them.
package service

import (
	"context"
	"net/http"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/okian/scramble/internal/adapters/http/api"
	"github.com/okian/scramble/internal/adapters/repository"
	"github.com/okian/scramble/internal/domain/course"
	"github.com/okian/scramble/internal/domain/leaderboard"
	"github.com/okian/scramble/pkg/logger"
	"github.com/okian/scramble/pkg/metrics"
)

const defaultDBPath = "scramble.db"

// Service owns the server-side components and their lifecycle.
type Service struct {
	mu sync.RWMutex

	// Core components
	store  *repository.SQLiteStore
	board  *leaderboard.Aggregator
	hub    *api.Hub
	server *api.Server

	// Configuration
	dbPath        string
	course        *course.Course
	unstartedLast bool

	// State
	started bool
	cancel  context.CancelFunc
	hubDone chan struct{}

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDBPath sets the score record store file.
func WithDBPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.dbPath = path
		}
	}
}

// WithCourse sets the course the leaderboard is computed against.
func WithCourse(c *course.Course) Option {
	return func(s *Service) {
		if c != nil {
			s.course = c
		}
	}
}

// WithUnstartedLast ranks teams without scores after every started team.
func WithUnstartedLast(enabled bool) Option {
	return func(s *Service) {
		s.unstartedLast = enabled
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		dbPath: defaultDBPath,
		course: course.GlendoveerWest(),
		logger: logger.Get().Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the store, loads the leaderboard and starts the WebSocket hub.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting tournament service...", logger.String("db", s.dbPath))

	store, err := repository.NewSQLiteStore(s.dbPath, repository.WithLogger(s.logger.Named("store")))
	if err != nil {
		return errors.Wrap(err, "open score store")
	}

	var rank []leaderboard.RankOption
	if s.unstartedLast {
		rank = append(rank, leaderboard.WithUnstartedLast())
	}
	board := leaderboard.NewAggregator(store, s.course,
		leaderboard.WithLogger(s.logger.Named("leaderboard")),
		leaderboard.WithRankOptions(rank...),
	)

	runCtx, cancel := context.WithCancel(context.Background())
	if err := board.Start(runCtx); err != nil {
		cancel()
		_ = store.Close()
		return errors.Wrap(err, "start leaderboard")
	}

	hub := api.NewHub(board, api.WithHubLogger(s.logger.Named("ws")))
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		if err := hub.Run(runCtx, store); err != nil {
			s.logger.Error(runCtx, "websocket hub stopped", logger.Error(err))
		}
	}()
	select {
	case <-hub.Ready():
	case <-hubDone:
	case <-ctx.Done():
		cancel()
		<-hubDone
		board.Stop()
		_ = store.Close()
		return errors.Wrap(ctx.Err(), "start websocket hub")
	}

	s.store = store
	s.board = board
	s.hub = hub
	s.hubDone = hubDone
	s.cancel = cancel
	s.server = api.NewServer(store, board, hub,
		api.WithLogger(s.logger.Named("api")),
		api.WithPinger(store),
		api.WithStats(s),
	)
	s.started = true

	s.logger.Info(ctx, "tournament service started",
		logger.String("course", s.course.Name()),
		logger.Bool("unstartedLast", s.unstartedLast),
	)
	return nil
}

// Handler returns the HTTP handler. Start must have succeeded.
func (s *Service) Handler() http.Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.server == nil {
		return http.NotFoundHandler()
	}
	return s.server.Routes()
}

// Stop disconnects observers, stops the leaderboard and closes the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.logger.Info(context.Background(), "stopping tournament service...")

	s.cancel()
	<-s.hubDone
	s.board.Stop()
	if err := s.store.Close(); err != nil {
		s.logger.Error(context.Background(), "close score store failed", logger.Error(err))
	}

	s.started = false
	s.logger.Info(context.Background(), "tournament service stopped")
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started": s.started,
		"course":  s.course.Name(),
	}
	if s.started {
		entries := s.board.Entries()
		started := 0
		for _, e := range entries {
			if e.Started() {
				started++
			}
		}
		stats["teams"] = len(entries)
		stats["teamsStarted"] = started
		stats["leaderboardLoading"] = s.board.Loading()
		stats["websocketClients"] = s.hub.Clients()

		metrics.UpdateLeaderboardTeams(len(entries))
	}
	return stats
}
