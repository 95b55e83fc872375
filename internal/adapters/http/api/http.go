// Package api serves the tournament over HTTP: score rows, team
// registration, course data, leaderboard snapshots and a WebSocket stream
// of row changes and standings.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/scramble/internal/adapters/http/swagger"
	"github.com/okian/scramble/internal/adapters/repository"
	"github.com/okian/scramble/internal/domain/course"
	"github.com/okian/scramble/internal/domain/leaderboard"
	"github.com/okian/scramble/internal/domain/model"
	"github.com/okian/scramble/pkg/logger"
	"github.com/okian/scramble/pkg/metrics"
)

// Store is the part of the score record store the handlers write through.
type Store interface {
	UpsertScore(ctx context.Context, teamID string, hole, strokes int) (model.Score, error)
	QueryScores(ctx context.Context, teamID string) ([]model.Score, error)
	DeleteScore(ctx context.Context, teamID string, hole int) error
	QueryTeams(ctx context.Context) ([]model.Team, error)
	CreateTeam(ctx context.Context, t model.Team) (model.Team, error)
}

// Board is the live leaderboard served to observers.
type Board interface {
	Entries() []leaderboard.Entry
	Loading() bool
	Course() *course.Course
	Subscribe() (<-chan []leaderboard.Entry, func())
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithLogger sets a custom logger for the server.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStats sets the provider behind GET /stats.
func WithStats(p StatsProvider) Option {
	return func(s *Server) {
		if p != nil {
			s.statsHandler = NewStatsHandler(p)
		}
	}
}

// WithPinger sets the store probed by GET /healthz.
func WithPinger(p Pinger) Option {
	return func(s *Server) {
		if p != nil {
			s.healthHandler = NewHealthHandler(p)
		}
	}
}

// Server wires HTTP routes for the tournament API.
type Server struct {
	store    Store
	board    Board
	hub      *Hub
	validate *validator.Validate
	logger   logger.Logger

	healthHandler *HealthHandler
	statsHandler  *StatsHandler
}

// NewServer creates a new API server.
func NewServer(store Store, board Board, hub *Hub, opts ...Option) *Server {
	s := &Server{
		store:         store,
		board:         board,
		hub:           hub,
		validate:      validator.New(),
		logger:        logger.Get().Named("api"),
		healthHandler: NewHealthHandler(nil),
		statsHandler:  NewStatsHandler(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the HTTP handler for every route.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/stats", s.statsHandler.HandleStats)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	if s.hub != nil {
		r.Get("/ws", s.hub.ServeWS)
	}
	swagger.Register(r)

	r.Route("/api", func(r chi.Router) {
		r.Get("/course", s.handleGetCourse)
		r.Get("/leaderboard", s.handleGetLeaderboard)

		r.Get("/teams", s.handleListTeams)
		r.Post("/teams", s.handleCreateTeam)

		r.Get("/scores", s.handleQueryScores)
		r.Put("/scores", s.handleUpsertScore)
		r.Delete("/scores/{teamID}/{hole}", s.handleDeleteScore)
	})
	return r
}

// decode reads a JSON body into v and validates it.
func (s *Server) decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Mark(errors.Wrap(err, "decode body"), ErrBadRequest)
	}
	if err := s.validate.Struct(v); err != nil {
		return errors.Mark(errors.Wrap(err, "validate body"), ErrBadRequest)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status and code.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.String("method", r.Method),
			logger.Error(err),
		)
	}
	writeJSON(w, status, ErrorResponse{Code: code, Message: err.Error()})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, repository.ErrInvalidScore):
		return http.StatusBadRequest, CodeInvalidScore
	case errors.Is(err, repository.ErrInvalidTeam):
		return http.StatusBadRequest, CodeInvalidTeam
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, CodeBadRequest
	case errors.Is(err, repository.ErrTeamNotFound):
		return http.StatusUnprocessableEntity, CodeTeamNotFound
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}
