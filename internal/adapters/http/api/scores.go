package api

import (
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
)

// handleQueryScores handles GET /api/scores[?team_id=].
func (s *Server) handleQueryScores(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.QueryScores(r.Context(), r.URL.Query().Get("team_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleUpsertScore handles PUT /api/scores. The response is the stored row.
func (s *Server) handleUpsertScore(w http.ResponseWriter, r *http.Request) {
	var req UpsertScoreRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	row, err := s.store.UpsertScore(r.Context(), req.TeamID, req.HoleNumber, req.Strokes)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// handleDeleteScore handles DELETE /api/scores/{teamID}/{hole}.
func (s *Server) handleDeleteScore(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")
	hole, err := strconv.Atoi(chi.URLParam(r, "hole"))
	if err != nil {
		s.writeError(w, r, errors.Wrapf(ErrBadRequest, "hole %q", chi.URLParam(r, "hole")))
		return
	}
	if err := s.store.DeleteScore(r.Context(), teamID, hole); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
