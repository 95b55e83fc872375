package api

import (
	"net/http"

	"github.com/okian/scramble/internal/domain/model"
	"github.com/okian/scramble/pkg/logger"
)

// handleListTeams handles GET /api/teams.
func (s *Server) handleListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := s.store.QueryTeams(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, teams)
}

// handleCreateTeam handles POST /api/teams.
func (s *Server) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	var req CreateTeamRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	team, err := s.store.CreateTeam(r.Context(), model.Team{
		PlayerName:  req.PlayerName,
		PartnerName: req.PartnerName,
		ShirtSize:   model.ShirtSize(req.ShirtSize),
		Notes:       req.Notes,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info(r.Context(), "team registered",
		logger.String("team_id", team.ID),
		logger.String("name", team.DisplayName()),
	)
	writeJSON(w, http.StatusCreated, team)
}
