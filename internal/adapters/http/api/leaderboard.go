package api

import (
	"net/http"
)

// handleGetLeaderboard handles GET /api/leaderboard.
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, LeaderboardResponse{
		Entries:  s.board.Entries(),
		Loading:  s.board.Loading(),
		TotalPar: s.board.Course().TotalPar(),
	})
}

// handleGetCourse handles GET /api/course.
func (s *Server) handleGetCourse(w http.ResponseWriter, _ *http.Request) {
	c := s.board.Course()
	writeJSON(w, http.StatusOK, CourseResponse{
		Name:     c.Name(),
		City:     c.City(),
		TotalPar: c.TotalPar(),
		Holes:    c.Holes(),
	})
}
