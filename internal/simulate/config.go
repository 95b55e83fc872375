// Package simulate drives a running tournament server the way a field of
// scorers would, then checks the server's leaderboard against one computed
// locally from the raw score rows.
package simulate

import (
	"time"

	"github.com/okian/scramble/internal/domain/model"
)

// Config holds configuration for a simulated tournament.
type Config struct {
	BaseURL        string        // Base URL of the server
	Teams          int           // Number of teams to register
	Workers        int           // Number of teams playing at once
	Timeout        time.Duration // Per-request timeout
	SettleTimeout  time.Duration // How long to wait for the leaderboard to converge
	Seed           uint64        // Seed for the round generator; 0 picks one from the clock
	CorrectionRate float64       // Fraction of holes first entered wrong, then corrected
	UnstartedLast  bool          // Whether the server ranks unstarted teams last
	OutputFile     string        // Where to write the generated rounds, if set
	Verbose        bool          // Log every submission
}

// Round is one team's generated card. Strokes[i] is hole i+1; holes beyond
// len(Strokes) are not played.
type Round struct {
	Team    model.Team `json:"team"`
	Strokes []int      `json:"strokes"`
	// Corrections maps a hole to the wrong value entered before Strokes.
	Corrections map[int]int `json:"corrections,omitempty"`
}

// Stats holds run statistics.
type Stats struct {
	TeamsRegistered  int
	ScoresSubmitted  int
	ScoresFailed     int
	Corrections      int
	LeaderboardTeams int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
