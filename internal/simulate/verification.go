package simulate

import (
	"github.com/cockroachdb/errors"

	"github.com/okian/scramble/internal/domain/leaderboard"
	"github.com/okian/scramble/internal/domain/model"
)

// checkRounds verifies the store holds exactly the final card of every
// simulated team.
func checkRounds(rounds []Round, rows []model.Score) error {
	byKey := make(map[model.ScoreKey]model.Score, len(rows))
	perTeam := make(map[string]int)
	for _, r := range rows {
		if _, dup := byKey[r.Key()]; dup {
			return errors.Newf("duplicate row for %s", r.Key())
		}
		byKey[r.Key()] = r
		perTeam[r.TeamID]++
	}

	for _, r := range rounds {
		if got := perTeam[r.Team.ID]; got != len(r.Strokes) {
			return errors.Wrapf(ErrMismatch, "team %s has %d rows, want %d", r.Team.ID, got, len(r.Strokes))
		}
		for h, want := range r.Strokes {
			k := model.ScoreKey{TeamID: r.Team.ID, HoleNumber: h + 1}
			if got := byKey[k].Strokes; got != want {
				return errors.Wrapf(ErrMismatch, "%s: %d strokes, want %d", k, got, want)
			}
		}
	}
	return nil
}

// compareEntries checks the server's standings against the local ones,
// position by position.
func compareEntries(server, local []leaderboard.Entry) error {
	if len(server) != len(local) {
		return errors.Wrapf(ErrMismatch, "%d entries, want %d", len(server), len(local))
	}
	for i := range local {
		if server[i] != local[i] {
			return errors.Wrapf(ErrMismatch, "position %d: got %+v, want %+v", i+1, server[i], local[i])
		}
	}
	return nil
}
