// Package leaderboard computes tournament standings from team and score snapshots.
package leaderboard

import (
	"sort"
	"strconv"

	"github.com/okian/scramble/internal/domain/course"
	"github.com/okian/scramble/internal/domain/model"
)

// Entry is one row of the standings. It is derived, never persisted.
//
// HolesCompleted == 0 means "no score yet"; ScoreToPar is then 0 by
// convention and must not be read as even par.
type Entry struct {
	Rank           int    `json:"rank"`
	Tied           bool   `json:"tied"`
	TeamID         string `json:"team_id"`
	TeamName       string `json:"team_name"`
	ScoreToPar     int    `json:"score_to_par"`
	TotalStrokes   int    `json:"total_strokes"`
	HolesCompleted int    `json:"holes_completed"`
}

// Started reports whether the team has recorded at least one hole.
func (e Entry) Started() bool { return e.HolesCompleted > 0 }

// RankOption adjusts ordering policy.
type RankOption func(*rankPolicy)

type rankPolicy struct {
	unstartedLast bool
}

// WithUnstartedLast orders teams with no completed holes after every team
// that has started, instead of sorting them at score-to-par 0.
func WithUnstartedLast() RankOption {
	return func(p *rankPolicy) { p.unstartedLast = true }
}

type row struct {
	entry     Entry
	createdAt int64
}

// Compute builds the ranked standings. It is a pure function of its inputs:
// the same teams and scores in any order yield the same output.
func Compute(c *course.Course, teams []model.Team, scores []model.Score, opts ...RankOption) []Entry {
	var policy rankPolicy
	for _, opt := range opts {
		opt(&policy)
	}

	latest := collapse(scores)

	rows := make([]row, 0, len(teams))
	index := make(map[string]int, len(teams))
	for _, t := range teams {
		if _, dup := index[t.ID]; dup {
			continue
		}
		index[t.ID] = len(rows)
		rows = append(rows, row{
			entry:     Entry{TeamID: t.ID, TeamName: t.DisplayName()},
			createdAt: t.CreatedAt.UnixNano(),
		})
	}

	par := make([]int, len(rows))
	for _, s := range latest {
		i, ok := index[s.TeamID]
		if !ok {
			continue
		}
		rows[i].entry.HolesCompleted++
		rows[i].entry.TotalStrokes += s.Strokes
		par[i] += c.Par(s.HoleNumber)
	}
	for i := range rows {
		if rows[i].entry.HolesCompleted > 0 {
			rows[i].entry.ScoreToPar = rows[i].entry.TotalStrokes - par[i]
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].entry, rows[j].entry
		if policy.unstartedLast && a.Started() != b.Started() {
			return a.Started()
		}
		if a.ScoreToPar != b.ScoreToPar {
			return a.ScoreToPar < b.ScoreToPar
		}
		if a.HolesCompleted != b.HolesCompleted {
			return a.HolesCompleted > b.HolesCompleted
		}
		if rows[i].createdAt != rows[j].createdAt {
			return rows[i].createdAt < rows[j].createdAt
		}
		return a.TeamID < b.TeamID
	})

	out := make([]Entry, len(rows))
	for i := range rows {
		out[i] = rows[i].entry
	}
	assignRanks(out)
	return out
}

// assignRanks applies competition ranking (1,1,3). Neighbours share a rank
// only when both have started and their score-to-par matches.
func assignRanks(entries []Entry) {
	for i := range entries {
		if i > 0 {
			prev := &entries[i-1]
			cur := &entries[i]
			if cur.ScoreToPar == prev.ScoreToPar && cur.Started() && prev.Started() {
				cur.Rank = prev.Rank
				cur.Tied = true
				prev.Tied = true
				continue
			}
		}
		entries[i].Rank = i + 1
	}
}

// collapse keeps one score per (team, hole): the latest UpdatedAt, with the
// larger ID breaking exact ties.
func collapse(scores []model.Score) map[model.ScoreKey]model.Score {
	out := make(map[model.ScoreKey]model.Score, len(scores))
	for _, s := range scores {
		k := s.Key()
		cur, ok := out[k]
		if !ok || newer(s, cur) {
			out[k] = s
		}
	}
	return out
}

func newer(a, b model.Score) bool {
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	return a.ID > b.ID
}

// FormatToPar renders a score relative to par: "E", "+3" or "-2".
func FormatToPar(diff int) string {
	switch {
	case diff == 0:
		return "E"
	case diff > 0:
		return "+" + strconv.Itoa(diff)
	default:
		return strconv.Itoa(diff)
	}
}

// HoleLabel names a single-hole result relative to par.
func HoleLabel(diff int) string {
	switch {
	case diff <= -3:
		return "Albatross!"
	case diff == -2:
		return "Eagle"
	case diff == -1:
		return "Birdie"
	case diff == 0:
		return "Par"
	case diff == 1:
		return "Bogey"
	case diff == 2:
		return "Double Bogey"
	default:
		return "+" + strconv.Itoa(diff)
	}
}
