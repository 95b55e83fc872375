package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/okian/scramble/internal/domain/course"
	"github.com/okian/scramble/internal/domain/leaderboard"
	"github.com/okian/scramble/internal/domain/model"
	"github.com/okian/scramble/internal/submission"
)

const helpText = `commands:
  <hole> <strokes>   record strokes for a hole, e.g. "7 4"
  team <id>          score for another team
  teams              list registered teams
  board              show the leaderboard
  card <id>          hole-by-hole scorecard for a team
  sync               send queued scores now
  help | quit`

type commandKind int

const (
	cmdNone commandKind = iota
	cmdScore
	cmdTeam
	cmdTeams
	cmdBoard
	cmdCard
	cmdDrain
	cmdHelp
	cmdQuit
)

type command struct {
	kind    commandKind
	hole    int
	strokes int
	arg     string
}

var errBadInput = errors.New("bad input")

func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{kind: cmdNone}, nil
	}
	switch strings.ToLower(fields[0]) {
	case "team":
		if len(fields) != 2 {
			return command{}, errors.Wrap(errBadInput, "usage: team <id>")
		}
		return command{kind: cmdTeam, arg: fields[1]}, nil
	case "teams":
		return command{kind: cmdTeams}, nil
	case "board":
		return command{kind: cmdBoard}, nil
	case "card":
		if len(fields) != 2 {
			return command{}, errors.Wrap(errBadInput, "usage: card <id>")
		}
		return command{kind: cmdCard, arg: fields[1]}, nil
	case "sync":
		return command{kind: cmdDrain}, nil
	case "help", "?":
		return command{kind: cmdHelp}, nil
	case "quit", "exit":
		return command{kind: cmdQuit}, nil
	}

	if len(fields) != 2 {
		return command{}, errors.Wrapf(errBadInput, "unknown command %q", line)
	}
	hole, err := strconv.Atoi(fields[0])
	if err != nil || hole < model.MinHole || hole > model.MaxHole {
		return command{}, errors.Wrapf(errBadInput, "hole must be %d-%d", model.MinHole, model.MaxHole)
	}
	strokes, err := strconv.Atoi(fields[1])
	if err != nil || strokes < model.MinStrokes || strokes > model.MaxStrokes {
		return command{}, errors.Wrapf(errBadInput, "strokes must be %d-%d", model.MinStrokes, model.MaxStrokes)
	}
	return command{kind: cmdScore, hole: hole, strokes: strokes}, nil
}

func renderState(st submission.State, c *course.Course) string {
	var b strings.Builder
	if st.TeamID == "" {
		b.WriteString("[no team]")
	} else {
		b.WriteString("[" + st.TeamID + "]")
	}
	if st.Online {
		b.WriteString(" online")
	} else {
		b.WriteString(" offline")
	}
	if st.Loading {
		b.WriteString(" loading")
	}
	if st.TeamPending > 0 {
		b.WriteString(" pending=" + strconv.Itoa(st.TeamPending))
	}
	if other := st.PendingCount - st.TeamPending; other > 0 {
		b.WriteString(" other-teams=" + strconv.Itoa(other))
	}
	if st.Synced {
		b.WriteString(" synced")
	}
	saving := make(map[int]bool, len(st.Saving))
	for _, h := range st.Saving {
		saving[h] = true
	}

	total, par := 0, 0
	for _, s := range st.Scores {
		hp := c.Par(s.HoleNumber)
		total += s.Strokes
		par += hp
		b.WriteString("\n  hole " + strconv.Itoa(s.HoleNumber) + ": " + strconv.Itoa(s.Strokes))
		if hp > 0 {
			b.WriteString(" " + leaderboard.HoleLabel(s.Strokes-hp))
		}
		if saving[s.HoleNumber] {
			b.WriteString(" (saving)")
		}
	}
	if len(st.Scores) > 0 {
		b.WriteString("\n  total " + strconv.Itoa(total) + " (" + leaderboard.FormatToPar(total-par) + ")")
	}
	if st.Warning != "" {
		b.WriteString("\n  warning: " + st.Warning)
	}
	return b.String()
}

func renderBoard(entries []leaderboard.Entry, loading bool) string {
	if loading {
		return "leaderboard loading...\n"
	}
	if len(entries) == 0 {
		return "no teams yet\n"
	}
	var b strings.Builder
	for _, e := range entries {
		rank := strconv.Itoa(e.Rank)
		if e.Tied {
			rank = "T" + rank
		}
		toPar := "-"
		if e.Started() {
			toPar = leaderboard.FormatToPar(e.ScoreToPar)
		}
		b.WriteString(rank + "\t" + e.TeamName + "\t" + toPar + "\tthru " + strconv.Itoa(e.HolesCompleted) + "\n")
	}
	return b.String()
}

// renderCard prints a front nine and back nine grid of strokes against par.
func renderCard(name string, scores []model.Score, c *course.Course) string {
	strokes := make(map[int]int, len(scores))
	for _, s := range scores {
		strokes[s.HoleNumber] = s.Strokes
	}
	var front, back []model.CourseHole
	for _, h := range c.Holes() {
		if h.HoleNumber <= 9 {
			front = append(front, h)
		} else {
			back = append(back, h)
		}
	}

	var b strings.Builder
	b.WriteString(name + "\n")
	total, par := 0, 0
	for _, nine := range []struct {
		label string
		holes []model.CourseHole
	}{{"front 9", front}, {"back 9", back}} {
		if len(nine.holes) == 0 {
			continue
		}
		hole, parRow, got := "  hole ", "  par  ", "  score"
		sum, sumPar := 0, 0
		for _, h := range nine.holes {
			hole += fmt.Sprintf("%3d", h.HoleNumber)
			parRow += fmt.Sprintf("%3d", h.Par)
			n, ok := strokes[h.HoleNumber]
			if !ok {
				got += "  -"
				continue
			}
			got += fmt.Sprintf("%3d", n)
			sum += n
			sumPar += h.Par
		}
		b.WriteString(nine.label + "\n" + hole + "\n" + parRow + "\n" + got)
		if sumPar > 0 {
			b.WriteString("  " + strconv.Itoa(sum) + " (" + leaderboard.FormatToPar(sum-sumPar) + ")")
		}
		b.WriteString("\n")
		total += sum
		par += sumPar
	}
	if par > 0 {
		b.WriteString("total " + strconv.Itoa(total) + " (" + leaderboard.FormatToPar(total-par) + ")\n")
	}
	return b.String()
}

// lockedWriter serializes writes from the input loop and the state printer.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
