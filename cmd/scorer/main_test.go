package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/scramble/internal/adapters/mq/pending"
	"github.com/okian/scramble/internal/config"
	"github.com/okian/scramble/internal/domain/course"
	"github.com/okian/scramble/internal/domain/leaderboard"
	"github.com/okian/scramble/internal/domain/model"
	"github.com/okian/scramble/internal/submission"
	"github.com/okian/scramble/pkg/logger"
)

func init() {
	_ = logger.Init()
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    command
		wantErr bool
	}{
		{name: "blank", line: "   ", want: command{kind: cmdNone}},
		{name: "score", line: "7 4", want: command{kind: cmdScore, hole: 7, strokes: 4}},
		{name: "score with spacing", line: "  18\t15 ", want: command{kind: cmdScore, hole: 18, strokes: 15}},
		{name: "team", line: "team abc", want: command{kind: cmdTeam, arg: "abc"}},
		{name: "teams", line: "TEAMS", want: command{kind: cmdTeams}},
		{name: "board", line: "board", want: command{kind: cmdBoard}},
		{name: "sync", line: "sync", want: command{kind: cmdDrain}},
		{name: "card", line: "card t9", want: command{kind: cmdCard, arg: "t9"}},
		{name: "card without id", line: "card", wantErr: true},
		{name: "quit", line: "exit", want: command{kind: cmdQuit}},
		{name: "hole too low", line: "0 4", wantErr: true},
		{name: "hole too high", line: "19 4", wantErr: true},
		{name: "strokes too high", line: "3 16", wantErr: true},
		{name: "strokes not a number", line: "3 four", wantErr: true},
		{name: "team without id", line: "team", wantErr: true},
		{name: "unknown", line: "eagle now please", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCommand(tt.line)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errBadInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderState(t *testing.T) {
	c := course.GlendoveerWest()
	par1 := c.Par(1)

	t.Run("no team", func(t *testing.T) {
		assert.Equal(t, "[no team] offline", renderState(submission.State{}, c))
	})

	t.Run("only other teams pending after a drain", func(t *testing.T) {
		out := renderState(submission.State{TeamID: "t1", Online: true, PendingCount: 1, Synced: true}, c)
		assert.Equal(t, "[t1] online other-teams=1 synced", out)
	})

	t.Run("scores with status", func(t *testing.T) {
		st := submission.State{
			TeamID:       "t1",
			Online:       true,
			PendingCount: 5,
			TeamPending:  2,
			Synced:       true,
			Saving:       []int{1},
			Scores:       []model.Score{{TeamID: "t1", HoleNumber: 1, Strokes: par1 - 1}},
			Warning:      "disk full",
		}
		out := renderState(st, c)
		assert.Contains(t, out, "[t1] online pending=2 other-teams=3 synced")
		assert.Contains(t, out, "Birdie (saving)")
		assert.Contains(t, out, "(-1)")
		assert.Contains(t, out, "warning: disk full")
	})
}

func TestRenderCard(t *testing.T) {
	c := course.GlendoveerWest()
	scores := []model.Score{
		{TeamID: "t1", HoleNumber: 1, Strokes: c.Par(1) - 1},
		{TeamID: "t1", HoleNumber: 10, Strokes: c.Par(10) + 1},
	}

	out := renderCard("Ann & Bo", scores, c)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 10)
	assert.Equal(t, "Ann & Bo", lines[0])
	assert.Equal(t, "front 9", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "  hole   1  2"))
	assert.Contains(t, lines[4], "(-1)")
	assert.Equal(t, 8, strings.Count(lines[4], "  -"))
	assert.Equal(t, "back 9", lines[5])
	assert.True(t, strings.HasPrefix(lines[6], "  hole  10 11"))
	assert.Contains(t, lines[8], "(+1)")
	assert.Equal(t, "total "+strconv.Itoa(c.Par(1)+c.Par(10))+" (E)", lines[9])

	empty := renderCard("Cy & Di", nil, c)
	assert.NotContains(t, empty, "total")
	assert.Equal(t, 18, strings.Count(empty, "  -"))
}

func TestRenderBoard(t *testing.T) {
	assert.Equal(t, "leaderboard loading...\n", renderBoard(nil, true))
	assert.Equal(t, "no teams yet\n", renderBoard(nil, false))

	out := renderBoard([]leaderboard.Entry{
		{Rank: 1, Tied: true, TeamName: "A & B", ScoreToPar: -2, HolesCompleted: 4},
		{Rank: 1, Tied: true, TeamName: "C & D", ScoreToPar: -2, HolesCompleted: 3},
		{Rank: 3, TeamName: "E & F"},
	}, false)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "T1\tA & B\t-2\tthru 4", lines[0])
	assert.Equal(t, "3\tE & F\t-\tthru 0", lines[2])
}

func TestRunOffline(t *testing.T) {
	dir := t.TempDir()
	cfg := config.New()
	cfg.ServerURL = "http://127.0.0.1:1"
	cfg.PendingDBPath = filepath.Join(dir, "pending.db")
	cfg.ProbeInterval = time.Hour
	cfg.RequestTimeout = 200 * time.Millisecond

	var out bytes.Buffer
	in := strings.NewReader("team t1\n7 4\n99 1\nquit\n")
	require.NoError(t, run(context.Background(), cfg, in, &out))

	assert.Contains(t, out.String(), "[t1] offline")
	assert.Contains(t, out.String(), "hole must be 1-18")

	q, err := pending.Open(cfg.PendingDBPath)
	require.NoError(t, err)
	defer q.Close()
	items, err := q.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "t1:7", items[0].Key)
	assert.Equal(t, 4, items[0].Strokes)
}
