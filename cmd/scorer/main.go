// Command scorer is the terminal client one scorer uses on the course. It
// reads "hole strokes" lines, shows each entry at once and keeps it in a
// durable local queue until the tournament server confirms it.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"

	app "github.com/okian/scramble/internal/app"
	"github.com/okian/scramble/internal/config"
	"github.com/okian/scramble/internal/domain/course"
	"github.com/okian/scramble/internal/domain/leaderboard"
	"github.com/okian/scramble/internal/submission"
	"github.com/okian/scramble/pkg/logger"
)

const stopTimeout = 15 * time.Second

func main() {
	var (
		team   = flag.String("team", "", "Team ID to score for (overrides SCRAMBLE_TEAM_ID)")
		server = flag.String("server", "", "Server base URL (overrides SCRAMBLE_SERVER_URL)")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *team != "" {
		cfg.TeamID = *team
	}
	if *server != "" {
		cfg.ServerURL = *server
	}

	// Logs go to stderr so the score view on stdout stays readable.
	if err := logger.Init(logger.WithWriter(os.Stderr), logger.WithJSON(cfg.LogJSON)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, os.Stdin, os.Stdout); err != nil {
		logger.Get().Error(ctx, "scorer failed", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	log := logger.Get().Named("scorer")
	dev, err := app.NewDevice(cfg.ServerURL,
		app.WithDeviceLogger(log),
		app.WithPendingPath(cfg.PendingDBPath),
		app.WithProbeInterval(cfg.ProbeInterval),
		app.WithRequestTimeout(cfg.RequestTimeout),
		app.WithSyncedTTL(cfg.SyncedTTL),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
	)
	if err != nil {
		return err
	}
	if err := dev.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		dev.Stop(stopCtx)
	}()

	out = &lockedWriter{w: out}
	crs := course.GlendoveerWest()
	eng := dev.Engine()
	states, unsubscribe := eng.Subscribe()
	printed := make(chan struct{})
	defer func() {
		unsubscribe()
		<-printed
	}()
	go func() {
		defer close(printed)
		var last string
		for st := range states {
			if s := renderState(st, crs); s != last {
				fmt.Fprintln(out, s)
				last = s
			}
		}
	}()

	if cfg.TeamID != "" {
		if err := eng.SelectTeam(ctx, cfg.TeamID); err != nil {
			fmt.Fprintln(out, "select team:", err)
		}
	}
	fmt.Fprintln(out, helpText)

	var rank []leaderboard.RankOption
	if cfg.UnstartedLast {
		rank = append(rank, leaderboard.WithUnstartedLast())
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		var line string
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			line = l
		}

		cmd, err := parseCommand(line)
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}
		switch cmd.kind {
		case cmdNone:
		case cmdQuit:
			return nil
		case cmdHelp:
			fmt.Fprintln(out, helpText)
		case cmdScore:
			st := eng.State()
			if st.TeamID == "" {
				fmt.Fprintln(out, "select a team first: team <id>")
				continue
			}
			if err := dev.Submit(ctx, st.TeamID, cmd.hole, cmd.strokes); err != nil {
				fmt.Fprintln(out, "warning:", err)
			}
		case cmdTeam:
			if err := eng.SelectTeam(ctx, cmd.arg); err != nil {
				fmt.Fprintln(out, "select team:", err)
			}
		case cmdTeams:
			teams, err := dev.Client().QueryTeams(ctx)
			if err != nil {
				fmt.Fprintln(out, "list teams:", err)
				continue
			}
			for _, t := range teams {
				fmt.Fprintf(out, "%s  %s\n", t.ID, t.DisplayName())
			}
		case cmdDrain:
			n, err := eng.Drain(ctx)
			switch {
			case errors.Is(err, submission.ErrDrainInProgress):
				fmt.Fprintln(out, "sync already running")
			case err != nil:
				fmt.Fprintln(out, "sync:", err)
			default:
				fmt.Fprintf(out, "synced %d score(s)\n", n)
			}
		case cmdCard:
			board, err := dev.Leaderboard(ctx, crs, rank...)
			if err != nil {
				fmt.Fprintln(out, "scorecard:", err)
				continue
			}
			name := cmd.arg
			for _, e := range board.Entries() {
				if e.TeamID == cmd.arg {
					name = e.TeamName
				}
			}
			// the current team's view includes entries not yet synced
			scores := board.TeamScores(cmd.arg)
			if st := eng.State(); st.TeamID == cmd.arg {
				scores = st.Scores
			}
			fmt.Fprint(out, renderCard(name, scores, crs))
		case cmdBoard:
			board, err := dev.Leaderboard(ctx, crs, rank...)
			if err != nil {
				fmt.Fprintln(out, "leaderboard:", err)
				continue
			}
			fmt.Fprint(out, renderBoard(board.Entries(), board.Loading()))
		}
	}
}
