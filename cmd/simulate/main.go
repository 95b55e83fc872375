// Command simulate plays a random tournament against a running server and
// verifies its leaderboard.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/scramble/internal/simulate"
	"github.com/okian/scramble/pkg/logger"
)

// Default configuration constants.
const (
	defaultTeams          = 40
	defaultWorkers        = 2 // multiplier for runtime.NumCPU()
	defaultTimeout        = 10 * time.Second
	defaultSettleTimeout  = 15 * time.Second
	defaultCorrectionRate = 0.05
	defaultRunTimeout     = 10 * time.Minute
)

func main() {
	var (
		baseURL       = flag.String("url", "http://localhost:8080", "Base URL of the server")
		teams         = flag.Int("teams", defaultTeams, "Number of teams to register")
		workers       = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of teams playing at once")
		timeout       = flag.Duration("timeout", defaultTimeout, "Per-request timeout")
		settle        = flag.Duration("settle", defaultSettleTimeout, "How long to wait for the leaderboard to converge")
		seed          = flag.Uint64("seed", 0, "Generator seed; 0 picks one from the clock")
		corrections   = flag.Float64("corrections", defaultCorrectionRate, "Fraction of holes entered wrong and then corrected")
		unstartedLast = flag.Bool("unstarted-last", false, "Expect teams without scores ranked last")
		outputFile    = flag.String("output", "", "Write the generated rounds to this JSON file")
		verbose       = flag.Bool("verbose", false, "Log every submission")
		help          = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulate.ShowHelp()
		return
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)
	defer cancel()

	cfg := &simulate.Config{
		BaseURL:        *baseURL,
		Teams:          *teams,
		Workers:        *workers,
		Timeout:        *timeout,
		SettleTimeout:  *settle,
		Seed:           *seed,
		CorrectionRate: *corrections,
		UnstartedLast:  *unstartedLast,
		OutputFile:     *outputFile,
		Verbose:        *verbose,
	}
	if _, err := simulate.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "simulation failed", logger.Error(err))
		os.Exit(1)
	}
}
