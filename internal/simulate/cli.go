package simulate

import "os"

// ShowHelp prints usage information for the simulator.
func ShowHelp() {
	os.Stdout.WriteString(`Scramble Tournament Simulator
=============================

Registers teams, plays random rounds against a running server and checks
that the live leaderboard matches one recomputed from the stored scores.

Usage:
  go run ./cmd/simulate [options]

Options:
  -url string
        Base URL of the server (default "http://localhost:8080")
  -teams int
        Number of teams to register (default 40)
  -workers int
        Number of teams playing at once (default CPU cores * 2)
  -timeout duration
        Per-request timeout (default 10s)
  -settle duration
        How long to wait for the leaderboard to converge (default 15s)
  -seed uint
        Generator seed; 0 picks one from the clock
  -corrections float
        Fraction of holes entered wrong and then corrected (default 0.05)
  -unstarted-last
        Expect teams without scores ranked last
  -output string
        Write the generated rounds to this JSON file
  -verbose
        Log every submission
  -help
        Show this help message

Examples:
  # Simulate a full field against a local server
  go run ./cmd/simulate -teams 72 -workers 16

  # Reproduce an earlier run
  go run ./cmd/simulate -seed 42 -output rounds.json
`)
}
