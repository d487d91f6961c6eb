package replay

import (
	"fmt"
	"os"

	"github.com/okian/combatpower/pkg/logger"
)

// SetupLogging initializes the logger at level.
func SetupLogging(level string) error {
	logger.SetOutput(os.Stderr)
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := logger.SetLevelString(level); err != nil {
		return fmt.Errorf("failed to set log level: %w", err)
	}
	return nil
}

// ShowHelp prints usage information for the replay tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`Combat Power Replay
===================

Replays a landmark stream through the scoring pipeline and prints the
smoothed totals. With -url the stream drives a running server's session
API and the frozen score is checked against the local computation.

Usage:
  go run ./cmd/replay [options]

Options:
  -url string        Base URL of the service (offline when empty)
  -input string      JSON file of recorded frames (synthetic when empty)
  -output string     Write the replayed frames to this file
  -frames int        Number of synthetic frames (default 300)
  -seed uint         Synthetic stream seed (default 1)
  -jitter float      Synthetic noise per coordinate (default 0.004)
  -spikes int        Every n-th synthetic frame is a glitch, 0 disables (default 25)
  -gender string     male or female (default "male")
  -player int        1 or 2 (default 1)
  -save              Save the frozen score to the ranking
  -name string       Ranking name when saving (default "REPLAY")
  -timeout duration  HTTP request timeout (default 10s)
  -verbose           Print every frame
  -help              Show this help message

Examples:
  go run ./cmd/replay -frames 600 -verbose
  go run ./cmd/replay -url http://localhost:9080 -save -name AKI
`)
}
