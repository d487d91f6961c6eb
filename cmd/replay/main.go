package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/combatpower/internal/domain/scoring"
	"github.com/okian/combatpower/internal/replay"
)

const (
	defaultFrames  = 300
	defaultJitter  = 0.004
	defaultSpikes  = 25
	defaultTimeout = 10 * time.Second
	runTimeout     = 5 * time.Minute
)

func main() {
	var (
		baseURL = flag.String("url", "", "Base URL of the service (offline when empty)")
		input   = flag.String("input", "", "JSON file of recorded frames")
		output  = flag.String("output", "", "Write the replayed frames to this file")
		frames  = flag.Int("frames", defaultFrames, "Number of synthetic frames")
		seed    = flag.Uint64("seed", 1, "Synthetic stream seed")
		jitter  = flag.Float64("jitter", defaultJitter, "Synthetic noise per coordinate")
		spikes  = flag.Int("spikes", defaultSpikes, "Every n-th synthetic frame is a glitch, 0 disables")
		gender  = flag.String("gender", string(scoring.Male), "male or female")
		player  = flag.Int("player", 1, "1 or 2")
		save    = flag.Bool("save", false, "Save the frozen score to the ranking")
		name    = flag.String("name", "REPLAY", "Ranking name when saving")
		timeout = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		verbose = flag.Bool("verbose", false, "Print every frame")
		help    = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		replay.ShowHelp()
		return
	}

	level := "info"
	if *verbose {
		level = "debug"
	}
	if err := replay.SetupLogging(level); err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	cfg := &replay.Config{
		BaseURL: *baseURL,
		Input:   *input,
		Output:  *output,
		Frames:  *frames,
		Seed:    *seed,
		Jitter:  *jitter,
		Spikes:  *spikes,
		Gender:  scoring.Gender(*gender),
		Player:  *player,
		Save:    *save,
		Name:    *name,
		Timeout: *timeout,
		Verbose: *verbose,
	}
	if _, err := replay.Run(ctx, cfg, os.Stdout); err != nil {
		_, _ = os.Stderr.WriteString("Replay failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1) //nolint:gocritic // exitAfterDefer: cancel called above
	}
}
