package replay

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/okian/combatpower/internal/domain/pose"
	"github.com/okian/combatpower/internal/domain/scoring"
	"github.com/okian/combatpower/internal/domain/stabilizer"
	"github.com/okian/combatpower/pkg/logger"
)

// Run executes one replay and writes the report to w.
func Run(ctx context.Context, cfg *Config, w io.Writer) (Result, error) {
	started := time.Now()
	log := logger.Get().Named("replay")

	frames, err := frames(cfg)
	if err != nil {
		return Result{}, err
	}
	log.Info(ctx, "replaying",
		logger.Int("frames", len(frames)),
		logger.String("gender", string(cfg.Gender)),
		logger.Bool("online", cfg.BaseURL != ""),
	)
	if cfg.Output != "" {
		if err := SaveFrames(cfg.Output, frames); err != nil {
			log.Warn(ctx, "frames not saved", logger.Error(err))
		}
	}

	var res Result
	if cfg.BaseURL == "" {
		res = Offline(frames, scoring.DefaultConstants(), stabilizer.DefaultTuning(), cfg.Gender)
	} else {
		res, err = Online(ctx, cfg, frames)
	}
	res.Duration = time.Since(started)
	Report(w, cfg, res)
	if err != nil {
		return res, fmt.Errorf("replay: %w", err)
	}
	return res, nil
}

func frames(cfg *Config) ([][]pose.Landmark, error) {
	if cfg.Input != "" {
		return LoadFrames(cfg.Input)
	}
	if cfg.Frames < 1 {
		return nil, fmt.Errorf("replay: frames must be positive, got %d", cfg.Frames)
	}
	return Synthetic(cfg.Frames, cfg.Seed, cfg.Jitter, cfg.Spikes), nil
}
