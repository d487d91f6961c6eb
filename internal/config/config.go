// Package config defines the service configuration and how it is loaded.
package config

import (
	"fmt"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/okian/combatpower/internal/domain/battle"
	"github.com/okian/combatpower/internal/domain/scoring"
	"github.com/okian/combatpower/internal/domain/stabilizer"
)

// Config contains process configuration.
type Config struct {
	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// StoreBackend selects the ranking store: json, sqlite or memory.
	StoreBackend string `koanf:"store_backend"`
	DataDir      string `koanf:"data_dir"`
	SQLitePath   string `koanf:"sqlite_path"`
	// ImagesDir receives snapshot images and is served under /src/.
	ImagesDir string `koanf:"images_dir"`

	DefaultRankingLimit int `koanf:"default_ranking_limit"`
	MaxRankingLimit     int `koanf:"max_ranking_limit"`
	BattleRankingLimit  int `koanf:"battle_ranking_limit"`

	// QueueSize bounds the frame queue; a full queue answers 429.
	QueueSize   int `koanf:"queue_size"`
	WorkerCount int `koanf:"worker_count"`
	DedupeSize  int `koanf:"dedupe_size"`

	SessionTTL      time.Duration `koanf:"session_ttl"`
	MeasureDuration time.Duration `koanf:"measure_duration"`
	MetricsInterval time.Duration `koanf:"metrics_interval"`

	Score      scoring.Constants `koanf:"score"`
	Stabilizer stabilizer.Tuning `koanf:"stabilizer"`
	Battle     battle.Rules      `koanf:"battle"`

	// Metrics is read once at startup.
	Metrics Metrics `koanf:"metrics"`
}

// Metrics shapes the exported Prometheus names.
type Metrics struct {
	Namespace string `koanf:"namespace"`
	Subsystem string `koanf:"subsystem"`
	// Labels are attached to every series, e.g. env or instance.
	Labels map[string]string `koanf:"labels"`
}

var metricName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func (m Metrics) validate() error {
	for _, name := range []string{m.Namespace, m.Subsystem} {
		if name != "" && !metricName.MatchString(name) {
			return fmt.Errorf("metric name part %q", name)
		}
	}
	for name := range m.Labels {
		if !metricName.MatchString(name) || strings.HasPrefix(name, "__") {
			return fmt.Errorf("metric label %q", name)
		}
	}
	return nil
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		Addr:                ":9080",
		LogLevel:            "info",
		LogFormat:           "text",
		StoreBackend:        "json",
		DataDir:             "data",
		ImagesDir:           "src",
		DefaultRankingLimit: 20,
		MaxRankingLimit:     100,
		BattleRankingLimit:  50,
		QueueSize:           4096,
		WorkerCount:         runtime.NumCPU(),
		DedupeSize:          50_000,
		SessionTTL:          10 * time.Minute,
		MeasureDuration:     10 * time.Second,
		MetricsInterval:     5 * time.Second,
		Score:               scoring.DefaultConstants(),
		Stabilizer:          stabilizer.DefaultTuning(),
		Battle:              battle.DefaultRules(),
		Metrics:             Metrics{Namespace: "combatpower"},
	}
}

// Validate reports the first invalid setting wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format %q", ErrInvalidConfig, c.LogFormat)
	case c.StoreBackend != "json" && c.StoreBackend != "sqlite" && c.StoreBackend != "memory":
		return fmt.Errorf("%w: store_backend %q", ErrInvalidConfig, c.StoreBackend)
	case c.DefaultRankingLimit < 1 || c.MaxRankingLimit < c.DefaultRankingLimit:
		return fmt.Errorf("%w: ranking limits %d/%d", ErrInvalidConfig, c.DefaultRankingLimit, c.MaxRankingLimit)
	case c.BattleRankingLimit < 1:
		return fmt.Errorf("%w: battle_ranking_limit must be positive", ErrInvalidConfig)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.DedupeSize < 0:
		return fmt.Errorf("%w: dedupe_size must not be negative", ErrInvalidConfig)
	case c.SessionTTL <= 0 || c.MeasureDuration <= 0 || c.MetricsInterval <= 0:
		return fmt.Errorf("%w: durations must be positive", ErrInvalidConfig)
	case c.Battle.PenaltyPerClick < 0:
		return fmt.Errorf("%w: battle.penalty_per_click must not be negative", ErrInvalidConfig)
	}
	if err := c.Score.Validate(); err != nil {
		return fmt.Errorf("%w: score: %w", ErrInvalidConfig, err)
	}
	if err := c.Stabilizer.Validate(); err != nil {
		return fmt.Errorf("%w: stabilizer: %w", ErrInvalidConfig, err)
	}
	if err := c.Metrics.validate(); err != nil {
		return fmt.Errorf("%w: metrics: %w", ErrInvalidConfig, err)
	}
	return nil
}
