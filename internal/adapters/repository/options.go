package repository

import (
	"path/filepath"
	"time"
)

const (
	defaultDataDir               = "data"
	defaultRankingFile           = "ranking.json"
	defaultBattleFile            = "battle_results.json"
	defaultSequenceFile          = "ranking_seq.json"
	defaultSQLiteFile            = "combatpower.db"
	defaultMetricsUpdateInterval = 5 * time.Second
)

// options is shared by every backend; each one reads what it needs.
type options struct {
	dataDir               string
	sqlitePath            string
	metricsUpdateInterval time.Duration
	now                   func() time.Time
}

// Option applies a configuration option to a store.
type Option func(*options)

// WithDataDir sets the directory of the JSON files and the default SQLite file.
func WithDataDir(dir string) Option {
	return func(o *options) {
		if dir != "" {
			o.dataDir = dir
		}
	}
}

// WithSQLitePath sets the SQLite database file.
func WithSQLitePath(path string) Option {
	return func(o *options) {
		if path != "" {
			o.sqlitePath = path
		}
	}
}

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(o *options) {
		if interval > 0 {
			o.metricsUpdateInterval = interval
		}
	}
}

// WithClock replaces time.Now for CreatedAt and BattleDate.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		dataDir:               defaultDataDir,
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		now:                   time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.sqlitePath == "" {
		o.sqlitePath = filepath.Join(o.dataDir, defaultSQLiteFile)
	}
	return o
}
