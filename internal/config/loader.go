package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "COMBAT_"
	// EnvFile names the variable holding the optional YAML file path.
	EnvFile = EnvPrefix + "CONFIG"
)

// Load builds a Config by layering, low to high precedence:
//  1. defaults (New)
//  2. the YAML file named by COMBAT_CONFIG, if set
//  3. env (prefix COMBAT_, "__" separates nested keys)
func Load(ctx context.Context) (*Config, error) {
	return LoadFile(ctx, os.Getenv(EnvFile))
}

// LoadFile is Load with an explicit file path; an empty path skips the file layer.
func LoadFile(_ context.Context, path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// COMBAT_QUEUE_SIZE -> queue_size, COMBAT_SCORE__BASELINE -> score.baseline
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := New()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
