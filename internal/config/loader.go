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

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if PULSE_CONFIG is set
//  3. env (prefix PULSE_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv("PULSE_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	// Environment variables: PULSE_WORKER_COUNT, PULSE_MAX_ATTEMPTS, ...
	// Map env keys like PULSE_WORKER_COUNT -> worker_count (flat keys).
	envProvider := env.Provider("PULSE_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "pulse_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if len(cfg.Endpoints) == 0 {
		return fmt.Errorf("%w: endpoint pool must not be empty", ErrInvalidConfig)
	}
	if cfg.MaxAttempts < 1 {
		return fmt.Errorf("%w: max_attempts must be positive", ErrInvalidConfig)
	}
	if cfg.WorkerCount < 1 {
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	}
	if cfg.LookbackDays < 1 {
		return fmt.Errorf("%w: lookback_days must be positive", ErrInvalidConfig)
	}
	if cfg.Reward.VoteGivenDailyCap < 0 {
		return fmt.Errorf("%w: vote_given_daily_cap must not be negative", ErrInvalidConfig)
	}
	for _, rate := range []float64{
		cfg.Reward.PostRate,
		cfg.Reward.CommentRate,
		cfg.Reward.VoteGivenRate,
		cfg.Reward.VoteReceivedRate,
	} {
		if rate < 0 {
			return fmt.Errorf("%w: reward rates must not be negative", ErrInvalidConfig)
		}
	}
	return nil
}
