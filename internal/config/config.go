// Package config defines pipeline configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults; Load(ctx) layers
//   file and environment overrides on top.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"context"
)

// DefaultEndpoints are the known-good public API endpoints the failover
// client ships with.
var DefaultEndpoints = []string{
	"https://api.hive.blog",
	"https://api.syncad.com",
	"https://api.deathwing.me",
	"https://hive-api.arcange.eu",
	"https://api.openhive.network",
	"https://rpc.mahdiyari.info",
	"https://hive-api.3speak.tv",
	"https://anyx.io",
	"https://techcoderx.com",
	"https://c0ff33a.hive.blog",
	"https://hive.roelandp.nl",
}

// RewardConfig holds the per-action accrual schedule.
type RewardConfig struct {
	PostRate          float64 `koanf:"post_rate"`
	CommentRate       float64 `koanf:"comment_rate"`
	VoteGivenRate     float64 `koanf:"vote_given_rate"`
	VoteGivenDailyCap float64 `koanf:"vote_given_daily_cap"`
	VoteReceivedRate  float64 `koanf:"vote_received_rate"`
}

// EngagementConfig weights the per-user engagement score components.
type EngagementConfig struct {
	PostWeight         float64 `koanf:"post_weight"`
	CommentWeight      float64 `koanf:"comment_weight"`
	VoteGivenWeight    float64 `koanf:"vote_given_weight"`
	VoteReceivedWeight float64 `koanf:"vote_received_weight"`
}

// HealthConfig weights the community health score components. The exact
// weighting is policy, not a law of the data; keep it configurable.
type HealthConfig struct {
	ActiveUserWeight float64 `koanf:"active_user_weight"`
	VolumeWeight     float64 `koanf:"volume_weight"`
	EngagementWeight float64 `koanf:"engagement_weight"`
	// Scales turn raw counts into 0-100 component scores.
	ActiveUserScale float64 `koanf:"active_user_scale"`
	VolumeScale     float64 `koanf:"volume_scale"`
	EngagementScale float64 `koanf:"engagement_scale"`
}

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// MetricsAddr configures the Prometheus listen address in daemon mode.
	MetricsAddr string `koanf:"metrics_addr"`

	// DatabasePath locates the sqlite store.
	DatabasePath string `koanf:"database_path"`

	// CommunityTag scopes collected posts and comments.
	CommunityTag string `koanf:"community_tag"`

	// Endpoints is the ordered API endpoint pool for failover.
	Endpoints []string `koanf:"endpoints"`

	// MaxAttempts bounds fetch attempts across the whole pool.
	MaxAttempts int `koanf:"max_attempts"`

	// RequestTimeoutMS bounds a single endpoint request.
	RequestTimeoutMS int `koanf:"request_timeout_ms"`

	// WorkerCount sets the number of concurrent collection workers.
	WorkerCount int `koanf:"worker_count"`

	// LookbackDays bounds historical collection windows.
	LookbackDays int `koanf:"lookback_days"`

	// Schedule is the cron expression for daemon-mode daily runs.
	Schedule string `koanf:"schedule"`

	Reward     RewardConfig     `koanf:"reward"`
	Engagement EngagementConfig `koanf:"engagement"`
	Health     HealthConfig     `koanf:"health"`
}

// New creates a Config with defaults. Context is accepted first to
// satisfy the project-wide convention; it is reserved for future use.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:         "info",
		MetricsAddr:      ":9310",
		DatabasePath:     "pulse.db",
		CommunityTag:     "hive-115276",
		Endpoints:        append([]string(nil), DefaultEndpoints...),
		MaxAttempts:      2 * len(DefaultEndpoints),
		RequestTimeoutMS: 15_000,
		WorkerCount:      16,
		LookbackDays:     30,
		Schedule:         "0 6 * * *",
		Reward: RewardConfig{
			PostRate:          2.0,
			CommentRate:       0.5,
			VoteGivenRate:     0.02,
			VoteGivenDailyCap: 0.5,
			VoteReceivedRate:  0.1,
		},
		Engagement: EngagementConfig{
			PostWeight:         10,
			CommentWeight:      5,
			VoteGivenWeight:    2,
			VoteReceivedWeight: 1,
		},
		Health: HealthConfig{
			ActiveUserWeight: 0.4,
			VolumeWeight:     0.3,
			EngagementWeight: 0.3,
			ActiveUserScale:  2,
			VolumeScale:      5,
			EngagementScale:  50,
		},
	}
}
