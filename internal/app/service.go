// Package service wires the collection, aggregation, reward, and
// spotlight stages into one daily pipeline run.
//
// Conventions:
//   - RunDaily is the single entry point; everything downstream of the
//     collection join runs on the calling goroutine.
//   - Store write failures abort the run; per-user collection failures
//     degrade to zero-activity records and a Warning.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/menobass/hivepulse/internal/adapters/pool"
	"github.com/menobass/hivepulse/internal/adapters/repository"
	"github.com/menobass/hivepulse/internal/domain/aggregate"
	"github.com/menobass/hivepulse/internal/domain/model"
	"github.com/menobass/hivepulse/internal/domain/reward"
	"github.com/menobass/hivepulse/internal/domain/spotlight"
	"github.com/menobass/hivepulse/pkg/dateutil"
	"github.com/menobass/hivepulse/pkg/logger"
	"github.com/menobass/hivepulse/pkg/metrics"
)

// collectLookbackDays covers the target day plus one day of slack for
// events the upstream API timestamps near the boundary.
const collectLookbackDays = 2

// Warning records one non-fatal degradation during a run.
type Warning struct {
	Username string
	Day      dateutil.Day
	Op       string
	Err      error
}

// Report is the bundle handed to the reporting layer after a run.
type Report struct {
	RunID       string
	Day         dateutil.Day
	GeneratedAt time.Time
	Snapshot    model.CommunityDailySnapshot
	Activities  map[string]model.DailyActivity
	Ledger      map[string]model.PatacoinLedgerEntry
	Spotlights  map[model.SpotlightCategory]model.SpotlightResult
	Warnings    []Warning
}

// Collector gathers one user's raw events for a window.
type Collector interface {
	CollectAll(ctx context.Context, usernames []string, window dateutil.Window) map[string]pool.Result
}

// Service runs the daily activity pipeline.
type Service struct {
	store      repository.Store
	collector  Collector
	aggregator *aggregate.Aggregator
	engine     *reward.Engine
	selector   *spotlight.Selector

	clock  func() time.Time
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithAggregator sets the metrics aggregator.
func WithAggregator(a *aggregate.Aggregator) Option {
	return func(s *Service) {
		s.aggregator = a
	}
}

// WithRewardEngine sets the Patacoin engine.
func WithRewardEngine(e *reward.Engine) Option {
	return func(s *Service) {
		s.engine = e
	}
}

// WithClock overrides the wall clock, for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// New creates a Service over the given store and collector.
func New(store repository.Store, collector Collector, opts ...Option) *Service {
	s := &Service{
		store:      store,
		collector:  collector,
		aggregator: aggregate.New(),
		engine:     reward.New(),
		selector:   spotlight.New(),
		clock:      time.Now,
		logger:     logger.Get().Named("pipeline"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunDaily executes one full pipeline run for the given day and
// returns the report bundle. Re-running the same day with the same
// upstream data produces an identical snapshot and ledger.
func (s *Service) RunDaily(ctx context.Context, day dateutil.Day) (*Report, error) {
	started := s.clock()
	s.logger.Info(ctx, "starting pipeline run", logger.String("day", string(day)))

	users, err := s.store.GetTrackedUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRunFailed, err)
	}
	usernames := make([]string, 0, len(users))
	for _, u := range users {
		if u.Active {
			usernames = append(usernames, u.Username)
		}
	}
	sort.Strings(usernames)

	results := s.collector.CollectAll(ctx, usernames, day.Window(collectLookbackDays))

	var warnings []Warning
	events := make(map[string]aggregate.UserEvents, len(results))
	for _, username := range usernames {
		result := results[username]
		if result.Err != nil {
			warnings = append(warnings, Warning{
				Username: username,
				Day:      day,
				Op:       "collect",
				Err:      result.Err,
			})
			s.logger.Warn(ctx, "collection degraded to zero activity",
				logger.String("username", username),
				logger.Error(result.Err))
			events[username] = aggregate.UserEvents{Collected: false}
			continue
		}
		events[username] = aggregate.UserEvents{Events: result.Events, Collected: true}
	}

	prior, err := s.priorSnapshot(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRunFailed, err)
	}

	activities, snapshot := s.aggregator.Aggregate(events, day, prior)

	ledger := make(map[string]model.PatacoinLedgerEntry, len(activities))
	minted := 0.0
	for _, username := range usernames {
		balance, err := s.store.GetBalance(ctx, username, day)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRunFailed, err)
		}
		entry := s.engine.Accrue(activities[username], balance)
		ledger[username] = entry
		minted += entry.Total
	}

	spotlights := s.selector.Select(activities, ledger)

	if err := s.persist(ctx, snapshot, activities, ledger); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRunFailed, err)
	}

	finished := s.clock()
	metrics.RecordRunDuration(finished.Sub(started).Seconds())
	metrics.UpdateLastRunUnix(float64(finished.Unix()))
	metrics.UpdateActiveUsers(snapshot.ActiveUsers)
	metrics.UpdateHealthScore(snapshot.HealthScore)
	metrics.RecordPatacoinsMinted(minted)

	s.logger.Info(ctx, "pipeline run complete",
		logger.String("day", string(day)),
		logger.Int("users", len(usernames)),
		logger.Int("active_users", snapshot.ActiveUsers),
		logger.Int("warnings", len(warnings)),
		logger.Float64("health_score", snapshot.HealthScore),
		logger.Duration("elapsed", finished.Sub(started)))

	return &Report{
		RunID:       uuid.NewString(),
		Day:         day,
		GeneratedAt: finished,
		Snapshot:    snapshot,
		Activities:  activities,
		Ledger:      ledger,
		Spotlights:  spotlights,
		Warnings:    warnings,
	}, nil
}

// priorSnapshot loads yesterday's snapshot; a missing snapshot is a
// first run, not an error.
func (s *Service) priorSnapshot(ctx context.Context, day dateutil.Day) (*model.CommunityDailySnapshot, error) {
	prior, err := s.store.GetSnapshot(ctx, day.Prev())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &prior, nil
}

// persist writes the run's output. Any store failure aborts the run so
// a partial day is never committed silently.
func (s *Service) persist(ctx context.Context, snapshot model.CommunityDailySnapshot, activities map[string]model.DailyActivity, ledger map[string]model.PatacoinLedgerEntry) error {
	usernames := make([]string, 0, len(activities))
	for username := range activities {
		usernames = append(usernames, username)
	}
	sort.Strings(usernames)

	for _, username := range usernames {
		if err := s.store.PutActivity(ctx, activities[username]); err != nil {
			return err
		}
		if err := s.store.PutLedgerEntry(ctx, ledger[username]); err != nil {
			return err
		}
	}
	return s.store.PutSnapshot(ctx, snapshot)
}
