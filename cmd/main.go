package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"

	"github.com/menobass/hivepulse/internal/adapters/hive"
	"github.com/menobass/hivepulse/internal/adapters/pool"
	"github.com/menobass/hivepulse/internal/adapters/repository"
	service "github.com/menobass/hivepulse/internal/app"
	"github.com/menobass/hivepulse/internal/config"
	"github.com/menobass/hivepulse/internal/domain/aggregate"
	"github.com/menobass/hivepulse/internal/domain/collect"
	"github.com/menobass/hivepulse/internal/domain/model"
	"github.com/menobass/hivepulse/internal/domain/reward"
	"github.com/menobass/hivepulse/pkg/dateutil"
	"github.com/menobass/hivepulse/pkg/logger"
	"github.com/menobass/hivepulse/pkg/metrics"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:  "hivepulse",
		Usage: "community activity aggregation and reward pipeline",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run the pipeline once for a single day",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "day",
						Usage: "target day (YYYY-MM-DD), defaults to yesterday",
					},
				},
				Action: runOnce,
			},
			{
				Name:   "daemon",
				Usage:  "Run the pipeline on the configured schedule",
				Action: runDaemon,
			},
			{
				Name:  "version",
				Usage: "Print the build version",
				Action: func(c *cli.Context) error {
					fmt.Println(version)
					return nil
				},
			},
			{
				Name:  "users",
				Usage: "Manage the tracked-user registry",
				Subcommands: []*cli.Command{
					{
						Name:      "add",
						Usage:     "Register a user for tracking",
						ArgsUsage: "<username>",
						Action:    usersAdd,
					},
					{
						Name:      "remove",
						Usage:     "Remove a user from tracking",
						ArgsUsage: "<username>",
						Action:    usersRemove,
					},
					{
						Name:   "list",
						Usage:  "List tracked users",
						Action: usersList,
					},
				},
			},
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.Get().Error(ctx, "command failed", logger.Error(err))
		os.Exit(1)
	}
}

// setup loads configuration and assembles the pipeline service.
func setup(ctx context.Context) (*config.Config, *service.Service, *repository.GormStore, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := repository.NewGormStore(cfg.DatabasePath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open store: %w", err)
	}

	client := hive.New(
		hive.WithEndpoints(cfg.Endpoints),
		hive.WithMaxAttempts(cfg.MaxAttempts),
		hive.WithTimeout(time.Duration(cfg.RequestTimeoutMS)*time.Millisecond),
	)
	collector := collect.New(client, collect.WithCommunity(cfg.CommunityTag))
	workers := pool.New(collector, pool.WithWorkers(cfg.WorkerCount))

	svc := service.New(store, workers,
		service.WithAggregator(aggregate.New(
			aggregate.WithWeights(aggregate.Weights{
				Post:         cfg.Engagement.PostWeight,
				Comment:      cfg.Engagement.CommentWeight,
				VoteGiven:    cfg.Engagement.VoteGivenWeight,
				VoteReceived: cfg.Engagement.VoteReceivedWeight,
			}),
			aggregate.WithHealthPolicy(aggregate.HealthPolicy{
				ActiveUserWeight: cfg.Health.ActiveUserWeight,
				VolumeWeight:     cfg.Health.VolumeWeight,
				EngagementWeight: cfg.Health.EngagementWeight,
				ActiveUserScale:  cfg.Health.ActiveUserScale,
				VolumeScale:      cfg.Health.VolumeScale,
				EngagementScale:  cfg.Health.EngagementScale,
			}),
		)),
		service.WithRewardEngine(reward.New(reward.WithRates(reward.Rates{
			Post:              cfg.Reward.PostRate,
			Comment:           cfg.Reward.CommentRate,
			VoteGiven:         cfg.Reward.VoteGivenRate,
			VoteGivenDailyCap: cfg.Reward.VoteGivenDailyCap,
			VoteReceived:      cfg.Reward.VoteReceivedRate,
		}))),
	)
	return cfg, svc, store, nil
}

func runOnce(c *cli.Context) error {
	ctx := c.Context
	_, svc, _, err := setup(ctx)
	if err != nil {
		return err
	}

	day := dateutil.DayOf(time.Now().UTC().AddDate(0, 0, -1))
	if s := c.String("day"); s != "" {
		day, err = dateutil.ParseDay(s)
		if err != nil {
			return fmt.Errorf("invalid --day: %w", err)
		}
	}

	report, err := svc.RunDaily(ctx, day)
	if err != nil {
		return err
	}
	logger.Get().Info(ctx, "run finished",
		logger.String("run_id", report.RunID),
		logger.String("day", string(report.Day)),
		logger.Int("users", len(report.Activities)),
		logger.Int("spotlights", len(report.Spotlights)),
		logger.Int("warnings", len(report.Warnings)))
	return nil
}

func runDaemon(c *cli.Context) error {
	ctx := c.Context
	cfg, svc, _, err := setup(ctx)
	if err != nil {
		return err
	}
	log := logger.Get().Named("daemon")

	// Expose the metrics registry while the daemon runs.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	go func() {
		log.Info(ctx, "starting metrics server", logger.String("addr", cfg.MetricsAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "metrics server failed", logger.Error(err))
		}
	}()

	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.Schedule, func() {
		day := dateutil.DayOf(time.Now().UTC().AddDate(0, 0, -1))
		if _, err := svc.RunDaily(ctx, day); err != nil {
			log.Error(ctx, "scheduled run failed",
				logger.String("day", string(day)), logger.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", cfg.Schedule, err)
	}
	scheduler.Start()
	log.Info(ctx, "daemon started", logger.String("schedule", cfg.Schedule))

	<-ctx.Done()
	log.Info(ctx, "shutting down")

	cronCtx := scheduler.Stop()
	<-cronCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func usersAdd(c *cli.Context) error {
	ctx := c.Context
	username := c.Args().First()
	if username == "" {
		return fmt.Errorf("usage: users add <username>")
	}
	if !collect.ValidUsername(username) {
		return fmt.Errorf("%w: %q", collect.ErrInvalidUsername, username)
	}
	_, _, store, err := setup(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if err := store.UpsertTrackedUser(ctx, model.TrackedUser{
		Username: username,
		JoinedAt: &now,
		Active:   true,
	}); err != nil {
		return err
	}
	logger.Get().Info(ctx, "user registered", logger.String("username", username))
	return nil
}

func usersRemove(c *cli.Context) error {
	ctx := c.Context
	username := c.Args().First()
	if username == "" {
		return fmt.Errorf("usage: users remove <username>")
	}
	_, _, store, err := setup(ctx)
	if err != nil {
		return err
	}
	if err := store.RemoveTrackedUser(ctx, username); err != nil {
		return err
	}
	logger.Get().Info(ctx, "user removed", logger.String("username", username))
	return nil
}

func usersList(c *cli.Context) error {
	ctx := c.Context
	_, _, store, err := setup(ctx)
	if err != nil {
		return err
	}
	users, err := store.GetTrackedUsers(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		state := "inactive"
		if u.Active {
			state = "active"
		}
		joined := "legacy"
		if u.JoinedAt != nil {
			joined = u.JoinedAt.Format("2006-01-02")
		}
		fmt.Printf("%-16s  %-8s  joined %s\n", u.Username, state, joined)
	}
	return nil
}
