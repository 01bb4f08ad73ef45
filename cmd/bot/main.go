package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"playpoints/internal/config"
	"playpoints/internal/database"
	"playpoints/internal/discord"
	"playpoints/internal/logging"
	"playpoints/internal/metrics"
	"playpoints/internal/outbox"
	"playpoints/internal/roles"
	"playpoints/internal/scheduler"
	"playpoints/internal/scoring"
	"playpoints/internal/sessions"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(logging.Options{Level: cfg.LogLevel, Mode: cfg.LogMode, File: cfg.LogFile})
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("bot_exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	logger.Info("starting",
		"guilds", len(cfg.Guilds.IDs()),
		"timezone", cfg.Location.String(),
		"discord_token", logging.MaskToken(cfg.DiscordToken),
	)

	// Initialize database
	db, err := database.New(cfg.DatabaseDSN, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	repository := database.NewRepository(db)

	m := metrics.Default()

	var queue outbox.Outbox = outbox.Discard{}
	if cfg.RedisDSN != "" {
		redisOutbox, err := outbox.New(cfg.RedisDSN)
		if err != nil {
			return err
		}
		defer redisOutbox.Close()
		queue = redisOutbox
		logger.Info("ledger_outbox_enabled")
	} else {
		logger.Warn("ledger_outbox_disabled", "reason", "REDIS_DSN not set")
	}

	bot, err := discord.New(cfg.DiscordToken, logger)
	if err != nil {
		return err
	}
	view := bot.View()
	mutator := discord.NewRoleMutator(bot.Session(), cfg.RoleMutationsPerSecond)

	engine := scoring.NewEngine(view, repository, cfg.Guilds, logger,
		scoring.WithOutbox(queue),
		scoring.WithMetrics(m),
		scoring.WithLocation(cfg.Location),
	)
	tenure := roles.NewTenureSync(view, mutator, repository, cfg.Guilds, logger,
		roles.WithTenureLocation(cfg.Location),
		roles.WithTenureMetrics(m),
	)
	dynamic := roles.NewDynamicSync(view, mutator, repository, cfg.Guilds, logger,
		roles.WithDynamicLocation(cfg.Location),
		roles.WithDynamicMetrics(m),
	)
	tracker := sessions.NewTracker(repository, cfg.Guilds, logger, sessions.WithMetrics(m))

	if err := tracker.Recover(ctx); err != nil {
		return err
	}

	err = bot.Start(discord.Services{
		Store:    repository,
		Scoring:  engine,
		Tracker:  tracker,
		Tenure:   tenure,
		Guilds:   cfg.Guilds,
		Location: cfg.Location,
	})
	if err != nil {
		return err
	}

	sched := scheduler.New(logger, m,
		scheduler.Task{Name: "scoring", Interval: cfg.TickInterval, Run: engine.Tick},
		scheduler.Task{Name: "tenure", Interval: cfg.TenureInterval, RunOnStart: true, Run: tenure.Run},
		scheduler.Task{Name: "dynamic_roles", Interval: cfg.DynamicRoleInterval, RunOnStart: true, Run: dynamic.Run},
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(gctx) })
	if cfg.MetricsAddr != "" {
		g.Go(func() error { return metrics.Serve(gctx, cfg.MetricsAddr) })
		logger.Info("metrics_listening", "addr", cfg.MetricsAddr)
	}

	err = g.Wait()
	logger.Info("shutting_down")

	if stopErr := bot.Stop(); stopErr != nil {
		logger.Warn("bot_stop_failed", "error", stopErr)
	}

	// ctx is already cancelled here
	flushCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	tracker.Flush(flushCtx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
