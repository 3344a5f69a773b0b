package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/paperhouse/warehouse-backend/internal/notifications"
	"github.com/paperhouse/warehouse-backend/internal/users"
	"github.com/paperhouse/warehouse-backend/pkg/config"
	"github.com/paperhouse/warehouse-backend/pkg/db"
	"github.com/paperhouse/warehouse-backend/pkg/logger"
	"github.com/paperhouse/warehouse-backend/pkg/metrics"
	"github.com/paperhouse/warehouse-backend/pkg/migrate"
	"github.com/paperhouse/warehouse-backend/pkg/outbox"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	conn := dbClient.DB()
	consumer, err := notifications.NewConsumer(notifications.NewRepository(conn), users.NewRepository(conn), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build notifications consumer", err)
		os.Exit(1)
	}

	drainer, err := outbox.NewDrainer(
		outbox.NewRepository(conn),
		logg,
		metrics.NewDrainMetrics(prometheus.DefaultRegisterer),
		outbox.DrainerOptions{
			BatchSize:   cfg.Outbox.BatchSize,
			Interval:    time.Duration(cfg.Outbox.PollIntervalMS) * time.Millisecond,
			MaxAttempts: cfg.Outbox.MaxAttempts,
		},
		consumer,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to build outbox drainer", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "worker",
	})
	logg.Info(ctx, "starting outbox worker")

	if err := drainer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "outbox worker shutting down gracefully")
}
