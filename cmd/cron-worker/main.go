package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dvillareal/automarket-backend/internal/cron"
	"github.com/dvillareal/automarket-backend/internal/ledger"
	"github.com/dvillareal/automarket-backend/internal/notifications"
	"github.com/dvillareal/automarket-backend/internal/orders"
	"github.com/dvillareal/automarket-backend/pkg/config"
	"github.com/dvillareal/automarket-backend/pkg/db"
	"github.com/dvillareal/automarket-backend/pkg/logger"
	"github.com/dvillareal/automarket-backend/pkg/metrics"
	"github.com/dvillareal/automarket-backend/pkg/migrate"
	"github.com/dvillareal/automarket-backend/pkg/outbox"
	"github.com/dvillareal/automarket-backend/pkg/redis"
)

const (
	maintenanceLockKeyFormat = "am:cron-worker:lock:%s"
	payoutLockKeyFormat      = "am:payout-sweep:lock:%s"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxSvc := outbox.NewService(outboxRepo, logg)
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(dbClient.DB()), dbClient, outboxSvc, metrics.NewLedgerMetrics(prometheus.DefaultRegisterer))
	if err != nil {
		logg.Error(context.Background(), "failed to build ledger service", err)
		os.Exit(1)
	}

	payoutJob, err := cron.NewPayoutSweepJob(cron.PayoutSweepJobParams{
		Logger:    logg,
		Orders:    orders.NewRepository(dbClient.DB()),
		Ledger:    ledgerSvc,
		BatchSize: cfg.PayoutSweep.BatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payout sweep job", err)
		os.Exit(1)
	}

	cleanupJob, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: notifications.NewRepository(dbClient.DB()),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notification cleanup job", err)
		os.Exit(1)
	}

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Repository:  outboxRepo,
		MinAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	maintenanceLock, err := cron.NewRedisLock(redisClient, lockKey(maintenanceLockKeyFormat, cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create maintenance lock", err)
		os.Exit(1)
	}
	maintenance, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(cleanupJob, retentionJob),
		Lock:     maintenanceLock,
		Metrics:  metricsCollector,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create maintenance cron service", err)
		os.Exit(1)
	}

	payoutLock, err := cron.NewRedisLock(redisClient, lockKey(payoutLockKeyFormat, cfg.App.Env), 2*cfg.PayoutSweep.Interval)
	if err != nil {
		logg.Error(context.Background(), "failed to create payout sweep lock", err)
		os.Exit(1)
	}
	payoutSweep, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(payoutJob),
		Lock:     payoutLock,
		Metrics:  metricsCollector,
		Interval: cfg.PayoutSweep.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payout sweep service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	errCh := make(chan error, 2)
	go func() {
		errCh <- maintenance.Run(ctx)
	}()
	go func() {
		errCh <- payoutSweep.Run(ctx)
	}()

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(format, env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(format, env)
}
