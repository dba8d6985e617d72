package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Amrkhafagii/mealverse-backend/internal/assignment"
	"github.com/Amrkhafagii/mealverse-backend/internal/cron"
	"github.com/Amrkhafagii/mealverse-backend/internal/delivery"
	"github.com/Amrkhafagii/mealverse-backend/internal/notifications"
	"github.com/Amrkhafagii/mealverse-backend/internal/orders"
	"github.com/Amrkhafagii/mealverse-backend/internal/syncqueue"
	"github.com/Amrkhafagii/mealverse-backend/internal/tracking"
	"github.com/Amrkhafagii/mealverse-backend/pkg/config"
	"github.com/Amrkhafagii/mealverse-backend/pkg/db"
	"github.com/Amrkhafagii/mealverse-backend/pkg/logger"
	"github.com/Amrkhafagii/mealverse-backend/pkg/metrics"
	"github.com/Amrkhafagii/mealverse-backend/pkg/migrate"
	"github.com/Amrkhafagii/mealverse-backend/pkg/outbox"
	"github.com/Amrkhafagii/mealverse-backend/pkg/redis"
)

const lockKeyFormat = "mv:cron-worker:lock:%s"

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

	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxSvc := outbox.NewService(outboxRepo, logg)

	ordersSvc, err := orders.NewService(orders.NewRepository(dbClient.DB()), dbClient, outboxSvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	assignmentSvc, err := assignment.NewService(
		assignment.NewRepository(dbClient.DB()),
		ordersSvc,
		dbClient,
		outboxSvc,
		assignment.AllowAllOracle{},
		assignment.SystemClock(),
		cfg.Assignment,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create assignment service", err)
		os.Exit(1)
	}

	deliveryRepo := delivery.NewRepository(dbClient.DB())

	applier := &syncqueue.DeferredApplier{}
	syncMetrics := metrics.NewSyncQueueMetrics(prometheus.DefaultRegisterer)
	syncSvc, err := syncqueue.NewService(syncqueue.NewRepository(dbClient.DB()), applier, cfg.SyncQueue, syncMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create sync queue service", err)
		os.Exit(1)
	}

	recorder, err := tracking.NewRecorder(tracking.RecorderParams{
		Store:     deliveryRepo,
		Cache:     redisClient,
		Queue:     syncSvc,
		Tx:        dbClient,
		Outbox:    outboxSvc,
		Logger:    logg,
		CacheTTL:  cfg.Tracking.PositionCacheTTL,
		TrailSize: cfg.Tracking.TrailSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create location recorder", err)
		os.Exit(1)
	}

	queueApplier, err := tracking.NewQueueApplier(recorder, deliveryRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create queue applier", err)
		os.Exit(1)
	}
	applier.Bind(queueApplier)

	notificationsSvc, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	offerSweep, err := cron.NewOfferSweepJob(cron.OfferSweepJobParams{
		Logger:  logg,
		Sweeper: assignmentSvc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create offer sweep job", err)
		os.Exit(1)
	}

	syncRetry, err := cron.NewSyncRetryJob(cron.SyncRetryJobParams{
		Logger:  logg,
		Flusher: syncSvc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sync retry job", err)
		os.Exit(1)
	}

	notificationCleanup, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:    logg,
		Purger:    notificationsSvc,
		Retention: cfg.Cron.NotificationRetention,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notification cleanup job", err)
		os.Exit(1)
	}

	outboxRetention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outboxRepo,
		Retention:  cfg.Cron.OutboxRetention,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(offerSweep, syncRetry, notificationCleanup, outboxRetention)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
