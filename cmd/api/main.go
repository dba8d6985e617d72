package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Amrkhafagii/mealverse-backend/api/routes"
	"github.com/Amrkhafagii/mealverse-backend/internal/assignment"
	"github.com/Amrkhafagii/mealverse-backend/internal/delivery"
	"github.com/Amrkhafagii/mealverse-backend/internal/notifications"
	"github.com/Amrkhafagii/mealverse-backend/internal/orders"
	"github.com/Amrkhafagii/mealverse-backend/internal/syncqueue"
	"github.com/Amrkhafagii/mealverse-backend/internal/tracking"
	"github.com/Amrkhafagii/mealverse-backend/pkg/config"
	"github.com/Amrkhafagii/mealverse-backend/pkg/db"
	"github.com/Amrkhafagii/mealverse-backend/pkg/logger"
	"github.com/Amrkhafagii/mealverse-backend/pkg/maps"
	"github.com/Amrkhafagii/mealverse-backend/pkg/metrics"
	"github.com/Amrkhafagii/mealverse-backend/pkg/migrate"
	"github.com/Amrkhafagii/mealverse-backend/pkg/outbox"
	"github.com/Amrkhafagii/mealverse-backend/pkg/redis"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

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
	deliverySvc, err := delivery.NewService(deliveryRepo, ordersSvc, dbClient, outboxSvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create delivery service", err)
		os.Exit(1)
	}

	// The recorder defers into the queue while the queue replays through the
	// recorder, so the applier binds after both exist.
	applier := &syncqueue.DeferredApplier{}
	syncMetrics := metrics.NewSyncQueueMetrics(prometheus.DefaultRegisterer)
	syncSvc, err := syncqueue.NewService(syncqueue.NewRepository(dbClient.DB()), applier, cfg.SyncQueue, syncMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create sync queue service", err)
		os.Exit(1)
	}

	var estimator tracking.TravelEstimator
	if cfg.GoogleMaps.APIKey != "" {
		mapsClient, err := maps.NewClient(cfg.GoogleMaps.APIKey)
		if err != nil {
			logg.Error(context.Background(), "failed to create maps client", err)
			os.Exit(1)
		}
		estimator = mapsClient
	} else {
		logg.Warn(context.Background(), "maps api key not set, falling back to haversine eta")
	}

	recorder, err := tracking.NewRecorder(tracking.RecorderParams{
		Store:     deliveryRepo,
		Cache:     redisClient,
		Queue:     syncSvc,
		Estimator: estimator,
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

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:        cfg,
			Logger:        logg,
			DB:            dbClient,
			Redis:         redisClient,
			Orders:        ordersSvc,
			Assignments:   assignmentSvc,
			Deliveries:    deliverySvc,
			Recorder:      recorder,
			SyncQueue:     syncSvc,
			Notifications: notificationsSvc,
		}),
	}

	stopCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-stopCtx.Done():
		logg.Info(ctx, "shutdown signal received, draining connections")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
			os.Exit(1)
		}
	}

	logg.Info(ctx, "api server shutting down gracefully")
}
