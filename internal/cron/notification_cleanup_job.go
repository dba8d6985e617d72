package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/Amrkhafagii/mealverse-backend/pkg/logger"
)

const notificationRetentionDays = 30

type NotificationCleanupJobParams struct {
	Logger    *logger.Logger
	Purger    notificationPurger
	Retention int
}

type notificationPurger interface {
	PurgeRead(ctx context.Context, olderThan time.Duration) (int64, error)
}

func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Purger == nil {
		return nil, fmt.Errorf("notification purger required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = notificationRetentionDays
	}
	return &notificationCleanupJob{
		logg:      params.Logger,
		purger:    params.Purger,
		retention: retention,
	}, nil
}

type notificationCleanupJob struct {
	logg      *logger.Logger
	purger    notificationPurger
	retention int
}

func (j *notificationCleanupJob) Name() string { return "notification-cleanup" }

func (j *notificationCleanupJob) Run(ctx context.Context) error {
	window := time.Duration(j.retention) * 24 * time.Hour
	deleted, err := j.purger.PurgeRead(ctx, window)
	if err != nil {
		return fmt.Errorf("notification cleanup: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, "notification cleanup complete")
	return nil
}
