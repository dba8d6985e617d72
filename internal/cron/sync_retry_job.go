package cron

import (
	"context"
	"fmt"

	"github.com/Amrkhafagii/mealverse-backend/internal/syncqueue"
	"github.com/Amrkhafagii/mealverse-backend/pkg/logger"
)

type SyncRetryJobParams struct {
	Logger  *logger.Logger
	Flusher queueFlusher
}

type queueFlusher interface {
	Flush(ctx context.Context, online bool) (*syncqueue.FlushStats, error)
}

// NewSyncRetryJob builds the job that drains the offline sync queue on the
// server side, retrying entries whose earlier flush attempts failed.
func NewSyncRetryJob(params SyncRetryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Flusher == nil {
		return nil, fmt.Errorf("sync queue flusher required")
	}
	return &syncRetryJob{
		logg:    params.Logger,
		flusher: params.Flusher,
	}, nil
}

type syncRetryJob struct {
	logg    *logger.Logger
	flusher queueFlusher
}

func (j *syncRetryJob) Name() string { return "sync-retry" }

func (j *syncRetryJob) Run(ctx context.Context) error {
	stats, err := j.flusher.Flush(ctx, true)
	if err != nil {
		return fmt.Errorf("sync retry flush: %w", err)
	}
	if stats.Applied == 0 && stats.Failed == 0 && stats.Suspended == 0 {
		return nil
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"applied":   stats.Applied,
		"discarded": stats.Discarded,
		"suspended": stats.Suspended,
		"failed":    stats.Failed,
		"skipped":   stats.Skipped,
	})
	j.logg.Info(logCtx, "sync retry flush complete")
	return nil
}
