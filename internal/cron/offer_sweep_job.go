package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/Amrkhafagii/mealverse-backend/internal/assignment"
	"github.com/Amrkhafagii/mealverse-backend/pkg/logger"
)

type OfferSweepJobParams struct {
	Logger  *logger.Logger
	Sweeper offerSweeper
}

type offerSweeper interface {
	SweepExpiredOffers(ctx context.Context, now time.Time) (*assignment.SweepStats, error)
}

// NewOfferSweepJob builds the job that times out stale restaurant offers.
func NewOfferSweepJob(params OfferSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("assignment sweeper required")
	}
	return &offerSweepJob{
		logg:    params.Logger,
		sweeper: params.Sweeper,
		now:     time.Now,
	}, nil
}

type offerSweepJob struct {
	logg    *logger.Logger
	sweeper offerSweeper
	now     func() time.Time
}

func (j *offerSweepJob) Name() string { return "offer-sweep" }

func (j *offerSweepJob) Run(ctx context.Context) error {
	stats, err := j.sweeper.SweepExpiredOffers(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("offer sweep: %w", err)
	}
	if stats.Expired == 0 {
		return nil
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"expired":    stats.Expired,
		"re_offered": stats.ReOffered,
		"exhausted":  stats.Exhausted,
	})
	j.logg.Info(logCtx, "offer sweep complete")
	return nil
}
