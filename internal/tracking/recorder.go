package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Amrkhafagii/mealverse-backend/pkg/db/models"
	"github.com/Amrkhafagii/mealverse-backend/pkg/enums"
	pkgerrors "github.com/Amrkhafagii/mealverse-backend/pkg/errors"
	"github.com/Amrkhafagii/mealverse-backend/pkg/logger"
	"github.com/Amrkhafagii/mealverse-backend/pkg/maps"
	"github.com/Amrkhafagii/mealverse-backend/pkg/outbox"
	"github.com/Amrkhafagii/mealverse-backend/pkg/outbox/payloads"
)

// fallbackSpeedKmh approximates urban driving speed when no directions
// estimate is available.
const fallbackSpeedKmh = 25.0

// DeliveryStore is the slice of delivery persistence the recorder needs.
type DeliveryStore interface {
	FindActiveByOrder(ctx context.Context, orderID uuid.UUID) (*models.DeliveryAssignment, *models.Order, error)
	UpdateEstimatedDeliveryTime(ctx context.Context, deliveryID uuid.UUID, eta time.Time) error
}

// PositionCache stores the latest serialized driver position per order.
type PositionCache interface {
	StoreDriverPosition(ctx context.Context, orderID, payload string, ttl time.Duration) error
	GetDriverPosition(ctx context.Context, orderID string) (string, error)
}

// Enqueuer defers a location write that cannot be applied right now.
type Enqueuer interface {
	EnqueueLocation(ctx context.Context, deviceID string, orderID uuid.UUID, payload json.RawMessage, baseUpdatedAt time.Time) error
}

// TravelEstimator refines ETA using a routing backend. Optional.
type TravelEstimator interface {
	EstimateDriving(ctx context.Context, originLat, originLng, destLat, destLng float64) (*maps.TravelEstimate, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// CachedPosition is the JSON payload stored in the position cache.
type CachedPosition struct {
	DriverID   uuid.UUID `json:"driverId"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	AccuracyM  float64   `json:"accuracyM"`
	RecordedAt time.Time `json:"recordedAt"`
}

// RecordInput is one incoming sample from a driver device.
type RecordInput struct {
	OrderID  uuid.UUID
	DriverID uuid.UUID
	DeviceID string
	Online   bool
	Sample   LocationSample
}

// RecordResult reports what happened to a sample.
type RecordResult struct {
	Queued               bool
	Mode                 ModeDecision
	EstimatedArrival     *time.Time
	DistanceToCustomerKm float64
}

// Recorder folds accepted location samples into delivery state: trail ring,
// position cache, ETA recompute, and the location-updated event.
type Recorder struct {
	store     DeliveryStore
	cache     PositionCache
	queue     Enqueuer
	estimator TravelEstimator
	tx        txRunner
	outbox    outboxPublisher
	logg      *logger.Logger
	cacheTTL  time.Duration
	trailSize int

	mtx    sync.Mutex
	trails map[uuid.UUID]*Trail
}

// RecorderParams bundles the recorder dependencies.
type RecorderParams struct {
	Store     DeliveryStore
	Cache     PositionCache
	Queue     Enqueuer
	Estimator TravelEstimator
	Tx        txRunner
	Outbox    outboxPublisher
	Logger    *logger.Logger
	CacheTTL  time.Duration
	TrailSize int
}

// NewRecorder validates dependencies and builds a Recorder.
func NewRecorder(params RecorderParams) (*Recorder, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("delivery store required")
	}
	if params.Cache == nil {
		return nil, fmt.Errorf("position cache required")
	}
	if params.Queue == nil {
		return nil, fmt.Errorf("sync queue required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.CacheTTL <= 0 {
		params.CacheTTL = 10 * time.Minute
	}
	if params.TrailSize <= 0 {
		params.TrailSize = 50
	}
	return &Recorder{
		store:     params.Store,
		cache:     params.Cache,
		queue:     params.Queue,
		estimator: params.Estimator,
		tx:        params.Tx,
		outbox:    params.Outbox,
		logg:      params.Logger,
		cacheTTL:  params.CacheTTL,
		trailSize: params.TrailSize,
		trails:    make(map[uuid.UUID]*Trail),
	}, nil
}

// RecordSample accepts one sample for an active delivery. Offline samples are
// queued for the next flush instead of applied.
func (r *Recorder) RecordSample(ctx context.Context, input RecordInput) (*RecordResult, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.DriverID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "driver id required")
	}

	if !input.Online {
		payload, err := json.Marshal(input.Sample)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode sample")
		}
		if err := r.queue.EnqueueLocation(ctx, input.DeviceID, input.OrderID, payload, input.Sample.RecordedAt); err != nil {
			return nil, err
		}
		return &RecordResult{Queued: true}, nil
	}

	delivery, order, err := r.store.FindActiveByOrder(ctx, input.OrderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active delivery for order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
	}
	if delivery.DriverID == nil || *delivery.DriverID != input.DriverID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "delivery does not belong to driver")
	}
	if delivery.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "delivery already finished")
	}

	r.trail(delivery.ID).Push(input.Sample)

	distanceKm := HaversineKm(
		input.Sample.Latitude, input.Sample.Longitude,
		order.DeliveryLatitude, order.DeliveryLongitude,
	)

	result := &RecordResult{
		DistanceToCustomerKm: distanceKm,
		Mode: CalculateTrackingMode(ModeInput{
			OrderStatus:             order.Status,
			DistanceToDestinationKm: distanceKm,
		}),
	}

	if err := r.cachePosition(ctx, input, order.ID); err != nil && r.logg != nil {
		r.logg.Warn(ctx, "driver position cache write failed")
	}

	if delivery.Status == enums.DeliveryStatusPickedUp || delivery.Status == enums.DeliveryStatusOnTheWay {
		eta := r.estimateArrival(ctx, input.Sample, order, distanceKm)
		if err := r.store.UpdateEstimatedDeliveryTime(ctx, delivery.ID, eta); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update eta")
		}
		result.EstimatedArrival = &eta
	}

	err = r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return r.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDeliveryLocationUpdated,
			AggregateType: enums.AggregateDeliveryAssignment,
			AggregateID:   delivery.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.DriverID, Role: enums.ActorDriver},
			Data: payloads.DeliveryLocationUpdatedEvent{
				DeliveryID: delivery.ID,
				OrderID:    order.ID,
				DriverID:   input.DriverID,
				Latitude:   input.Sample.Latitude,
				Longitude:  input.Sample.Longitude,
				RecordedAt: input.Sample.RecordedAt,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DriverPosition returns the cached last-known position for an order.
func (r *Recorder) DriverPosition(ctx context.Context, orderID uuid.UUID) (*CachedPosition, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	raw, err := r.cache.GetDriverPosition(ctx, orderID.String())
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no recent driver position")
	}
	var pos CachedPosition
	if err := json.Unmarshal([]byte(raw), &pos); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode cached position")
	}
	return &pos, nil
}

// TrailSnapshot exposes the recent samples for a delivery, oldest first.
func (r *Recorder) TrailSnapshot(deliveryID uuid.UUID) []LocationSample {
	return r.trail(deliveryID).Snapshot()
}

func (r *Recorder) trail(deliveryID uuid.UUID) *Trail {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	trail, ok := r.trails[deliveryID]
	if !ok {
		trail = NewTrail(r.trailSize)
		r.trails[deliveryID] = trail
	}
	return trail
}

func (r *Recorder) cachePosition(ctx context.Context, input RecordInput, orderID uuid.UUID) error {
	payload, err := json.Marshal(CachedPosition{
		DriverID:   input.DriverID,
		Latitude:   input.Sample.Latitude,
		Longitude:  input.Sample.Longitude,
		AccuracyM:  input.Sample.AccuracyM,
		RecordedAt: input.Sample.RecordedAt,
	})
	if err != nil {
		return err
	}
	return r.cache.StoreDriverPosition(ctx, orderID.String(), string(payload), r.cacheTTL)
}

func (r *Recorder) estimateArrival(ctx context.Context, sample LocationSample, order *models.Order, distanceKm float64) time.Time {
	now := sample.RecordedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	if r.estimator != nil {
		estimate, err := r.estimator.EstimateDriving(ctx,
			sample.Latitude, sample.Longitude,
			order.DeliveryLatitude, order.DeliveryLongitude,
		)
		if err == nil && estimate != nil {
			return now.Add(estimate.Duration)
		}
		if r.logg != nil {
			r.logg.Warn(ctx, "directions estimate failed, falling back to haversine")
		}
	}
	hours := distanceKm / fallbackSpeedKmh
	return now.Add(time.Duration(hours * float64(time.Hour)))
}
