package tracking

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Amrkhafagii/mealverse-backend/pkg/db/models"
	"github.com/Amrkhafagii/mealverse-backend/pkg/enums"
	pkgerrors "github.com/Amrkhafagii/mealverse-backend/pkg/errors"
	"github.com/Amrkhafagii/mealverse-backend/pkg/maps"
	"github.com/Amrkhafagii/mealverse-backend/pkg/outbox"
)

type stubDeliveryStore struct {
	delivery *models.DeliveryAssignment
	order    *models.Order
	etaSet   *time.Time
}

func (s *stubDeliveryStore) FindActiveByOrder(ctx context.Context, orderID uuid.UUID) (*models.DeliveryAssignment, *models.Order, error) {
	if s.delivery == nil || s.order == nil || s.order.ID != orderID {
		return nil, nil, gorm.ErrRecordNotFound
	}
	return s.delivery, s.order, nil
}

func (s *stubDeliveryStore) UpdateEstimatedDeliveryTime(ctx context.Context, deliveryID uuid.UUID, eta time.Time) error {
	s.etaSet = &eta
	return nil
}

type stubPositionCache struct {
	stored map[string]string
}

func (s *stubPositionCache) StoreDriverPosition(ctx context.Context, orderID, payload string, ttl time.Duration) error {
	if s.stored == nil {
		s.stored = make(map[string]string)
	}
	s.stored[orderID] = payload
	return nil
}

func (s *stubPositionCache) GetDriverPosition(ctx context.Context, orderID string) (string, error) {
	payload, ok := s.stored[orderID]
	if !ok {
		return "", gorm.ErrRecordNotFound
	}
	return payload, nil
}

type stubEnqueuer struct {
	entries int
}

func (s *stubEnqueuer) EnqueueLocation(ctx context.Context, deviceID string, orderID uuid.UUID, payload json.RawMessage, baseUpdatedAt time.Time) error {
	s.entries++
	return nil
}

type stubRecorderTx struct{}

func (stubRecorderTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type stubRecorderOutbox struct {
	events []outbox.DomainEvent
}

func (s *stubRecorderOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type stubEstimator struct {
	estimate *maps.TravelEstimate
	err      error
}

func (s *stubEstimator) EstimateDriving(ctx context.Context, originLat, originLng, destLat, destLng float64) (*maps.TravelEstimate, error) {
	return s.estimate, s.err
}

func newRecorderFixture(t *testing.T, status enums.DeliveryStatus, estimator TravelEstimator) (*Recorder, *stubDeliveryStore, *stubPositionCache, *stubEnqueuer, *stubRecorderOutbox, RecordInput) {
	t.Helper()

	driverID := uuid.New()
	store := &stubDeliveryStore{
		delivery: &models.DeliveryAssignment{
			ID:       uuid.New(),
			OrderID:  uuid.New(),
			DriverID: &driverID,
			Status:   status,
		},
		order: &models.Order{
			Status:            enums.OrderStatusOnTheWay,
			DeliveryLatitude:  30.0444,
			DeliveryLongitude: 31.2357,
		},
	}
	store.order.ID = store.delivery.OrderID

	cache := &stubPositionCache{}
	queue := &stubEnqueuer{}
	outboxStub := &stubRecorderOutbox{}

	recorder, err := NewRecorder(RecorderParams{
		Store:     store,
		Cache:     cache,
		Queue:     queue,
		Estimator: estimator,
		Tx:        stubRecorderTx{},
		Outbox:    outboxStub,
	})
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}

	input := RecordInput{
		OrderID:  store.order.ID,
		DriverID: driverID,
		DeviceID: "device-1",
		Online:   true,
		Sample: LocationSample{
			Latitude:   30.0500,
			Longitude:  31.2400,
			AccuracyM:  8,
			RecordedAt: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		},
	}
	return recorder, store, cache, queue, outboxStub, input
}

func TestRecordSampleUpdatesCacheEtaAndEvent(t *testing.T) {
	recorder, store, cache, _, outboxStub, input := newRecorderFixture(t, enums.DeliveryStatusOnTheWay, nil)

	result, err := recorder.RecordSample(context.Background(), input)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if result.Queued {
		t.Fatal("online sample should not be queued")
	}
	if result.EstimatedArrival == nil || store.etaSet == nil {
		t.Fatal("expected eta recompute while on the way")
	}
	if !result.EstimatedArrival.After(input.Sample.RecordedAt) {
		t.Fatal("eta should be after the sample timestamp")
	}
	if result.Mode.Mode != enums.TrackingModeHigh {
		t.Fatalf("mode = %s, want high within one km", result.Mode.Mode)
	}

	if _, ok := cache.stored[input.OrderID.String()]; !ok {
		t.Fatal("expected cached driver position")
	}
	pos, err := recorder.DriverPosition(context.Background(), input.OrderID)
	if err != nil {
		t.Fatalf("driver position: %v", err)
	}
	if pos.DriverID != input.DriverID || pos.Latitude != input.Sample.Latitude {
		t.Fatalf("cached position = %+v", pos)
	}

	if len(outboxStub.events) != 1 {
		t.Fatalf("events = %d, want 1", len(outboxStub.events))
	}
	if outboxStub.events[0].EventType != enums.EventDeliveryLocationUpdated {
		t.Fatalf("event type = %s", outboxStub.events[0].EventType)
	}

	if snapshot := recorder.TrailSnapshot(store.delivery.ID); len(snapshot) != 1 {
		t.Fatalf("trail len = %d, want 1", len(snapshot))
	}
}

func TestRecordSamplePrefersDirectionsEstimate(t *testing.T) {
	estimator := &stubEstimator{estimate: &maps.TravelEstimate{Duration: 17 * time.Minute}}
	recorder, _, _, _, _, input := newRecorderFixture(t, enums.DeliveryStatusPickedUp, estimator)

	result, err := recorder.RecordSample(context.Background(), input)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	want := input.Sample.RecordedAt.Add(17 * time.Minute)
	if result.EstimatedArrival == nil || !result.EstimatedArrival.Equal(want) {
		t.Fatalf("eta = %v, want %v", result.EstimatedArrival, want)
	}
}

func TestRecordSampleOfflineQueuesInsteadOfApplying(t *testing.T) {
	recorder, store, cache, queue, outboxStub, input := newRecorderFixture(t, enums.DeliveryStatusOnTheWay, nil)
	input.Online = false

	result, err := recorder.RecordSample(context.Background(), input)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if !result.Queued {
		t.Fatal("offline sample should be queued")
	}
	if queue.entries != 1 {
		t.Fatalf("queued entries = %d, want 1", queue.entries)
	}
	if len(cache.stored) != 0 || len(outboxStub.events) != 0 || store.etaSet != nil {
		t.Fatal("offline sample must not touch cache, outbox, or eta")
	}
}

func TestRecordSampleRejectsWrongDriver(t *testing.T) {
	recorder, _, _, _, _, input := newRecorderFixture(t, enums.DeliveryStatusOnTheWay, nil)
	input.DriverID = uuid.New()

	_, err := recorder.RecordSample(context.Background(), input)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("err = %v, want forbidden", err)
	}
}

func TestRecordSampleRejectsFinishedDelivery(t *testing.T) {
	recorder, _, _, _, _, input := newRecorderFixture(t, enums.DeliveryStatusDelivered, nil)

	_, err := recorder.RecordSample(context.Background(), input)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("err = %v, want state conflict", err)
	}
}
