package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Amrkhafagii/mealverse-backend/internal/assignment"
	"github.com/Amrkhafagii/mealverse-backend/internal/notifications"
	"github.com/Amrkhafagii/mealverse-backend/internal/orders"
	"github.com/Amrkhafagii/mealverse-backend/internal/syncqueue"
	"github.com/Amrkhafagii/mealverse-backend/internal/tracking"
	"github.com/Amrkhafagii/mealverse-backend/pkg/config"
	"github.com/Amrkhafagii/mealverse-backend/pkg/db/models"
	"github.com/Amrkhafagii/mealverse-backend/pkg/enums"
	pkgerrors "github.com/Amrkhafagii/mealverse-backend/pkg/errors"
	"github.com/Amrkhafagii/mealverse-backend/pkg/logger"
	"github.com/Amrkhafagii/mealverse-backend/pkg/pagination"
)

type stubOrders struct {
	getCalls      int
	progressCalls int
	cancelCalls   int
	order         models.Order
}

func (s *stubOrders) PlaceOrder(ctx context.Context, input orders.PlaceOrderInput) (*models.Order, error) {
	return &s.order, nil
}

func (s *stubOrders) Transition(ctx context.Context, input orders.TransitionInput) error { return nil }

func (s *stubOrders) TransitionTx(ctx context.Context, tx *gorm.DB, input orders.TransitionInput) error {
	return nil
}

func (s *stubOrders) Progress(ctx context.Context, input orders.ProgressInput) (*models.Order, error) {
	s.progressCalls++
	s.order.Status = input.Target
	return &s.order, nil
}

func (s *stubOrders) Cancel(ctx context.Context, input orders.CancelInput) (*models.Order, error) {
	s.cancelCalls++
	s.order.Status = enums.OrderStatusCancelled
	return &s.order, nil
}

func (s *stubOrders) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	s.getCalls++
	if orderID != s.order.ID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return &s.order, nil
}

func (s *stubOrders) ListCustomerOrders(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*orders.OrderList, error) {
	return &orders.OrderList{}, nil
}

func (s *stubOrders) ListHistory(ctx context.Context, orderID uuid.UUID) ([]orders.HistoryEntryView, error) {
	return nil, nil
}

type stubAssignments struct {
	respondCalls int
}

func (s *stubAssignments) CreateOffers(ctx context.Context, orderID uuid.UUID) (*assignment.OfferOutcome, error) {
	return &assignment.OfferOutcome{OrderStatus: enums.OrderStatusAwaitingRestaurant}, nil
}

func (s *stubAssignments) Respond(ctx context.Context, input assignment.RespondInput) (*assignment.RespondOutcome, error) {
	s.respondCalls++
	return &assignment.RespondOutcome{OrderStatus: enums.OrderStatusRestaurantAccepted}, nil
}

func (s *stubAssignments) SweepExpiredOffers(ctx context.Context, now time.Time) (*assignment.SweepStats, error) {
	return &assignment.SweepStats{}, nil
}

func (s *stubAssignments) GetAssignment(ctx context.Context, assignmentID uuid.UUID) (*models.RestaurantAssignment, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
}

func (s *stubAssignments) ListOrderAssignments(ctx context.Context, orderID uuid.UUID) ([]models.RestaurantAssignment, error) {
	return nil, nil
}

type stubDeliveries struct {
	acceptCalls int
}

func (s *stubDeliveries) delivery(id uuid.UUID) *models.DeliveryAssignment {
	return &models.DeliveryAssignment{ID: id, Status: enums.DeliveryStatusAssigned}
}

func (s *stubDeliveries) Accept(ctx context.Context, deliveryID, driverID uuid.UUID) (*models.DeliveryAssignment, error) {
	s.acceptCalls++
	return s.delivery(deliveryID), nil
}

func (s *stubDeliveries) MarkPickedUp(ctx context.Context, deliveryID, driverID uuid.UUID) (*models.DeliveryAssignment, error) {
	return s.delivery(deliveryID), nil
}

func (s *stubDeliveries) MarkOnTheWay(ctx context.Context, deliveryID, driverID uuid.UUID) (*models.DeliveryAssignment, error) {
	return s.delivery(deliveryID), nil
}

func (s *stubDeliveries) MarkDelivered(ctx context.Context, deliveryID, driverID uuid.UUID) (*models.DeliveryAssignment, error) {
	return s.delivery(deliveryID), nil
}

func (s *stubDeliveries) Cancel(ctx context.Context, deliveryID uuid.UUID, actor enums.Actor) (*models.DeliveryAssignment, error) {
	return s.delivery(deliveryID), nil
}

func (s *stubDeliveries) GetDelivery(ctx context.Context, deliveryID uuid.UUID) (*models.DeliveryAssignment, error) {
	return s.delivery(deliveryID), nil
}

func (s *stubDeliveries) GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.DeliveryAssignment, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
}

func (s *stubDeliveries) ListDriverDeliveries(ctx context.Context, driverID uuid.UUID, limit int) ([]models.DeliveryAssignment, error) {
	return nil, nil
}

type stubRecorder struct {
	position *tracking.CachedPosition
}

func (s *stubRecorder) RecordSample(ctx context.Context, input tracking.RecordInput) (*tracking.RecordResult, error) {
	return &tracking.RecordResult{}, nil
}

func (s *stubRecorder) DriverPosition(ctx context.Context, orderID uuid.UUID) (*tracking.CachedPosition, error) {
	if s.position == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no recent driver position")
	}
	return s.position, nil
}

type stubSyncQueue struct{}

func (stubSyncQueue) Enqueue(ctx context.Context, input syncqueue.EnqueueInput) (*models.SyncQueueEntry, error) {
	return &models.SyncQueueEntry{}, nil
}

func (stubSyncQueue) EnqueueLocation(ctx context.Context, deviceID string, orderID uuid.UUID, payload json.RawMessage, baseUpdatedAt time.Time) error {
	return nil
}

func (stubSyncQueue) Flush(ctx context.Context, online bool) (*syncqueue.FlushStats, error) {
	return &syncqueue.FlushStats{}, nil
}

func (stubSyncQueue) ListSuspended(ctx context.Context, limit int) ([]models.SyncQueueEntry, error) {
	return nil, nil
}

func (stubSyncQueue) ListFailed(ctx context.Context, limit int) ([]models.SyncQueueEntry, error) {
	return nil, nil
}

func (stubSyncQueue) ResolveSuspended(ctx context.Context, entryID uuid.UUID, apply bool) error {
	return nil
}

type stubNotifications struct{}

func (stubNotifications) List(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	return &notifications.ListResult{}, nil
}

func (stubNotifications) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	return nil
}

func (stubNotifications) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return 0, nil
}

func (stubNotifications) PurgeRead(ctx context.Context, olderThan time.Duration) (int64, error) {
	return 0, nil
}

type stubRedis struct {
	mu      sync.Mutex
	entries map[string]string
}

func newStubRedis() *stubRedis { return &stubRedis{entries: map[string]string{}} }

func (s *stubRedis) Ping(ctx context.Context) error { return nil }

func (s *stubRedis) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[key], nil
}

func (s *stubRedis) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; ok {
		return false, nil
	}
	if str, ok := value.(string); ok {
		s.entries[key] = str
	}
	return true, nil
}

func (s *stubRedis) IdempotencyKey(scope, id string) string { return "idem:" + scope + ":" + id }

func (s *stubRedis) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.entries, key)
	}
	return nil
}

type routerFixture struct {
	handler     http.Handler
	orders      *stubOrders
	assignments *stubAssignments
	deliveries  *stubDeliveries
	recorder    *stubRecorder
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	cfg := &config.Config{}
	cfg.App.Env = "test"

	fixture := &routerFixture{
		orders:      &stubOrders{order: models.Order{ID: uuid.New(), Status: enums.OrderStatusPending}},
		assignments: &stubAssignments{},
		deliveries:  &stubDeliveries{},
		recorder:    &stubRecorder{},
	}
	fixture.handler = NewRouter(RouterParams{
		Config:        cfg,
		Logger:        logger.New(logger.Options{ServiceName: "router-test"}),
		Redis:         newStubRedis(),
		Orders:        fixture.orders,
		Assignments:   fixture.assignments,
		Deliveries:    fixture.deliveries,
		Recorder:      fixture.recorder,
		SyncQueue:     stubSyncQueue{},
		Notifications: stubNotifications{},
	})
	return fixture
}

func asActor(req *http.Request, id uuid.UUID, role enums.Actor) *http.Request {
	req.Header.Set("X-Actor-Id", id.String())
	req.Header.Set("X-Actor-Role", string(role))
	return req
}

func TestHealthzNeedsNoActorHeaders(t *testing.T) {
	fixture := newRouterFixture(t)
	rec := httptest.NewRecorder()
	fixture.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAPIRejectsMissingActorHeaders(t *testing.T) {
	fixture := newRouterFixture(t)
	rec := httptest.NewRecorder()
	fixture.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestOrderDetailRouting(t *testing.T) {
	fixture := newRouterFixture(t)
	req := asActor(httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+fixture.orders.order.ID.String(), nil), uuid.New(), enums.ActorCustomer)
	rec := httptest.NewRecorder()
	fixture.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if fixture.orders.getCalls != 1 {
		t.Fatalf("expected one GetOrder call, got %d", fixture.orders.getCalls)
	}
}

func TestRespondRequiresRestaurantRole(t *testing.T) {
	fixture := newRouterFixture(t)
	body := strings.NewReader(`{"accept":true}`)
	req := asActor(httptest.NewRequest(http.MethodPost, "/api/v1/assignments/"+uuid.NewString()+"/respond", body), uuid.New(), enums.ActorCustomer)
	req.Header.Set("Idempotency-Key", "key-1")
	rec := httptest.NewRecorder()
	fixture.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if fixture.assignments.respondCalls != 0 {
		t.Fatal("respond should not reach the service without the restaurant role")
	}
}

func TestDeliveryAcceptIsIdempotent(t *testing.T) {
	fixture := newRouterFixture(t)
	driverID := uuid.New()
	deliveryID := uuid.New()

	send := func() *httptest.ResponseRecorder {
		req := asActor(httptest.NewRequest(http.MethodPost, "/api/v1/deliveries/"+deliveryID.String()+"/accept", strings.NewReader(`{}`)), driverID, enums.ActorDriver)
		req.Header.Set("Idempotency-Key", "accept-1")
		rec := httptest.NewRecorder()
		fixture.handler.ServeHTTP(rec, req)
		return rec
	}

	first := send()
	second := send()

	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("expected 200s, got %d and %d", first.Code, second.Code)
	}
	if fixture.deliveries.acceptCalls != 1 {
		t.Fatalf("expected one Accept call, got %d", fixture.deliveries.acceptCalls)
	}
}

func TestDriverLocationReturnsCachedPosition(t *testing.T) {
	fixture := newRouterFixture(t)
	fixture.recorder.position = &tracking.CachedPosition{
		DriverID:  uuid.New(),
		Latitude:  30.05,
		Longitude: 31.23,
	}
	req := asActor(httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+uuid.NewString()+"/driver-location", nil), uuid.New(), enums.ActorCustomer)
	rec := httptest.NewRecorder()
	fixture.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "31.23") {
		t.Fatalf("expected cached longitude in body, got %s", rec.Body.String())
	}
}

func TestProgressRequiresRestaurantRole(t *testing.T) {
	fixture := newRouterFixture(t)
	body := strings.NewReader(`{"stage":"preparing"}`)
	req := asActor(httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+fixture.orders.order.ID.String()+"/progress", body), uuid.New(), enums.ActorCustomer)
	req.Header.Set("Idempotency-Key", "progress-1")
	rec := httptest.NewRecorder()
	fixture.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if fixture.orders.progressCalls != 0 {
		t.Fatal("progress should not reach the service without the restaurant role")
	}
}

func TestRestaurantProgressRouting(t *testing.T) {
	fixture := newRouterFixture(t)
	body := strings.NewReader(`{"stage":"preparing"}`)
	req := asActor(httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+fixture.orders.order.ID.String()+"/progress", body), uuid.New(), enums.ActorRestaurant)
	req.Header.Set("Idempotency-Key", "progress-2")
	rec := httptest.NewRecorder()
	fixture.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if fixture.orders.progressCalls != 1 {
		t.Fatalf("expected one Progress call, got %d", fixture.orders.progressCalls)
	}
}

func TestCustomerCancelRouting(t *testing.T) {
	fixture := newRouterFixture(t)
	body := strings.NewReader(`{"reason":"ordered twice"}`)
	req := asActor(httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+fixture.orders.order.ID.String()+"/cancel", body), uuid.New(), enums.ActorCustomer)
	req.Header.Set("Idempotency-Key", "cancel-1")
	rec := httptest.NewRecorder()
	fixture.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if fixture.orders.cancelCalls != 1 {
		t.Fatalf("expected one Cancel call, got %d", fixture.orders.cancelCalls)
	}
}
