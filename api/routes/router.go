package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Amrkhafagii/mealverse-backend/api/controllers"
	"github.com/Amrkhafagii/mealverse-backend/api/middleware"
	"github.com/Amrkhafagii/mealverse-backend/internal/assignment"
	"github.com/Amrkhafagii/mealverse-backend/internal/delivery"
	"github.com/Amrkhafagii/mealverse-backend/internal/notifications"
	"github.com/Amrkhafagii/mealverse-backend/internal/orders"
	"github.com/Amrkhafagii/mealverse-backend/internal/syncqueue"
	"github.com/Amrkhafagii/mealverse-backend/internal/tracking"
	"github.com/Amrkhafagii/mealverse-backend/pkg/config"
	"github.com/Amrkhafagii/mealverse-backend/pkg/db"
	"github.com/Amrkhafagii/mealverse-backend/pkg/enums"
	"github.com/Amrkhafagii/mealverse-backend/pkg/logger"
	"github.com/Amrkhafagii/mealverse-backend/pkg/redis"
)

// LocationRecorder is the slice of the tracking recorder the HTTP surface
// needs: sample ingestion and the cached position read.
type LocationRecorder interface {
	RecordSample(ctx context.Context, input tracking.RecordInput) (*tracking.RecordResult, error)
	DriverPosition(ctx context.Context, orderID uuid.UUID) (*tracking.CachedPosition, error)
}

// RedisDeps is what the router needs from Redis: the readiness ping and
// the idempotency record store.
type RedisDeps interface {
	redis.Pinger
	redis.IdempotencyStore
}

// RouterParams bundles everything the HTTP surface needs.
type RouterParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            db.Pinger
	Redis         RedisDeps
	Orders        orders.Service
	Assignments   assignment.Service
	Deliveries    delivery.Service
	Recorder      LocationRecorder
	SyncQueue     syncqueue.Service
	Notifications notifications.Service
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, p.Redis))
	})
	r.Get("/healthz", controllers.HealthLive(cfg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Actor(logg))
		r.Use(middleware.Idempotency(p.Redis, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.PlaceOrder(p.Orders, p.Assignments, logg))
			r.Get("/", controllers.ListMyOrders(p.Orders, logg))
			r.Get("/{orderId}", controllers.OrderDetail(p.Orders, logg))
			r.Post("/{orderId}/cancel", controllers.CancelOrder(p.Orders, logg))
			r.With(middleware.RequireRole(enums.ActorRestaurant, logg)).
				Post("/{orderId}/progress", controllers.ProgressOrder(p.Orders, logg))
			r.Get("/{orderId}/history", controllers.OrderHistory(p.Orders, logg))
			r.Get("/{orderId}/assignments", controllers.ListOrderAssignments(p.Assignments, logg))
			r.Get("/{orderId}/driver-location", controllers.DriverLocation(p.Recorder, logg))
		})

		r.Route("/assignments", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.ActorRestaurant, logg))
			r.Post("/{assignmentId}/respond", controllers.RespondToOffer(p.Assignments, logg))
		})

		r.Route("/deliveries", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.ActorDriver, logg))
			r.Get("/{deliveryId}", controllers.DeliveryDetail(p.Deliveries, logg))
			r.Post("/{deliveryId}/accept", controllers.AcceptDelivery(p.Deliveries, logg))
			r.Post("/{deliveryId}/pickup", controllers.PickupDelivery(p.Deliveries, logg))
			r.Post("/{deliveryId}/depart", controllers.DepartDelivery(p.Deliveries, logg))
			r.Post("/{deliveryId}/deliver", controllers.CompleteDelivery(p.Deliveries, logg))
			r.Post("/{deliveryId}/location", controllers.ReportLocation(p.Deliveries, p.Recorder, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(p.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(p.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(p.Notifications, logg))
		})

		r.Route("/sync", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.ActorSystem, logg))
			r.Get("/entries", controllers.ListSyncEntries(p.SyncQueue, logg))
			r.Post("/entries/{entryId}/resolve", controllers.ResolveSyncEntry(p.SyncQueue, logg))
			r.Post("/flush", controllers.FlushSyncQueue(p.SyncQueue, logg))
		})
	})

	return r
}
