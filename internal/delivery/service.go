package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Amrkhafagii/mealverse-backend/internal/orders"
	"github.com/Amrkhafagii/mealverse-backend/pkg/db/models"
	"github.com/Amrkhafagii/mealverse-backend/pkg/enums"
	pkgerrors "github.com/Amrkhafagii/mealverse-backend/pkg/errors"
	"github.com/Amrkhafagii/mealverse-backend/pkg/logger"
	"github.com/Amrkhafagii/mealverse-backend/pkg/outbox"
	"github.com/Amrkhafagii/mealverse-backend/pkg/outbox/payloads"
)

// Service advances the courier leg. Every move is a compare-and-set on the
// delivery row; order transitions ride the same transaction.
type Service interface {
	Accept(ctx context.Context, deliveryID, driverID uuid.UUID) (*models.DeliveryAssignment, error)
	MarkPickedUp(ctx context.Context, deliveryID, driverID uuid.UUID) (*models.DeliveryAssignment, error)
	MarkOnTheWay(ctx context.Context, deliveryID, driverID uuid.UUID) (*models.DeliveryAssignment, error)
	MarkDelivered(ctx context.Context, deliveryID, driverID uuid.UUID) (*models.DeliveryAssignment, error)
	Cancel(ctx context.Context, deliveryID uuid.UUID, actor enums.Actor) (*models.DeliveryAssignment, error)
	GetDelivery(ctx context.Context, deliveryID uuid.UUID) (*models.DeliveryAssignment, error)
	GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.DeliveryAssignment, error)
	ListDriverDeliveries(ctx context.Context, driverID uuid.UUID, limit int) ([]models.DeliveryAssignment, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type orderTransitioner interface {
	TransitionTx(ctx context.Context, tx *gorm.DB, input orders.TransitionInput) error
}

type orderLoader interface {
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

type service struct {
	repo     Repository
	ordersvc interface {
		orderTransitioner
		orderLoader
	}
	tx     txRunner
	outbox outboxPublisher
	logg   *logger.Logger
}

// NewService wires the delivery service.
func NewService(
	repo Repository,
	ordersvc orders.Service,
	tx txRunner,
	outboxSvc outboxPublisher,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("repository required")
	}
	if ordersvc == nil {
		return nil, fmt.Errorf("order service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	return &service{
		repo:     repo,
		ordersvc: ordersvc,
		tx:       tx,
		outbox:   outboxSvc,
		logg:     logg,
	}, nil
}

// Accept lets a driver claim a pending delivery.
func (s *service) Accept(ctx context.Context, deliveryID, driverID uuid.UUID) (*models.DeliveryAssignment, error) {
	if driverID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "driver id required")
	}
	delivery, err := s.load(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if delivery.Status != enums.DeliveryStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("delivery already %s", delivery.Status))
	}

	now := time.Now().UTC()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		affected, err := repo.UpdateStatusCAS(ctx, deliveryID,
			enums.DeliveryStatusPending, enums.DeliveryStatusAssigned,
			map[string]any{"driver_id": driverID})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign driver")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "delivery claimed concurrently")
		}
		delivery.Status = enums.DeliveryStatusAssigned
		delivery.DriverID = &driverID

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDeliveryDriverAssigned,
			AggregateType: enums.AggregateDeliveryAssignment,
			AggregateID:   delivery.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: driverID, Role: enums.ActorDriver},
			Data: payloads.DeliveryDriverAssignedEvent{
				DeliveryID: delivery.ID,
				OrderID:    delivery.OrderID,
				DriverID:   driverID,
				AssignedAt: now,
			},
		}); err != nil {
			return err
		}

		order, err := s.ordersvc.GetOrder(ctx, delivery.OrderID)
		if err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventNotificationRequested,
			AggregateType: enums.AggregateNotification,
			AggregateID:   delivery.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{Role: enums.ActorSystem},
			Data: payloads.NotificationRequestedEvent{
				UserID:  order.CustomerID,
				Type:    enums.NotificationDriverAssigned,
				Title:   "Driver assigned",
				Message: "A driver picked up your order's delivery",
				Data:    map[string]any{"deliveryId": delivery.ID.String()},
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return delivery, nil
}

// MarkPickedUp records the handoff at the restaurant.
func (s *service) MarkPickedUp(ctx context.Context, deliveryID, driverID uuid.UUID) (*models.DeliveryAssignment, error) {
	now := time.Now().UTC()
	return s.advance(ctx, deliveryID, driverID,
		enums.DeliveryStatusAssigned, enums.DeliveryStatusPickedUp,
		map[string]any{"pickup_time": now}, nil)
}

// MarkOnTheWay records departure toward the customer and moves the order.
func (s *service) MarkOnTheWay(ctx context.Context, deliveryID, driverID uuid.UUID) (*models.DeliveryAssignment, error) {
	return s.advance(ctx, deliveryID, driverID,
		enums.DeliveryStatusPickedUp, enums.DeliveryStatusOnTheWay,
		nil, &orders.TransitionInput{
			From:  enums.OrderStatusReadyForPickup,
			To:    enums.OrderStatusOnTheWay,
			Actor: enums.ActorDriver,
		})
}

// MarkDelivered completes the leg and the order.
func (s *service) MarkDelivered(ctx context.Context, deliveryID, driverID uuid.UUID) (*models.DeliveryAssignment, error) {
	now := time.Now().UTC()
	return s.advance(ctx, deliveryID, driverID,
		enums.DeliveryStatusOnTheWay, enums.DeliveryStatusDelivered,
		map[string]any{"delivery_time": now}, &orders.TransitionInput{
			From:  enums.OrderStatusOnTheWay,
			To:    enums.OrderStatusDelivered,
			Actor: enums.ActorDriver,
		})
}

func (s *service) advance(
	ctx context.Context,
	deliveryID, driverID uuid.UUID,
	expected, next enums.DeliveryStatus,
	updates map[string]any,
	orderMove *orders.TransitionInput,
) (*models.DeliveryAssignment, error) {
	delivery, err := s.load(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if delivery.DriverID == nil || *delivery.DriverID != driverID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "delivery belongs to another driver")
	}
	if delivery.Status != expected {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("delivery is %s, expected %s", delivery.Status, expected))
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		affected, err := repo.UpdateStatusCAS(ctx, deliveryID, expected, next, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update delivery status")
		}
		if affected == 0 {
			if s.logg != nil {
				logCtx := s.logg.WithFields(ctx, map[string]any{
					"delivery_id": deliveryID.String(),
					"from":        expected,
					"to":          next,
				})
				s.logg.Warn(logCtx, "delivery transition lost compare-and-set race")
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict, "delivery status changed concurrently")
		}
		delivery.Status = next

		if orderMove != nil {
			move := *orderMove
			move.OrderID = delivery.OrderID
			move.Details = map[string]any{"delivery_id": delivery.ID.String()}
			if err := s.ordersvc.TransitionTx(ctx, tx, move); err != nil {
				return err
			}
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDeliveryStatusChanged,
			AggregateType: enums.AggregateDeliveryAssignment,
			AggregateID:   delivery.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: driverID, Role: enums.ActorDriver},
			Data: payloads.DeliveryStatusChangedEvent{
				DeliveryID: delivery.ID,
				OrderID:    delivery.OrderID,
				FromStatus: expected,
				ToStatus:   next,
				ChangedAt:  time.Now().UTC(),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return delivery, nil
}

// Cancel aborts a non-terminal delivery. The order itself is cancelled by its
// own transition; this only stops the courier leg.
func (s *service) Cancel(ctx context.Context, deliveryID uuid.UUID, actor enums.Actor) (*models.DeliveryAssignment, error) {
	if !actor.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown actor")
	}
	delivery, err := s.load(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if delivery.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("delivery already %s", delivery.Status))
	}

	expected := delivery.Status
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		affected, err := repo.UpdateStatusCAS(ctx, deliveryID, expected, enums.DeliveryStatusCancelled, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel delivery")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "delivery status changed concurrently")
		}
		delivery.Status = enums.DeliveryStatusCancelled

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDeliveryStatusChanged,
			AggregateType: enums.AggregateDeliveryAssignment,
			AggregateID:   delivery.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{Role: actor},
			Data: payloads.DeliveryStatusChangedEvent{
				DeliveryID: delivery.ID,
				OrderID:    delivery.OrderID,
				FromStatus: expected,
				ToStatus:   enums.DeliveryStatusCancelled,
				ChangedAt:  time.Now().UTC(),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return delivery, nil
}

func (s *service) GetDelivery(ctx context.Context, deliveryID uuid.UUID) (*models.DeliveryAssignment, error) {
	return s.load(ctx, deliveryID)
}

func (s *service) GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.DeliveryAssignment, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	delivery, err := s.repo.FindByOrder(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
	}
	return delivery, nil
}

func (s *service) ListDriverDeliveries(ctx context.Context, driverID uuid.UUID, limit int) ([]models.DeliveryAssignment, error) {
	if driverID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "driver id required")
	}
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	deliveries, err := s.repo.ListDriverDeliveries(ctx, driverID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list deliveries")
	}
	return deliveries, nil
}

func (s *service) load(ctx context.Context, deliveryID uuid.UUID) (*models.DeliveryAssignment, error) {
	if deliveryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery id required")
	}
	delivery, err := s.repo.FindDelivery(ctx, deliveryID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
	}
	return delivery, nil
}
