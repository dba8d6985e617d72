package assignment

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/Amrkhafagii/mealverse-backend/internal/orders"
	"github.com/Amrkhafagii/mealverse-backend/internal/tracking"
	"github.com/Amrkhafagii/mealverse-backend/pkg/config"
	"github.com/Amrkhafagii/mealverse-backend/pkg/db/models"
	"github.com/Amrkhafagii/mealverse-backend/pkg/enums"
	pkgerrors "github.com/Amrkhafagii/mealverse-backend/pkg/errors"
	"github.com/Amrkhafagii/mealverse-backend/pkg/logger"
	"github.com/Amrkhafagii/mealverse-backend/pkg/outbox"
	"github.com/Amrkhafagii/mealverse-backend/pkg/outbox/payloads"
)

const sweepBatchSize = 100

// Service coordinates the offer lifecycle: candidate selection, restaurant
// responses, and the periodic expiry sweep.
type Service interface {
	CreateOffers(ctx context.Context, orderID uuid.UUID) (*OfferOutcome, error)
	Respond(ctx context.Context, input RespondInput) (*RespondOutcome, error)
	SweepExpiredOffers(ctx context.Context, now time.Time) (*SweepStats, error)
	GetAssignment(ctx context.Context, assignmentID uuid.UUID) (*models.RestaurantAssignment, error)
	ListOrderAssignments(ctx context.Context, orderID uuid.UUID) ([]models.RestaurantAssignment, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type orderTransitioner interface {
	TransitionTx(ctx context.Context, tx *gorm.DB, input orders.TransitionInput) error
}

type service struct {
	repo     Repository
	ordersvc orderTransitioner
	tx       txRunner
	outbox   outboxPublisher
	oracle   CapabilityOracle
	clock    Clock
	cfg      config.AssignmentConfig
	logg     *logger.Logger
}

// NewService wires the coordinator.
func NewService(
	repo Repository,
	ordersvc orderTransitioner,
	tx txRunner,
	outboxSvc outboxPublisher,
	oracle CapabilityOracle,
	clock Clock,
	cfg config.AssignmentConfig,
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
	if oracle == nil {
		oracle = AllowAllOracle{}
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &service{
		repo:     repo,
		ordersvc: ordersvc,
		tx:       tx,
		outbox:   outboxSvc,
		oracle:   oracle,
		clock:    clock,
		cfg:      cfg,
		logg:     logg,
	}, nil
}

// CreateOffers issues the first (or next) time-boxed offer for an order that
// has no restaurant yet. Re-invoking while an offer is already on the table
// is a no-op returning the existing offer.
func (s *service) CreateOffers(ctx context.Context, orderID uuid.UUID) (*OfferOutcome, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	switch order.Status {
	case enums.OrderStatusPending, enums.OrderStatusAwaitingRestaurant, enums.OrderStatusExpiredAssignment:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order in status %s needs no offers", order.Status))
	}

	if existing, err := s.repo.FindActiveByOrder(ctx, orderID); err == nil {
		return &OfferOutcome{Assignment: existing, OrderStatus: order.Status}, nil
	} else if err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check active assignment")
	}

	outcome := &OfferOutcome{}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if order.Status == enums.OrderStatusPending {
			if err := s.ordersvc.TransitionTx(ctx, tx, orders.TransitionInput{
				OrderID: orderID,
				From:    enums.OrderStatusPending,
				To:      enums.OrderStatusAwaitingRestaurant,
				Actor:   enums.ActorSystem,
			}); err != nil {
				return err
			}
			order.Status = enums.OrderStatusAwaitingRestaurant
		}
		if order.Status == enums.OrderStatusExpiredAssignment {
			if err := s.ordersvc.TransitionTx(ctx, tx, orders.TransitionInput{
				OrderID: orderID,
				From:    enums.OrderStatusExpiredAssignment,
				To:      enums.OrderStatusAwaitingRestaurant,
				Actor:   enums.ActorSystem,
			}); err != nil {
				return err
			}
			order.Status = enums.OrderStatusAwaitingRestaurant
		}

		assignment, status, err := s.offerNextTx(ctx, tx, repo, order)
		if err != nil {
			return err
		}
		outcome.Assignment = assignment
		outcome.OrderStatus = status
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// offerNextTx picks the nearest untried capable restaurant and creates one
// pending assignment, or terminates the order when none remain or the
// attempt limit is reached. Caller owns the transaction; order must be in
// awaiting_restaurant.
func (s *service) offerNextTx(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order) (*models.RestaurantAssignment, enums.OrderStatus, error) {
	next, err := s.nextCandidate(ctx, repo, order)
	if err != nil {
		return nil, "", err
	}
	if next == nil {
		tried, err := repo.TriedRestaurantIDs(ctx, order.ID)
		if err != nil {
			return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tried restaurants")
		}
		// Nobody was ever offered: no capable restaurant exists at all.
		terminal := enums.OrderStatusNoRestaurantAccepted
		if len(tried) == 0 {
			terminal = enums.OrderStatusNoRestaurantAvailable
		}
		if err := s.ordersvc.TransitionTx(ctx, tx, orders.TransitionInput{
			OrderID: order.ID,
			From:    enums.OrderStatusAwaitingRestaurant,
			To:      terminal,
			Actor:   enums.ActorSystem,
			Details: map[string]any{"offer_attempts": order.OfferAttempts},
		}); err != nil {
			return nil, "", err
		}
		return nil, terminal, nil
	}

	if order.OfferAttempts >= s.cfg.MaxOfferAttempts {
		if err := s.ordersvc.TransitionTx(ctx, tx, orders.TransitionInput{
			OrderID: order.ID,
			From:    enums.OrderStatusAwaitingRestaurant,
			To:      enums.OrderStatusNoRestaurantAccepted,
			Actor:   enums.ActorSystem,
			Details: map[string]any{"offer_attempts": order.OfferAttempts},
		}); err != nil {
			return nil, "", err
		}
		return nil, enums.OrderStatusNoRestaurantAccepted, nil
	}

	now := s.clock.Now()
	assignment := &models.RestaurantAssignment{
		OrderID:      order.ID,
		RestaurantID: next.restaurant.ID,
		Status:       enums.AssignmentStatusPending,
		DistanceKm:   next.distanceKm,
		AssignedAt:   now,
		ExpiresAt:    now.Add(s.cfg.OfferTTL),
	}
	if _, err := repo.CreateAssignment(ctx, assignment); err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create assignment")
	}
	if err := repo.IncrementOfferAttempts(ctx, order.ID); err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bump offer attempts")
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventAssignmentCreated,
		AggregateType: enums.AggregateAssignment,
		AggregateID:   assignment.ID,
		Version:       1,
		Actor:         &outbox.ActorRef{Role: enums.ActorSystem},
		Data: payloads.AssignmentCreatedEvent{
			AssignmentID: assignment.ID,
			OrderID:      order.ID,
			RestaurantID: next.restaurant.ID,
			DistanceKm:   next.distanceKm,
			ExpiresAt:    assignment.ExpiresAt,
		},
	}); err != nil {
		return nil, "", err
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventNotificationRequested,
		AggregateType: enums.AggregateNotification,
		AggregateID:   assignment.ID,
		Version:       1,
		Actor:         &outbox.ActorRef{Role: enums.ActorSystem},
		Data: payloads.NotificationRequestedEvent{
			UserID:  next.restaurant.ID,
			Type:    enums.NotificationOfferReceived,
			Title:   "New order offer",
			Message: fmt.Sprintf("Order %s is waiting for your response", order.ID),
			Data:    map[string]any{"assignmentId": assignment.ID.String()},
		},
	}); err != nil {
		return nil, "", err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":      order.ID.String(),
			"restaurant_id": next.restaurant.ID.String(),
			"distance_km":   next.distanceKm,
		})
		s.logg.Info(logCtx, "assignment offer created")
	}
	return assignment, enums.OrderStatusAwaitingRestaurant, nil
}

// nextCandidate ranks capable restaurants by distance, nearest first, ties
// broken by restaurant id for determinism, skipping any already offered.
func (s *service) nextCandidate(ctx context.Context, repo Repository, order *models.Order) (*candidate, error) {
	restaurants, err := repo.ListActiveRestaurants(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list restaurants")
	}
	triedIDs, err := repo.TriedRestaurantIDs(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tried restaurants")
	}
	tried := make(map[uuid.UUID]struct{}, len(triedIDs))
	for _, id := range triedIDs {
		tried[id] = struct{}{}
	}

	candidates := make([]candidate, 0, len(restaurants))
	for _, restaurant := range restaurants {
		if _, skip := tried[restaurant.ID]; skip {
			continue
		}
		distance := tracking.HaversineKm(
			restaurant.Latitude, restaurant.Longitude,
			order.DeliveryLatitude, order.DeliveryLongitude,
		)
		if distance > s.cfg.MaxDistanceKm {
			continue
		}
		capable, err := s.oracle.CanFulfill(ctx, &restaurant, order)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "capability check")
		}
		if !capable {
			continue
		}
		candidates = append(candidates, candidate{restaurant: restaurant, distanceKm: distance})
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distanceKm != candidates[j].distanceKm {
			return candidates[i].distanceKm < candidates[j].distanceKm
		}
		return candidates[i].restaurant.ID.String() < candidates[j].restaurant.ID.String()
	})
	return &candidates[0], nil
}

// Respond handles a restaurant accepting or rejecting its pending offer.
func (s *service) Respond(ctx context.Context, input RespondInput) (*RespondOutcome, error) {
	if input.AssignmentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "assignment id required")
	}
	if input.RestaurantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restaurant id required")
	}

	assignment, err := s.repo.FindAssignment(ctx, input.AssignmentID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment")
	}
	if assignment.RestaurantID != input.RestaurantID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "assignment belongs to another restaurant")
	}
	if assignment.Status != enums.AssignmentStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStaleOffer,
			fmt.Sprintf("offer already %s", assignment.Status))
	}
	now := s.clock.Now()
	if !assignment.ExpiresAt.After(now) {
		return nil, pkgerrors.New(pkgerrors.CodeStaleOffer, "offer expired")
	}

	if input.Accept {
		return s.accept(ctx, assignment, now)
	}
	return s.reject(ctx, assignment, now)
}

func (s *service) accept(ctx context.Context, assignment *models.RestaurantAssignment, now time.Time) (*RespondOutcome, error) {
	outcome := &RespondOutcome{Assignment: assignment}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		affected, err := repo.UpdateStatusCAS(ctx, assignment.ID,
			enums.AssignmentStatusPending, enums.AssignmentStatusAccepted, &now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "accept assignment")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStaleOffer, "offer no longer pending")
		}
		assignment.Status = enums.AssignmentStatusAccepted
		assignment.RespondedAt = &now

		if _, err := repo.ExpireSiblingPending(ctx, assignment.OrderID, assignment.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "void sibling offers")
		}
		if err := repo.SetAssignedRestaurant(ctx, assignment.OrderID, assignment.RestaurantID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set assigned restaurant")
		}
		if err := s.ordersvc.TransitionTx(ctx, tx, orders.TransitionInput{
			OrderID: assignment.OrderID,
			From:    enums.OrderStatusAwaitingRestaurant,
			To:      enums.OrderStatusRestaurantAccepted,
			Actor:   enums.ActorRestaurant,
			Details: map[string]any{"restaurant_id": assignment.RestaurantID.String()},
		}); err != nil {
			return err
		}
		outcome.OrderStatus = enums.OrderStatusRestaurantAccepted

		delivery := &models.DeliveryAssignment{
			OrderID:      assignment.OrderID,
			RestaurantID: assignment.RestaurantID,
			Status:       enums.DeliveryStatusPending,
		}
		if err := repo.CreateDeliveryAssignment(ctx, delivery); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create delivery assignment")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAssignmentResponded,
			AggregateType: enums.AggregateAssignment,
			AggregateID:   assignment.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{Role: enums.ActorRestaurant},
			Data: payloads.AssignmentRespondedEvent{
				AssignmentID: assignment.ID,
				OrderID:      assignment.OrderID,
				RestaurantID: assignment.RestaurantID,
				Status:       enums.AssignmentStatusAccepted,
				RespondedAt:  now,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func (s *service) reject(ctx context.Context, assignment *models.RestaurantAssignment, now time.Time) (*RespondOutcome, error) {
	outcome := &RespondOutcome{Assignment: assignment}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		affected, err := repo.UpdateStatusCAS(ctx, assignment.ID,
			enums.AssignmentStatusPending, enums.AssignmentStatusRejected, &now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject assignment")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStaleOffer, "offer no longer pending")
		}
		assignment.Status = enums.AssignmentStatusRejected
		assignment.RespondedAt = &now

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAssignmentResponded,
			AggregateType: enums.AggregateAssignment,
			AggregateID:   assignment.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{Role: enums.ActorRestaurant},
			Data: payloads.AssignmentRespondedEvent{
				AssignmentID: assignment.ID,
				OrderID:      assignment.OrderID,
				RestaurantID: assignment.RestaurantID,
				Status:       enums.AssignmentStatusRejected,
				RespondedAt:  now,
			},
		}); err != nil {
			return err
		}

		order, err := repo.FindOrder(ctx, assignment.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status != enums.OrderStatusAwaitingRestaurant {
			// Cancelled or concurrently resolved; nothing left to offer.
			outcome.OrderStatus = order.Status
			return nil
		}
		nextOffer, status, err := s.offerNextTx(ctx, tx, repo, order)
		if err != nil {
			return err
		}
		outcome.NextOffer = nextOffer
		outcome.OrderStatus = status
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// SweepExpiredOffers times out stale pending offers and either re-offers or
// terminates each affected order. Safe to re-run; a second pass over
// unchanged state mutates nothing.
func (s *service) SweepExpiredOffers(ctx context.Context, now time.Time) (*SweepStats, error) {
	expired, err := s.repo.ListExpiredPending(ctx, now, sweepBatchSize)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expired offers")
	}

	stats := &SweepStats{}
	var errs error
	for i := range expired {
		assignment := expired[i]
		if err := s.sweepOne(ctx, &assignment, now, stats); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("assignment %s: %w", assignment.ID, err))
		}
	}
	return stats, errs
}

func (s *service) sweepOne(ctx context.Context, assignment *models.RestaurantAssignment, now time.Time, stats *SweepStats) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		affected, err := repo.UpdateStatusCAS(ctx, assignment.ID,
			enums.AssignmentStatusPending, enums.AssignmentStatusExpired, &now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire assignment")
		}
		if affected == 0 {
			// A response or a concurrent sweep got here first.
			return nil
		}
		stats.Expired++

		if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAssignmentExpired,
			AggregateType: enums.AggregateAssignment,
			AggregateID:   assignment.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{Role: enums.ActorSystem},
			Data: payloads.AssignmentExpiredEvent{
				AssignmentID: assignment.ID,
				OrderID:      assignment.OrderID,
				RestaurantID: assignment.RestaurantID,
				ExpiredAt:    now,
			},
		}); err != nil {
			return err
		}

		order, err := repo.FindOrder(ctx, assignment.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status != enums.OrderStatusAwaitingRestaurant {
			return nil
		}
		if _, err := repo.FindActiveByOrder(ctx, assignment.OrderID); err == nil {
			// Another offer or acceptance already covers this order.
			return nil
		} else if err != gorm.ErrRecordNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check active assignment")
		}

		if err := s.ordersvc.TransitionTx(ctx, tx, orders.TransitionInput{
			OrderID: order.ID,
			From:    enums.OrderStatusAwaitingRestaurant,
			To:      enums.OrderStatusExpiredAssignment,
			Actor:   enums.ActorSystem,
			Details: map[string]any{"assignment_id": assignment.ID.String()},
		}); err != nil {
			return err
		}
		order.Status = enums.OrderStatusExpiredAssignment

		if err := s.ordersvc.TransitionTx(ctx, tx, orders.TransitionInput{
			OrderID: order.ID,
			From:    enums.OrderStatusExpiredAssignment,
			To:      enums.OrderStatusAwaitingRestaurant,
			Actor:   enums.ActorSystem,
		}); err != nil {
			return err
		}
		order.Status = enums.OrderStatusAwaitingRestaurant

		nextOffer, status, err := s.offerNextTx(ctx, tx, repo, order)
		if err != nil {
			return err
		}
		if nextOffer != nil {
			stats.ReOffered++
		}
		if status == enums.OrderStatusNoRestaurantAccepted || status == enums.OrderStatusNoRestaurantAvailable {
			stats.Exhausted++
		}
		return nil
	})
}

func (s *service) GetAssignment(ctx context.Context, assignmentID uuid.UUID) (*models.RestaurantAssignment, error) {
	if assignmentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "assignment id required")
	}
	assignment, err := s.repo.FindAssignment(ctx, assignmentID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment")
	}
	return assignment, nil
}

func (s *service) ListOrderAssignments(ctx context.Context, orderID uuid.UUID) ([]models.RestaurantAssignment, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	assignments, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list assignments")
	}
	return assignments, nil
}
