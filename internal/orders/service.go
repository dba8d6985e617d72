package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Amrkhafagii/mealverse-backend/pkg/db/models"
	"github.com/Amrkhafagii/mealverse-backend/pkg/enums"
	pkgerrors "github.com/Amrkhafagii/mealverse-backend/pkg/errors"
	"github.com/Amrkhafagii/mealverse-backend/pkg/logger"
	"github.com/Amrkhafagii/mealverse-backend/pkg/outbox"
	"github.com/Amrkhafagii/mealverse-backend/pkg/outbox/payloads"
	"github.com/Amrkhafagii/mealverse-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service owns the order aggregate: creation, the status machine, and reads.
type Service interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error)
	Transition(ctx context.Context, input TransitionInput) error
	TransitionTx(ctx context.Context, tx *gorm.DB, input TransitionInput) error
	Progress(ctx context.Context, input ProgressInput) (*models.Order, error)
	Cancel(ctx context.Context, input CancelInput) (*models.Order, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListCustomerOrders(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*OrderList, error)
	ListHistory(ctx context.Context, orderID uuid.UUID) ([]HistoryEntryView, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	logg   *logger.Logger
}

// NewService builds an order service with the required dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		outbox: outboxSvc,
		logg:   logg,
	}, nil
}

func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order needs at least one line item")
	}
	if !input.DeliveryMethod.IsValid() {
		input.DeliveryMethod = enums.DeliveryMethodDelivery
	}
	subtotal := decimal.Zero
	for i, item := range input.Items {
		if item.MealID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("line item %d has no meal id", i))
		}
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("line item %d has non-positive quantity", i))
		}
		if item.UnitPrice.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("line item %d has negative price", i))
		}
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	if input.DeliveryFee.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery fee cannot be negative")
	}

	order := &models.Order{
		CustomerID:        input.CustomerID,
		DeliveryMethod:    input.DeliveryMethod,
		Status:            enums.OrderStatusPending,
		SubtotalAmount:    subtotal,
		DeliveryFeeAmount: input.DeliveryFee,
		TotalAmount:       subtotal.Add(input.DeliveryFee),
		DeliveryLatitude:  input.DeliveryLatitude,
		DeliveryLongitude: input.DeliveryLongitude,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		created, err := repo.CreateOrder(ctx, order)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		items := make([]models.OrderLineItem, 0, len(input.Items))
		for _, item := range input.Items {
			items = append(items, models.OrderLineItem{
				OrderID:   created.ID,
				MealID:    item.MealID,
				Name:      item.Name,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
			})
		}
		if err := repo.CreateOrderLineItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create line items")
		}

		if err := repo.CreateHistoryEntry(ctx, &models.OrderHistoryEntry{
			OrderID: created.ID,
			Status:  enums.OrderStatusPending,
			Actor:   enums.ActorCustomer,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create history entry")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   created.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.CustomerID, Role: enums.ActorCustomer},
			Data: payloads.OrderCreatedEvent{
				OrderID:       created.ID,
				CustomerID:    created.CustomerID,
				TotalAmount:   created.TotalAmount.StringFixed(2),
				Currency:      "USD",
				LineItemCount: len(items),
				Status:        created.Status,
				PlacedAt:      created.CreatedAt,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Transition applies one status change with compare-and-set semantics. A lost
// race surfaces as CodeStateConflict and leaves no history entry behind.
func (s *service) Transition(ctx context.Context, input TransitionInput) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.TransitionTx(ctx, tx, input)
	})
}

// TransitionTx is Transition inside a caller-owned transaction, for writers
// that must move the order in the same unit of work as their own rows.
func (s *service) TransitionTx(ctx context.Context, tx *gorm.DB, input TransitionInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.From.IsValid() || !input.To.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown order status")
	}
	if !input.Actor.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown actor")
	}
	if !CanTransition(input.From, input.To) {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("transition %s -> %s not allowed", input.From, input.To))
	}

	repo := s.repo.WithTx(tx)

	affected, err := repo.UpdateStatusCAS(ctx, input.OrderID, input.From, input.To)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if affected == 0 {
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"order_id": input.OrderID.String(),
				"from":     input.From,
				"to":       input.To,
			})
			s.logg.Warn(logCtx, "order transition lost compare-and-set race")
		}
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
	}

	entry := &models.OrderHistoryEntry{
		OrderID: input.OrderID,
		Status:  input.To,
		Actor:   input.Actor,
	}
	if len(input.Details) > 0 {
		raw, err := marshalDetails(input.Details)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode transition details")
		}
		entry.Details = raw
	}
	if err := repo.CreateHistoryEntry(ctx, entry); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create history entry")
	}

	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   input.OrderID,
		Version:       1,
		Actor:         &outbox.ActorRef{Role: input.Actor},
		Data: payloads.OrderStatusChangedEvent{
			OrderID:    input.OrderID,
			FromStatus: input.From,
			ToStatus:   input.To,
			Actor:      input.Actor,
			ChangedAt:  time.Now().UTC(),
		},
	})
}

// Progress moves an order through the kitchen stages. Only the assigned
// restaurant may advance it, and only into preparing or ready_for_pickup;
// the status machine rejects every other edge.
func (s *service) Progress(ctx context.Context, input ProgressInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.RestaurantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restaurant id required")
	}
	if input.Target != enums.OrderStatusPreparing && input.Target != enums.OrderStatusReadyForPickup {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("%s is not a preparation stage", input.Target))
	}

	order, err := s.repo.FindOrder(ctx, input.OrderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.AssignedRestaurantID == nil || *order.AssignedRestaurantID != input.RestaurantID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order is not assigned to this restaurant")
	}

	err = s.Transition(ctx, TransitionInput{
		OrderID: input.OrderID,
		From:    order.Status,
		To:      input.Target,
		Actor:   enums.ActorRestaurant,
	})
	if err != nil {
		return nil, err
	}
	order.Status = input.Target
	return order, nil
}

// Cancel aborts a non-terminal order. Customers may cancel only their own
// orders. In-flight offer or courier writes racing the cancellation lose
// their compare-and-set and are discarded.
func (s *service) Cancel(ctx context.Context, input CancelInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	switch input.Actor {
	case enums.ActorCustomer, enums.ActorSystem:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "actor cannot cancel orders")
	}

	order, err := s.repo.FindOrder(ctx, input.OrderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if input.Actor == enums.ActorCustomer && order.CustomerID != input.RequestedBy {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another customer")
	}
	if order.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order already %s", order.Status))
	}

	var details map[string]any
	if input.Reason != "" {
		details = map[string]any{"reason": input.Reason}
	}
	err = s.Transition(ctx, TransitionInput{
		OrderID: input.OrderID,
		From:    order.Status,
		To:      enums.OrderStatusCancelled,
		Actor:   input.Actor,
		Details: details,
	})
	if err != nil {
		return nil, err
	}
	order.Status = enums.OrderStatusCancelled
	return order, nil
}

func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindOrderWithItems(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) ListCustomerOrders(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*OrderList, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	list, err := s.repo.ListCustomerOrders(ctx, customerID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}

func (s *service) ListHistory(ctx context.Context, orderID uuid.UUID) ([]HistoryEntryView, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if _, err := s.repo.FindOrder(ctx, orderID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	entries, err := s.repo.ListHistory(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list history")
	}
	views := make([]HistoryEntryView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, HistoryEntryView{
			Status:    entry.Status,
			Actor:     entry.Actor,
			Details:   entry.Details,
			CreatedAt: entry.CreatedAt,
		})
	}
	return views, nil
}

func marshalDetails(details map[string]any) (json.RawMessage, error) {
	raw, err := json.Marshal(details)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}
