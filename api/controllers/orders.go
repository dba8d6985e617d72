package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Amrkhafagii/mealverse-backend/api/middleware"
	"github.com/Amrkhafagii/mealverse-backend/api/responses"
	"github.com/Amrkhafagii/mealverse-backend/api/validators"
	"github.com/Amrkhafagii/mealverse-backend/internal/assignment"
	"github.com/Amrkhafagii/mealverse-backend/internal/orders"
	"github.com/Amrkhafagii/mealverse-backend/internal/tracking"
	"github.com/Amrkhafagii/mealverse-backend/pkg/enums"
	pkgerrors "github.com/Amrkhafagii/mealverse-backend/pkg/errors"
	"github.com/Amrkhafagii/mealverse-backend/pkg/logger"
	"github.com/Amrkhafagii/mealverse-backend/pkg/pagination"
)

type placeOrderLineItem struct {
	MealID    uuid.UUID       `json:"meal_id" validate:"required"`
	Name      string          `json:"name" validate:"required,max=200"`
	Quantity  int             `json:"quantity" validate:"required,min=1"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"required"`
}

type placeOrderRequest struct {
	DeliveryMethod    string               `json:"delivery_method" validate:"required,oneof=delivery pickup"`
	DeliveryLatitude  float64              `json:"delivery_latitude" validate:"latitude"`
	DeliveryLongitude float64              `json:"delivery_longitude" validate:"longitude"`
	DeliveryFee       decimal.Decimal      `json:"delivery_fee"`
	Items             []placeOrderLineItem `json:"items" validate:"required,min=1,dive"`
}

// PlaceOrder creates a pending order and immediately starts the restaurant
// offer cycle for it.
func PlaceOrder(ordersSvc orders.Service, assignSvc assignment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := actorUUID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req placeOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParseDeliveryMethod(req.DeliveryMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery method"))
			return
		}

		input := orders.PlaceOrderInput{
			CustomerID:        customerID,
			DeliveryMethod:    method,
			DeliveryLatitude:  req.DeliveryLatitude,
			DeliveryLongitude: req.DeliveryLongitude,
			DeliveryFee:       req.DeliveryFee,
		}
		for _, item := range req.Items {
			input.Items = append(input.Items, orders.LineItemInput{
				MealID:    item.MealID,
				Name:      item.Name,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
			})
		}

		order, err := ordersSvc.PlaceOrder(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		outcome, err := assignSvc.CreateOffers(r.Context(), order.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"order":        order,
			"order_status": outcome.OrderStatus,
			"assignment":   outcome.Assignment,
		})
	}
}

// OrderDetail returns a single order.
func OrderDetail(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.GetOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// OrderHistory returns the append-only audit trail for an order.
func OrderHistory(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		history, err := svc.ListHistory(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"history": history})
	}
}

type progressOrderRequest struct {
	Stage string `json:"stage" validate:"required,oneof=preparing ready_for_pickup"`
}

// ProgressOrder lets the assigned restaurant advance its order through the
// kitchen stages.
func ProgressOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		restaurantID, err := actorUUID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req progressOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		target, err := enums.ParseOrderStatus(req.Stage)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid stage"))
			return
		}

		order, err := svc.Progress(r.Context(), orders.ProgressInput{
			OrderID:      orderID,
			RestaurantID: restaurantID,
			Target:       target,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type cancelOrderRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// CancelOrder aborts a non-terminal order on behalf of the caller.
func CancelOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callerID, err := actorUUID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := enums.ParseActor(middleware.RoleFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid actor role"))
			return
		}
		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		// The reason body is optional.
		var req cancelOrderRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		order, err := svc.Cancel(r.Context(), orders.CancelInput{
			OrderID:     orderID,
			RequestedBy: callerID,
			Actor:       actor,
			Reason:      req.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// ListMyOrders returns the caller's orders, newest first.
func ListMyOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := actorUUID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListCustomerOrders(r.Context(), customerID, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

type driverLocator interface {
	DriverPosition(ctx context.Context, orderID uuid.UUID) (*tracking.CachedPosition, error)
}

// DriverLocation returns the last cached driver position for an order. This
// feeds the customer's live map view.
func DriverLocation(locator driverLocator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		pos, err := locator.DriverPosition(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pos)
	}
}

func actorUUID(ctx context.Context) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(ctx)
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid actor id")
	}
	return id, nil
}

func pathUUID(r *http.Request, param string) (uuid.UUID, error) {
	raw := chi.URLParam(r, param)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid identifier").WithDetails(map[string]any{"param": param})
	}
	return id, nil
}
