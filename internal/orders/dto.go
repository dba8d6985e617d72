package orders

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Amrkhafagii/mealverse-backend/pkg/enums"
)

// LineItemInput is one meal on a new order.
type LineItemInput struct {
	MealID    uuid.UUID
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

// PlaceOrderInput captures everything needed to create a pending order.
type PlaceOrderInput struct {
	CustomerID        uuid.UUID
	DeliveryMethod    enums.DeliveryMethod
	DeliveryLatitude  float64
	DeliveryLongitude float64
	DeliveryFee       decimal.Decimal
	Items             []LineItemInput
}

// TransitionInput carries one requested status change.
type TransitionInput struct {
	OrderID uuid.UUID
	From    enums.OrderStatus
	To      enums.OrderStatus
	Actor   enums.Actor
	Details map[string]any
}

// ProgressInput is the assigned restaurant advancing its order through the
// preparation stages.
type ProgressInput struct {
	OrderID      uuid.UUID
	RestaurantID uuid.UUID
	Target       enums.OrderStatus
}

// CancelInput aborts a non-terminal order.
type CancelInput struct {
	OrderID     uuid.UUID
	RequestedBy uuid.UUID
	Actor       enums.Actor
	Reason      string
}

// OrderSummary is the list-view projection of an order.
type OrderSummary struct {
	ID             uuid.UUID            `json:"id"`
	Status         enums.OrderStatus    `json:"status"`
	DeliveryMethod enums.DeliveryMethod `json:"delivery_method"`
	TotalAmount    decimal.Decimal      `json:"total_amount"`
	TotalItems     int                  `json:"total_items"`
	CreatedAt      time.Time            `json:"created_at"`
}

// OrderList wraps the paginated orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// HistoryEntryView is the audit projection returned by the history endpoint.
type HistoryEntryView struct {
	Status    enums.OrderStatus `json:"status"`
	Actor     enums.Actor       `json:"actor"`
	Details   json.RawMessage   `json:"details,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
