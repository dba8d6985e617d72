package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/Amrkhafagii/mealverse-backend/pkg/enums"
)

// OrderCreatedEvent is emitted once when a customer places an order.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID         `json:"orderId"`
	CustomerID    uuid.UUID         `json:"customerId"`
	TotalAmount   string            `json:"totalAmount"`
	Currency      string            `json:"currency"`
	LineItemCount int               `json:"lineItemCount"`
	Status        enums.OrderStatus `json:"status"`
	PlacedAt      time.Time         `json:"placedAt"`
}

// OrderStatusChangedEvent is emitted for every committed order transition.
type OrderStatusChangedEvent struct {
	OrderID    uuid.UUID         `json:"orderId"`
	FromStatus enums.OrderStatus `json:"fromStatus"`
	ToStatus   enums.OrderStatus `json:"toStatus"`
	Actor      enums.Actor       `json:"actor"`
	ChangedAt  time.Time         `json:"changedAt"`
}

// AssignmentCreatedEvent is emitted when an offer batch targets a restaurant.
type AssignmentCreatedEvent struct {
	AssignmentID uuid.UUID `json:"assignmentId"`
	OrderID      uuid.UUID `json:"orderId"`
	RestaurantID uuid.UUID `json:"restaurantId"`
	DistanceKm   float64   `json:"distanceKm"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// AssignmentRespondedEvent records a restaurant accepting or rejecting an offer.
type AssignmentRespondedEvent struct {
	AssignmentID uuid.UUID              `json:"assignmentId"`
	OrderID      uuid.UUID              `json:"orderId"`
	RestaurantID uuid.UUID              `json:"restaurantId"`
	Status       enums.AssignmentStatus `json:"status"`
	RespondedAt  time.Time              `json:"respondedAt"`
}

// AssignmentExpiredEvent is emitted when the sweeper times out an open offer.
type AssignmentExpiredEvent struct {
	AssignmentID uuid.UUID `json:"assignmentId"`
	OrderID      uuid.UUID `json:"orderId"`
	RestaurantID uuid.UUID `json:"restaurantId"`
	ExpiredAt    time.Time `json:"expiredAt"`
}

// DeliveryDriverAssignedEvent is emitted when a driver claims a delivery.
type DeliveryDriverAssignedEvent struct {
	DeliveryID uuid.UUID `json:"deliveryId"`
	OrderID    uuid.UUID `json:"orderId"`
	DriverID   uuid.UUID `json:"driverId"`
	AssignedAt time.Time `json:"assignedAt"`
}

// DeliveryStatusChangedEvent mirrors delivery lifecycle transitions.
type DeliveryStatusChangedEvent struct {
	DeliveryID uuid.UUID            `json:"deliveryId"`
	OrderID    uuid.UUID            `json:"orderId"`
	FromStatus enums.DeliveryStatus `json:"fromStatus"`
	ToStatus   enums.DeliveryStatus `json:"toStatus"`
	ChangedAt  time.Time            `json:"changedAt"`
}

// DeliveryLocationUpdatedEvent carries an accepted driver position sample.
type DeliveryLocationUpdatedEvent struct {
	DeliveryID uuid.UUID `json:"deliveryId"`
	OrderID    uuid.UUID `json:"orderId"`
	DriverID   uuid.UUID `json:"driverId"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	RecordedAt time.Time `json:"recordedAt"`
}

// NotificationRequestedEvent asks the notification worker to deliver a message.
type NotificationRequestedEvent struct {
	UserID  uuid.UUID              `json:"userId"`
	Type    enums.NotificationType `json:"type"`
	Title   string                 `json:"title"`
	Message string                 `json:"message"`
	Data    map[string]any         `json:"data,omitempty"`
}
