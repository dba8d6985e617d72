package enums

import "fmt"

// OrderStatus tracks the lifecycle of a customer order.
type OrderStatus string

const (
	OrderStatusPending               OrderStatus = "pending"
	OrderStatusAwaitingRestaurant    OrderStatus = "awaiting_restaurant"
	OrderStatusRestaurantAccepted    OrderStatus = "restaurant_accepted"
	OrderStatusNoRestaurantAvailable OrderStatus = "no_restaurant_available"
	OrderStatusNoRestaurantAccepted  OrderStatus = "no_restaurant_accepted"
	OrderStatusExpiredAssignment     OrderStatus = "expired_assignment"
	OrderStatusPreparing             OrderStatus = "preparing"
	OrderStatusReadyForPickup        OrderStatus = "ready_for_pickup"
	OrderStatusOnTheWay              OrderStatus = "on_the_way"
	OrderStatusDelivered             OrderStatus = "delivered"
	OrderStatusCancelled             OrderStatus = "cancelled"
	OrderStatusRefunded              OrderStatus = "refunded"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusAwaitingRestaurant,
	OrderStatusRestaurantAccepted,
	OrderStatusNoRestaurantAvailable,
	OrderStatusNoRestaurantAccepted,
	OrderStatusExpiredAssignment,
	OrderStatusPreparing,
	OrderStatusReadyForPickup,
	OrderStatusOnTheWay,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusRefunded,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no automatic transition leaves this status.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusDelivered,
		OrderStatusCancelled,
		OrderStatusRefunded,
		OrderStatusNoRestaurantAvailable,
		OrderStatusNoRestaurantAccepted:
		return true
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
