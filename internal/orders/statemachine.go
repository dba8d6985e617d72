package orders

import (
	"github.com/Amrkhafagii/mealverse-backend/pkg/enums"
)

// allowedTransitions encodes the order state flow (diagram) as code.
// cancelled and refunded are handled separately: both are reachable from any
// non-terminal state.
var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending: {enums.OrderStatusAwaitingRestaurant},
	enums.OrderStatusAwaitingRestaurant: {
		enums.OrderStatusRestaurantAccepted,
		enums.OrderStatusNoRestaurantAvailable,
		enums.OrderStatusNoRestaurantAccepted,
		enums.OrderStatusExpiredAssignment,
	},
	enums.OrderStatusExpiredAssignment: {
		enums.OrderStatusAwaitingRestaurant,
		enums.OrderStatusNoRestaurantAccepted,
	},
	enums.OrderStatusRestaurantAccepted: {enums.OrderStatusPreparing},
	enums.OrderStatusPreparing:          {enums.OrderStatusReadyForPickup},
	enums.OrderStatusReadyForPickup:     {enums.OrderStatusOnTheWay},
	enums.OrderStatusOnTheWay:           {enums.OrderStatusDelivered},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to enums.OrderStatus) bool {
	if from == to {
		return false
	}
	switch to {
	case enums.OrderStatusCancelled, enums.OrderStatusRefunded:
		return !from.IsTerminal()
	}
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}
