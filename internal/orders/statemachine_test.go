package orders

import (
	"testing"

	"github.com/Amrkhafagii/mealverse-backend/pkg/enums"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		name string
		from enums.OrderStatus
		to   enums.OrderStatus
		want bool
	}{
		{"pending to awaiting", enums.OrderStatusPending, enums.OrderStatusAwaitingRestaurant, true},
		{"awaiting to accepted", enums.OrderStatusAwaitingRestaurant, enums.OrderStatusRestaurantAccepted, true},
		{"awaiting to no candidates", enums.OrderStatusAwaitingRestaurant, enums.OrderStatusNoRestaurantAvailable, true},
		{"awaiting to all rejected", enums.OrderStatusAwaitingRestaurant, enums.OrderStatusNoRestaurantAccepted, true},
		{"awaiting to expired", enums.OrderStatusAwaitingRestaurant, enums.OrderStatusExpiredAssignment, true},
		{"expired loops back", enums.OrderStatusExpiredAssignment, enums.OrderStatusAwaitingRestaurant, true},
		{"expired gives up", enums.OrderStatusExpiredAssignment, enums.OrderStatusNoRestaurantAccepted, true},
		{"accepted to preparing", enums.OrderStatusRestaurantAccepted, enums.OrderStatusPreparing, true},
		{"preparing to ready", enums.OrderStatusPreparing, enums.OrderStatusReadyForPickup, true},
		{"ready to on the way", enums.OrderStatusReadyForPickup, enums.OrderStatusOnTheWay, true},
		{"on the way to delivered", enums.OrderStatusOnTheWay, enums.OrderStatusDelivered, true},
		{"cancel from pending", enums.OrderStatusPending, enums.OrderStatusCancelled, true},
		{"cancel from on the way", enums.OrderStatusOnTheWay, enums.OrderStatusCancelled, true},
		{"refund from preparing", enums.OrderStatusPreparing, enums.OrderStatusRefunded, true},
		{"no cancel after delivered", enums.OrderStatusDelivered, enums.OrderStatusCancelled, false},
		{"no refund after cancel", enums.OrderStatusCancelled, enums.OrderStatusRefunded, false},
		{"no skip to delivered", enums.OrderStatusPending, enums.OrderStatusDelivered, false},
		{"no backwards", enums.OrderStatusPreparing, enums.OrderStatusRestaurantAccepted, false},
		{"no self loop", enums.OrderStatusPending, enums.OrderStatusPending, false},
		{"terminal failure stays", enums.OrderStatusNoRestaurantAvailable, enums.OrderStatusAwaitingRestaurant, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanTransition(tc.from, tc.to); got != tc.want {
				t.Fatalf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestCanTransitionTotalOverAllPairs(t *testing.T) {
	all := []enums.OrderStatus{
		enums.OrderStatusPending,
		enums.OrderStatusAwaitingRestaurant,
		enums.OrderStatusRestaurantAccepted,
		enums.OrderStatusNoRestaurantAvailable,
		enums.OrderStatusNoRestaurantAccepted,
		enums.OrderStatusExpiredAssignment,
		enums.OrderStatusPreparing,
		enums.OrderStatusReadyForPickup,
		enums.OrderStatusOnTheWay,
		enums.OrderStatusDelivered,
		enums.OrderStatusCancelled,
		enums.OrderStatusRefunded,
	}
	for _, from := range all {
		for _, to := range all {
			got := CanTransition(from, to)
			if from.IsTerminal() && got {
				t.Fatalf("terminal %s should not transition to %s", from, to)
			}
			if from == to && got {
				t.Fatalf("self transition %s allowed", from)
			}
		}
	}
}
