package tracking

import (
	"time"

	"github.com/Amrkhafagii/mealverse-backend/pkg/enums"
)

// ModeInput carries every signal the tracking mode calculation looks at.
// DistanceToDestinationKm below zero means the distance is unknown.
type ModeInput struct {
	ForceLowPower           bool
	BatteryLow              bool
	NetworkLow              bool
	OrderStatus             enums.OrderStatus
	DistanceToDestinationKm float64
}

// ModeDecision is the outcome: the selected mode, its polling interval, and
// the distance the decision was based on.
type ModeDecision struct {
	Mode                    enums.TrackingMode
	Interval                time.Duration
	DistanceToDestinationKm float64
}

// CalculateTrackingMode maps device and order signals to a tracking intensity.
// Precedence, highest first: forced low power, low battery, low network,
// proximity and status rules, then the medium default. Pure and total.
func CalculateTrackingMode(input ModeInput) ModeDecision {
	mode := resolveMode(input)
	return ModeDecision{
		Mode:                    mode,
		Interval:                mode.Interval(),
		DistanceToDestinationKm: input.DistanceToDestinationKm,
	}
}

func resolveMode(input ModeInput) enums.TrackingMode {
	if input.ForceLowPower {
		return enums.TrackingModeLow
	}
	if input.BatteryLow {
		return enums.TrackingModeLow
	}
	if input.NetworkLow {
		return enums.TrackingModeLow
	}

	distanceKnown := input.DistanceToDestinationKm >= 0
	switch input.OrderStatus {
	case enums.OrderStatusOnTheWay:
		if distanceKnown && input.DistanceToDestinationKm <= 1.0 {
			return enums.TrackingModeHigh
		}
		if distanceKnown && input.DistanceToDestinationKm <= 5.0 {
			return enums.TrackingModeMedium
		}
	case enums.OrderStatusPreparing, enums.OrderStatusRestaurantAccepted:
		if distanceKnown && input.DistanceToDestinationKm <= 0.5 {
			return enums.TrackingModeHigh
		}
	case enums.OrderStatusDelivered, enums.OrderStatusCancelled:
		return enums.TrackingModeMinimal
	}

	return enums.TrackingModeMedium
}
