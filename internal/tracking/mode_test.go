package tracking

import (
	"testing"
	"time"

	"github.com/Amrkhafagii/mealverse-backend/pkg/enums"
)

func TestCalculateTrackingMode(t *testing.T) {
	cases := []struct {
		name         string
		input        ModeInput
		wantMode     enums.TrackingMode
		wantInterval time.Duration
	}{
		{
			name:         "force low power wins over on the way proximity",
			input:        ModeInput{ForceLowPower: true, OrderStatus: enums.OrderStatusOnTheWay, DistanceToDestinationKm: 0.2},
			wantMode:     enums.TrackingModeLow,
			wantInterval: 60 * time.Second,
		},
		{
			name:         "battery low forces low",
			input:        ModeInput{BatteryLow: true, OrderStatus: enums.OrderStatusOnTheWay, DistanceToDestinationKm: 0.2},
			wantMode:     enums.TrackingModeLow,
			wantInterval: 60 * time.Second,
		},
		{
			name:         "network low forces low",
			input:        ModeInput{NetworkLow: true, OrderStatus: enums.OrderStatusPreparing, DistanceToDestinationKm: 0.1},
			wantMode:     enums.TrackingModeLow,
			wantInterval: 60 * time.Second,
		},
		{
			name:         "on the way within one km is high",
			input:        ModeInput{OrderStatus: enums.OrderStatusOnTheWay, DistanceToDestinationKm: 1.0},
			wantMode:     enums.TrackingModeHigh,
			wantInterval: 10 * time.Second,
		},
		{
			name:         "on the way within five km is medium",
			input:        ModeInput{OrderStatus: enums.OrderStatusOnTheWay, DistanceToDestinationKm: 4.9},
			wantMode:     enums.TrackingModeMedium,
			wantInterval: 30 * time.Second,
		},
		{
			name:         "on the way far out falls back to medium",
			input:        ModeInput{OrderStatus: enums.OrderStatusOnTheWay, DistanceToDestinationKm: 12},
			wantMode:     enums.TrackingModeMedium,
			wantInterval: 30 * time.Second,
		},
		{
			name:         "on the way unknown distance is medium",
			input:        ModeInput{OrderStatus: enums.OrderStatusOnTheWay, DistanceToDestinationKm: -1},
			wantMode:     enums.TrackingModeMedium,
			wantInterval: 30 * time.Second,
		},
		{
			name:         "preparing very close is high",
			input:        ModeInput{OrderStatus: enums.OrderStatusPreparing, DistanceToDestinationKm: 0.5},
			wantMode:     enums.TrackingModeHigh,
			wantInterval: 10 * time.Second,
		},
		{
			name:         "restaurant accepted very close is high",
			input:        ModeInput{OrderStatus: enums.OrderStatusRestaurantAccepted, DistanceToDestinationKm: 0.3},
			wantMode:     enums.TrackingModeHigh,
			wantInterval: 10 * time.Second,
		},
		{
			name:         "preparing beyond half km is medium",
			input:        ModeInput{OrderStatus: enums.OrderStatusPreparing, DistanceToDestinationKm: 0.6},
			wantMode:     enums.TrackingModeMedium,
			wantInterval: 30 * time.Second,
		},
		{
			name:         "delivered is minimal",
			input:        ModeInput{OrderStatus: enums.OrderStatusDelivered, DistanceToDestinationKm: 0.1},
			wantMode:     enums.TrackingModeMinimal,
			wantInterval: 180 * time.Second,
		},
		{
			name:         "cancelled is minimal",
			input:        ModeInput{OrderStatus: enums.OrderStatusCancelled},
			wantMode:     enums.TrackingModeMinimal,
			wantInterval: 180 * time.Second,
		},
		{
			name:         "pending defaults to medium",
			input:        ModeInput{OrderStatus: enums.OrderStatusPending, DistanceToDestinationKm: 0.1},
			wantMode:     enums.TrackingModeMedium,
			wantInterval: 30 * time.Second,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision := CalculateTrackingMode(tc.input)
			if decision.Mode != tc.wantMode {
				t.Fatalf("mode = %s, want %s", decision.Mode, tc.wantMode)
			}
			if decision.Interval != tc.wantInterval {
				t.Fatalf("interval = %s, want %s", decision.Interval, tc.wantInterval)
			}
		})
	}
}

func TestCalculateTrackingModeForceWinsOverBattery(t *testing.T) {
	decision := CalculateTrackingMode(ModeInput{ForceLowPower: true, BatteryLow: true, OrderStatus: enums.OrderStatusDelivered})
	if decision.Mode != enums.TrackingModeLow {
		t.Fatalf("mode = %s, want low", decision.Mode)
	}
}
