package tracking

import (
	"fmt"
	"time"
)

// ETA is the signed time-until-delivery view shown to customers. Overdue
// deliveries report positive minutes with IsOverdue set instead of a negative
// countdown.
type ETA struct {
	Minutes   int
	IsOverdue bool
	HumanText string
}

// TimeUntilDelivery computes the remaining (or exceeded) time against an
// estimated arrival timestamp.
func TimeUntilDelivery(estimatedArrival, now time.Time) ETA {
	remaining := estimatedArrival.Sub(now)
	minutes := int(remaining.Round(time.Minute) / time.Minute)

	switch {
	case minutes < 0:
		overdue := -minutes
		return ETA{
			Minutes:   overdue,
			IsOverdue: true,
			HumanText: fmt.Sprintf("overdue by %d min", overdue),
		}
	case minutes == 0:
		return ETA{HumanText: "arriving now"}
	default:
		return ETA{
			Minutes:   minutes,
			HumanText: fmt.Sprintf("%d min remaining", minutes),
		}
	}
}
