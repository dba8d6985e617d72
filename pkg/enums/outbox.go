package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder              OutboxAggregateType = "order"
	AggregateAssignment         OutboxAggregateType = "restaurant_assignment"
	AggregateDeliveryAssignment OutboxAggregateType = "delivery_assignment"
	AggregateNotification       OutboxAggregateType = "notification"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateAssignment,
	AggregateDeliveryAssignment,
	AggregateNotification,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated            OutboxEventType = "order_created"
	EventOrderStatusChanged      OutboxEventType = "order_status_changed"
	EventAssignmentCreated       OutboxEventType = "assignment_created"
	EventAssignmentResponded     OutboxEventType = "assignment_responded"
	EventAssignmentExpired       OutboxEventType = "assignment_expired"
	EventDeliveryDriverAssigned  OutboxEventType = "delivery_driver_assigned"
	EventDeliveryStatusChanged   OutboxEventType = "delivery_status_changed"
	EventDeliveryLocationUpdated OutboxEventType = "delivery_location_updated"
	EventNotificationRequested   OutboxEventType = "notification_requested"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderStatusChanged,
	EventAssignmentCreated,
	EventAssignmentResponded,
	EventAssignmentExpired,
	EventDeliveryDriverAssigned,
	EventDeliveryStatusChanged,
	EventDeliveryLocationUpdated,
	EventNotificationRequested,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
