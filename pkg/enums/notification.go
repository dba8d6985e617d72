package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationOrderStatus    NotificationType = "order_status"
	NotificationOfferReceived  NotificationType = "offer_received"
	NotificationDriverAssigned NotificationType = "driver_assigned"
	NotificationDeliveryUpdate NotificationType = "delivery_update"
)

var validNotificationTypes = []NotificationType{
	NotificationOrderStatus,
	NotificationOfferReceived,
	NotificationDriverAssigned,
	NotificationDeliveryUpdate,
}

// IsValid reports whether the value is a known NotificationType.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw input into a NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
