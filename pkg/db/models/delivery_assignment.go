package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Amrkhafagii/mealverse-backend/pkg/enums"
)

// DeliveryAssignment is the courier leg created once a restaurant accepts.
// The driver reference is set by a separate driver-acceptance step.
type DeliveryAssignment struct {
	ID                    uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID               uuid.UUID            `gorm:"column:order_id;type:uuid;not null"`
	RestaurantID          uuid.UUID            `gorm:"column:restaurant_id;type:uuid;not null"`
	DriverID              *uuid.UUID           `gorm:"column:driver_id;type:uuid"`
	Status                enums.DeliveryStatus `gorm:"column:status;type:delivery_status;not null;default:'pending'"`
	PickupTime            *time.Time           `gorm:"column:pickup_time"`
	DeliveryTime          *time.Time           `gorm:"column:delivery_time"`
	EstimatedDeliveryTime *time.Time           `gorm:"column:estimated_delivery_time"`
	CreatedAt             time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (d *DeliveryAssignment) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
