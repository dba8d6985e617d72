package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Amrkhafagii/mealverse-backend/pkg/enums"
)

// RestaurantAssignment is one time-boxed offer for a restaurant to fulfill
// an order. At most one assignment per order may be accepted; the partial
// unique index ux_restaurant_assignments_one_accepted enforces it.
type RestaurantAssignment struct {
	ID           uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID      uuid.UUID              `gorm:"column:order_id;type:uuid;not null"`
	RestaurantID uuid.UUID              `gorm:"column:restaurant_id;type:uuid;not null"`
	Status       enums.AssignmentStatus `gorm:"column:status;type:assignment_status;not null;default:'pending'"`
	DistanceKm   float64                `gorm:"column:distance_km;not null"`
	AssignedAt   time.Time              `gorm:"column:assigned_at;autoCreateTime"`
	ExpiresAt    time.Time              `gorm:"column:expires_at;not null"`
	RespondedAt  *time.Time             `gorm:"column:responded_at"`
}

func (a *RestaurantAssignment) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
