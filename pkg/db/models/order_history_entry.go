package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Amrkhafagii/mealverse-backend/pkg/enums"
)

// OrderHistoryEntry is the append-only audit record written alongside every
// order status transition. Rows are never mutated or deleted.
type OrderHistoryEntry struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID         `gorm:"column:order_id;type:uuid;not null"`
	Status    enums.OrderStatus `gorm:"column:status;type:order_status;not null"`
	Actor     enums.Actor       `gorm:"column:actor;type:order_actor;not null"`
	Details   json.RawMessage   `gorm:"column:details;type:jsonb"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (e *OrderHistoryEntry) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
