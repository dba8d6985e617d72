package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Amrkhafagii/mealverse-backend/pkg/enums"
)

// Order is the customer order aggregate shared by every role. Status moves
// only through compare-and-set transitions recorded in order_history_entries.
type Order struct {
	ID                   uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID           uuid.UUID            `gorm:"column:customer_id;type:uuid;not null"`
	DeliveryMethod       enums.DeliveryMethod `gorm:"column:delivery_method;type:delivery_method;not null;default:'delivery'"`
	Status               enums.OrderStatus    `gorm:"column:status;type:order_status;not null;default:'pending'"`
	SubtotalAmount       decimal.Decimal      `gorm:"column:subtotal_amount;type:numeric(10,2);not null"`
	DeliveryFeeAmount    decimal.Decimal      `gorm:"column:delivery_fee_amount;type:numeric(10,2);not null;default:0"`
	TotalAmount          decimal.Decimal      `gorm:"column:total_amount;type:numeric(10,2);not null"`
	AssignedRestaurantID *uuid.UUID           `gorm:"column:assigned_restaurant_id;type:uuid"`
	DeliveryLatitude     float64              `gorm:"column:delivery_latitude;not null"`
	DeliveryLongitude    float64              `gorm:"column:delivery_longitude;not null"`
	OfferAttempts        int                  `gorm:"column:offer_attempts;not null;default:0"`
	LineItems            []OrderLineItem      `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	History              []OrderHistoryEntry  `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt            time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
