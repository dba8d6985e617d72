package delivery

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Amrkhafagii/mealverse-backend/pkg/db/models"
	"github.com/Amrkhafagii/mealverse-backend/pkg/enums"
)

// Repository defines persistence for the courier leg. FindActiveByOrder and
// UpdateEstimatedDeliveryTime double as the location recorder's store.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindDelivery(ctx context.Context, deliveryID uuid.UUID) (*models.DeliveryAssignment, error)
	FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.DeliveryAssignment, error)
	// FindActiveByOrder returns the non-terminal delivery for an order plus
	// its order row, gorm.ErrRecordNotFound when none.
	FindActiveByOrder(ctx context.Context, orderID uuid.UUID) (*models.DeliveryAssignment, *models.Order, error)
	ListDriverDeliveries(ctx context.Context, driverID uuid.UUID, limit int) ([]models.DeliveryAssignment, error)
	// UpdateStatusCAS flips the delivery only when the stored status still
	// equals expected, applying extra column updates in the same statement.
	UpdateStatusCAS(ctx context.Context, deliveryID uuid.UUID, expected, next enums.DeliveryStatus, updates map[string]any) (int64, error)
	UpdateEstimatedDeliveryTime(ctx context.Context, deliveryID uuid.UUID, eta time.Time) error
}
