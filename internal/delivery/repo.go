package delivery

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Amrkhafagii/mealverse-backend/pkg/db/models"
	"github.com/Amrkhafagii/mealverse-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a delivery repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindDelivery(ctx context.Context, deliveryID uuid.UUID) (*models.DeliveryAssignment, error) {
	var delivery models.DeliveryAssignment
	err := r.db.WithContext(ctx).
		Where("id = ?", deliveryID).
		First(&delivery).Error
	if err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (r *repository) FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.DeliveryAssignment, error) {
	var delivery models.DeliveryAssignment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&delivery).Error
	if err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (r *repository) FindActiveByOrder(ctx context.Context, orderID uuid.UUID) (*models.DeliveryAssignment, *models.Order, error) {
	var delivery models.DeliveryAssignment
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status NOT IN ?", orderID,
			[]enums.DeliveryStatus{enums.DeliveryStatusDelivered, enums.DeliveryStatusCancelled}).
		First(&delivery).Error
	if err != nil {
		return nil, nil, err
	}
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", orderID).First(&order).Error; err != nil {
		return nil, nil, err
	}
	return &delivery, &order, nil
}

func (r *repository) ListDriverDeliveries(ctx context.Context, driverID uuid.UUID, limit int) ([]models.DeliveryAssignment, error) {
	var deliveries []models.DeliveryAssignment
	err := r.db.WithContext(ctx).
		Where("driver_id = ?", driverID).
		Order("created_at DESC").
		Limit(limit).
		Find(&deliveries).Error
	if err != nil {
		return nil, err
	}
	return deliveries, nil
}

func (r *repository) UpdateStatusCAS(ctx context.Context, deliveryID uuid.UUID, expected, next enums.DeliveryStatus, updates map[string]any) (int64, error) {
	merged := map[string]any{"status": next}
	for column, value := range updates {
		merged[column] = value
	}
	result := r.db.WithContext(ctx).
		Model(&models.DeliveryAssignment{}).
		Where("id = ? AND status = ?", deliveryID, expected).
		Updates(merged)
	return result.RowsAffected, result.Error
}

func (r *repository) UpdateEstimatedDeliveryTime(ctx context.Context, deliveryID uuid.UUID, eta time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.DeliveryAssignment{}).
		Where("id = ?", deliveryID).
		Update("estimated_delivery_time", eta).Error
}
