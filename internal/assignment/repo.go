package assignment

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

// NewRepository builds an assignment repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateAssignment(ctx context.Context, assignment *models.RestaurantAssignment) (*models.RestaurantAssignment, error) {
	if err := r.db.WithContext(ctx).Create(assignment).Error; err != nil {
		return nil, err
	}
	return assignment, nil
}

func (r *repository) FindAssignment(ctx context.Context, assignmentID uuid.UUID) (*models.RestaurantAssignment, error) {
	var assignment models.RestaurantAssignment
	err := r.db.WithContext(ctx).
		Where("id = ?", assignmentID).
		First(&assignment).Error
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *repository) FindActiveByOrder(ctx context.Context, orderID uuid.UUID) (*models.RestaurantAssignment, error) {
	var assignment models.RestaurantAssignment
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status IN ?", orderID,
			[]enums.AssignmentStatus{enums.AssignmentStatusPending, enums.AssignmentStatusAccepted}).
		Order("assigned_at DESC").
		First(&assignment).Error
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.RestaurantAssignment, error) {
	var assignments []models.RestaurantAssignment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("assigned_at ASC").
		Find(&assignments).Error
	if err != nil {
		return nil, err
	}
	return assignments, nil
}

func (r *repository) UpdateStatusCAS(ctx context.Context, assignmentID uuid.UUID, expected, next enums.AssignmentStatus, respondedAt *time.Time) (int64, error) {
	updates := map[string]any{"status": next}
	if respondedAt != nil {
		updates["responded_at"] = *respondedAt
	}
	result := r.db.WithContext(ctx).
		Model(&models.RestaurantAssignment{}).
		Where("id = ? AND status = ?", assignmentID, expected).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *repository) ExpireSiblingPending(ctx context.Context, orderID, exceptID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.RestaurantAssignment{}).
		Where("order_id = ? AND id <> ? AND status = ?", orderID, exceptID, enums.AssignmentStatusPending).
		Update("status", enums.AssignmentStatusExpired)
	return result.RowsAffected, result.Error
}

func (r *repository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]models.RestaurantAssignment, error) {
	var assignments []models.RestaurantAssignment
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", enums.AssignmentStatusPending, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&assignments).Error
	if err != nil {
		return nil, err
	}
	return assignments, nil
}

func (r *repository) TriedRestaurantIDs(ctx context.Context, orderID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.RestaurantAssignment{}).
		Where("order_id = ?", orderID).
		Pluck("restaurant_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) ListActiveRestaurants(ctx context.Context) ([]models.Restaurant, error) {
	var restaurants []models.Restaurant
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Find(&restaurants).Error
	if err != nil {
		return nil, err
	}
	return restaurants, nil
}

func (r *repository) SetAssignedRestaurant(ctx context.Context, orderID, restaurantID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("assigned_restaurant_id", restaurantID).Error
}

func (r *repository) IncrementOfferAttempts(ctx context.Context, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("offer_attempts", gorm.Expr("offer_attempts + 1")).Error
}

func (r *repository) CreateDeliveryAssignment(ctx context.Context, delivery *models.DeliveryAssignment) error {
	return r.db.WithContext(ctx).Create(delivery).Error
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}
