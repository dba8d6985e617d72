package assignment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Amrkhafagii/mealverse-backend/pkg/db/models"
	"github.com/Amrkhafagii/mealverse-backend/pkg/enums"
)

// Repository defines persistence for restaurant offers and the rows the
// coordinator touches alongside them.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateAssignment(ctx context.Context, assignment *models.RestaurantAssignment) (*models.RestaurantAssignment, error)
	FindAssignment(ctx context.Context, assignmentID uuid.UUID) (*models.RestaurantAssignment, error)
	// FindActiveByOrder returns the order's pending or accepted assignment,
	// gorm.ErrRecordNotFound when neither exists.
	FindActiveByOrder(ctx context.Context, orderID uuid.UUID) (*models.RestaurantAssignment, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.RestaurantAssignment, error)
	// UpdateStatusCAS flips an assignment only when the stored status still
	// equals expected, returning the number of rows changed.
	UpdateStatusCAS(ctx context.Context, assignmentID uuid.UUID, expected, next enums.AssignmentStatus, respondedAt *time.Time) (int64, error)
	ExpireSiblingPending(ctx context.Context, orderID, exceptID uuid.UUID) (int64, error)
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]models.RestaurantAssignment, error)
	TriedRestaurantIDs(ctx context.Context, orderID uuid.UUID) ([]uuid.UUID, error)
	ListActiveRestaurants(ctx context.Context) ([]models.Restaurant, error)
	SetAssignedRestaurant(ctx context.Context, orderID, restaurantID uuid.UUID) error
	IncrementOfferAttempts(ctx context.Context, orderID uuid.UUID) error
	CreateDeliveryAssignment(ctx context.Context, delivery *models.DeliveryAssignment) error
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

// CapabilityOracle answers whether a restaurant can fulfill every line item
// of an order. Menu data lives outside this service.
type CapabilityOracle interface {
	CanFulfill(ctx context.Context, restaurant *models.Restaurant, order *models.Order) (bool, error)
}

// AllowAllOracle treats every active restaurant as capable. Used until a menu
// service is wired in.
type AllowAllOracle struct{}

func (AllowAllOracle) CanFulfill(ctx context.Context, restaurant *models.Restaurant, order *models.Order) (bool, error) {
	return true, nil
}

// Clock abstracts time for offer expiry decisions.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }
