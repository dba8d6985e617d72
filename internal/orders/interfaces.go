package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Amrkhafagii/mealverse-backend/pkg/db/models"
	"github.com/Amrkhafagii/mealverse-backend/pkg/enums"
	"github.com/Amrkhafagii/mealverse-backend/pkg/pagination"
)

// Repository defines persistence operations for the order aggregate.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateOrderLineItems(ctx context.Context, items []models.OrderLineItem) error
	CreateHistoryEntry(ctx context.Context, entry *models.OrderHistoryEntry) error
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindOrderWithItems(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListCustomerOrders(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*OrderList, error)
	ListHistory(ctx context.Context, orderID uuid.UUID) ([]models.OrderHistoryEntry, error)
	// UpdateStatusCAS flips the status only when the stored value still equals
	// expected, returning the number of rows changed.
	UpdateStatusCAS(ctx context.Context, orderID uuid.UUID, expected, next enums.OrderStatus) (int64, error)
	UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
}
