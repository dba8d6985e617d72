package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Amrkhafagii/mealverse-backend/pkg/db/models"
	"github.com/Amrkhafagii/mealverse-backend/pkg/enums"
	"github.com/Amrkhafagii/mealverse-backend/pkg/pagination"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL,
  delivery_method TEXT NOT NULL DEFAULT 'delivery',
  status TEXT NOT NULL DEFAULT 'pending',
  subtotal_amount NUMERIC NOT NULL,
  delivery_fee_amount NUMERIC NOT NULL DEFAULT 0,
  total_amount NUMERIC NOT NULL,
  assigned_restaurant_id TEXT,
  delivery_latitude REAL NOT NULL,
  delivery_longitude REAL NOT NULL,
  offer_attempts INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	lineItems := `
CREATE TABLE IF NOT EXISTS order_line_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  meal_id TEXT NOT NULL,
  name TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price NUMERIC NOT NULL,
  created_at DATETIME
);`
	history := `
CREATE TABLE IF NOT EXISTS order_history_entries (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  status TEXT NOT NULL,
  actor TEXT NOT NULL,
  details TEXT,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(orders).Error)
	require.NoError(t, db.Exec(lineItems).Error)
	require.NoError(t, db.Exec(history).Error)
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, customerID uuid.UUID, status enums.OrderStatus, created time.Time) *models.Order {
	t.Helper()

	order := &models.Order{
		CustomerID:        customerID,
		DeliveryMethod:    enums.DeliveryMethodDelivery,
		Status:            status,
		SubtotalAmount:    decimal.NewFromInt(20),
		TotalAmount:       decimal.NewFromInt(25),
		DeliveryFeeAmount: decimal.NewFromInt(5),
		DeliveryLatitude:  30.05,
		DeliveryLongitude: 31.24,
		CreatedAt:         created,
		UpdatedAt:         created,
	}
	order.ID = uuid.New()
	require.NoError(t, db.Create(order).Error)

	item := &models.OrderLineItem{
		OrderID:   order.ID,
		MealID:    uuid.New(),
		Name:      "Koshari Bowl",
		Quantity:  2,
		UnitPrice: decimal.NewFromInt(10),
		CreatedAt: created,
	}
	item.ID = uuid.New()
	require.NoError(t, db.Create(item).Error)
	return order
}

func TestUpdateStatusCAS(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, uuid.New(), enums.OrderStatusPending, time.Now())

	affected, err := repo.UpdateStatusCAS(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusAwaitingRestaurant)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	// expected status no longer matches, nothing changes
	affected, err = repo.UpdateStatusCAS(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)

	current, err := repo.FindOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusAwaitingRestaurant, current.Status)
}

func TestCreateAndListHistory(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, uuid.New(), enums.OrderStatusPending, time.Now())

	first := &models.OrderHistoryEntry{
		ID:        uuid.New(),
		OrderID:   order.ID,
		Status:    enums.OrderStatusPending,
		Actor:     enums.ActorCustomer,
		CreatedAt: time.Now().Add(-time.Minute),
	}
	second := &models.OrderHistoryEntry{
		ID:        uuid.New(),
		OrderID:   order.ID,
		Status:    enums.OrderStatusAwaitingRestaurant,
		Actor:     enums.ActorSystem,
		CreatedAt: time.Now(),
	}
	require.NoError(t, repo.CreateHistoryEntry(ctx, first))
	require.NoError(t, repo.CreateHistoryEntry(ctx, second))

	entries, err := repo.ListHistory(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, enums.OrderStatusPending, entries[0].Status)
	assert.Equal(t, enums.OrderStatusAwaitingRestaurant, entries[1].Status)
}

func TestListCustomerOrdersPagination(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	customerID := uuid.New()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		seedOrder(t, db, customerID, enums.OrderStatusPending, base.Add(time.Duration(i)*time.Minute))
	}
	seedOrder(t, db, uuid.New(), enums.OrderStatusPending, base)

	page, err := repo.ListCustomerOrders(ctx, customerID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Orders, 2)
	require.NotEmpty(t, page.NextCursor)
	assert.True(t, page.Orders[0].CreatedAt.After(page.Orders[1].CreatedAt))
	assert.Equal(t, 2, page.Orders[0].TotalItems)

	rest, err := repo.ListCustomerOrders(ctx, customerID, pagination.Params{Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest.Orders, 1)
	assert.Empty(t, rest.NextCursor)
}
