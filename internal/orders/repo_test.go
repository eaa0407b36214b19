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

	"github.com/dvillareal/automarket-backend/pkg/db/models"
	"github.com/dvillareal/automarket-backend/pkg/enums"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  order_number TEXT NOT NULL UNIQUE,
  partner_id TEXT,
  customer_id TEXT NOT NULL,
  currency TEXT NOT NULL DEFAULT 'USD',
  total_amount NUMERIC NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  payment_status TEXT NOT NULL DEFAULT 'pending',
  paid_out INTEGER NOT NULL DEFAULT 0,
  payout_amount NUMERIC,
  payout_date DATETIME,
  cancellation_reason TEXT,
  cancelled_at DATETIME,
  completed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	orderItems := `
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT,
  name TEXT NOT NULL,
  sku TEXT,
  unit_price NUMERIC NOT NULL,
  qty INTEGER NOT NULL,
  total NUMERIC NOT NULL,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(orders).Error)
	require.NoError(t, db.Exec(orderItems).Error)
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, status enums.OrderStatus, paidOut bool, withPartner bool) *models.Order {
	t.Helper()

	order := &models.Order{
		ID:            uuid.New(),
		OrderNumber:   "AM-" + uuid.NewString()[:8],
		CustomerID:    uuid.New(),
		TotalAmount:   decimal.RequireFromString("100.00"),
		Status:        status,
		PaymentStatus: enums.PaymentStatusPaid,
		PaidOut:       paidOut,
	}
	if withPartner {
		partnerID := uuid.New()
		order.PartnerID = &partnerID
	}
	if status == enums.OrderStatusCompleted {
		at := time.Now().UTC()
		order.CompletedAt = &at
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestFindByIDPreloadsItems(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, enums.OrderStatusPending, false, true)
	item := &models.OrderItem{
		ID:        uuid.New(),
		OrderID:   order.ID,
		Name:      "Alternator",
		UnitPrice: decimal.RequireFromString("250.00"),
		Qty:       1,
		Total:     decimal.RequireFromString("250.00"),
	}
	require.NoError(t, db.Create(item).Error)

	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, found.Items, 1)
	assert.Equal(t, "Alternator", found.Items[0].Name)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestMarkShippedGuard(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	processing := seedOrder(t, db, enums.OrderStatusProcessing, false, true)
	shipped, err := repo.MarkShipped(ctx, processing.ID)
	require.NoError(t, err)
	assert.True(t, shipped)

	shipped, err = repo.MarkShipped(ctx, processing.ID)
	require.NoError(t, err)
	assert.False(t, shipped, "shipped order must not re-enter shipped")

	pending := seedOrder(t, db, enums.OrderStatusPending, false, true)
	shipped, err = repo.MarkShipped(ctx, pending.ID)
	require.NoError(t, err)
	assert.False(t, shipped, "pending order must not skip processing")
}

func TestMarkCompletedGuard(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	order := seedOrder(t, db, enums.OrderStatusShipped, false, true)
	completed, err := repo.MarkCompleted(ctx, order.ID, now)
	require.NoError(t, err)
	assert.True(t, completed)

	completed, err = repo.MarkCompleted(ctx, order.ID, now)
	require.NoError(t, err)
	assert.False(t, completed)

	reloaded, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCompleted, reloaded.Status)
	require.NotNil(t, reloaded.CompletedAt)

	pending := seedOrder(t, db, enums.OrderStatusPending, false, true)
	completed, err = repo.MarkCompleted(ctx, pending.ID, now)
	require.NoError(t, err)
	assert.False(t, completed, "pending orders cannot complete")
}

func TestListCompletedUnpaid(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	// The shared-cache database persists rows across tests in this package.
	require.NoError(t, db.Exec("DELETE FROM orders").Error)

	eligible := seedOrder(t, db, enums.OrderStatusCompleted, false, true)
	seedOrder(t, db, enums.OrderStatusCompleted, true, true)   // already paid out
	seedOrder(t, db, enums.OrderStatusCompleted, false, false) // no partner
	seedOrder(t, db, enums.OrderStatusShipped, false, true)    // not completed

	orders, err := repo.ListCompletedUnpaid(ctx, 10)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, eligible.ID, orders[0].ID)
}
