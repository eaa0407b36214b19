package partners

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

func setupPartnersTestDB(t *testing.T) *gorm.DB {
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
	profiles := `
CREATE TABLE IF NOT EXISTS partner_profiles (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  store_name TEXT NOT NULL,
  contact_email TEXT NOT NULL,
  phone TEXT,
  commission_rate NUMERIC NOT NULL,
  active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(orders).Error)
	require.NoError(t, db.Exec(orderItems).Error)
	require.NoError(t, db.Exec(profiles).Error)
	return db
}

func seedPartnerOrder(t *testing.T, db *gorm.DB, partnerID, customerID uuid.UUID, total string, status enums.OrderStatus, createdAt time.Time) *models.Order {
	t.Helper()

	order := &models.Order{
		ID:            uuid.New(),
		OrderNumber:   "AM-" + uuid.NewString()[:8],
		PartnerID:     &partnerID,
		CustomerID:    customerID,
		TotalAmount:   decimal.RequireFromString(total),
		Status:        status,
		PaymentStatus: enums.PaymentStatusPending,
		CreatedAt:     createdAt,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestCountOrdersByStatus(t *testing.T) {
	db := setupPartnersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	partnerID := uuid.New()
	now := time.Now().UTC()

	seedPartnerOrder(t, db, partnerID, uuid.New(), "10.00", enums.OrderStatusPending, now)
	seedPartnerOrder(t, db, partnerID, uuid.New(), "20.00", enums.OrderStatusPending, now)
	seedPartnerOrder(t, db, partnerID, uuid.New(), "30.00", enums.OrderStatusCompleted, now)
	seedPartnerOrder(t, db, uuid.New(), uuid.New(), "99.00", enums.OrderStatusPending, now) // other partner

	counts, err := repo.CountOrdersByStatus(ctx, partnerID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[enums.OrderStatusPending])
	assert.Equal(t, int64(1), counts[enums.OrderStatusCompleted])
}

func TestSumOrderTotals(t *testing.T) {
	db := setupPartnersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	partnerID := uuid.New()
	now := time.Now().UTC()

	seedPartnerOrder(t, db, partnerID, uuid.New(), "10.50", enums.OrderStatusPending, now)
	seedPartnerOrder(t, db, partnerID, uuid.New(), "20.25", enums.OrderStatusCancelled, now)

	total, err := repo.SumOrderTotals(ctx, partnerID)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("30.75")), "revenue includes cancelled orders, got %s", total)

	empty, err := repo.SumOrderTotals(ctx, uuid.New())
	require.NoError(t, err)
	assert.True(t, empty.IsZero())
}

func TestListOrdersPagination(t *testing.T) {
	db := setupPartnersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	partnerID := uuid.New()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		seedPartnerOrder(t, db, partnerID, uuid.New(), "10.00", enums.OrderStatusPending, base.Add(time.Duration(i)*time.Minute))
	}

	page, next, err := repo.ListOrders(ctx, partnerID, 2, nil)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.NotNil(t, next)
	assert.True(t, page[0].CreatedAt.After(page[1].CreatedAt), "newest first")

	rest, next, err := repo.ListOrders(ctx, partnerID, 2, next)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Nil(t, next)
}

func TestListCustomerOrders(t *testing.T) {
	db := setupPartnersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	partnerID := uuid.New()
	customerID := uuid.New()
	now := time.Now().UTC()

	seedPartnerOrder(t, db, partnerID, customerID, "10.00", enums.OrderStatusPending, now)
	seedPartnerOrder(t, db, partnerID, uuid.New(), "20.00", enums.OrderStatusPending, now)
	seedPartnerOrder(t, db, uuid.New(), customerID, "30.00", enums.OrderStatusPending, now)

	orders, err := repo.ListCustomerOrders(ctx, customerID, partnerID)
	require.NoError(t, err)
	require.Len(t, orders, 1, "history is scoped to the customer-partner pair")
}

func TestProfileUniquePerUser(t *testing.T) {
	db := setupPartnersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	userID := uuid.New()

	profile := &models.PartnerProfile{
		ID:             uuid.New(),
		UserID:         userID,
		StoreName:      "Gearbox Garage",
		ContactEmail:   "gearbox@example.com",
		CommissionRate: decimal.RequireFromString("0.15"),
		Active:         true,
	}
	require.NoError(t, repo.CreateProfile(ctx, profile))

	dup := &models.PartnerProfile{
		ID:             uuid.New(),
		UserID:         userID,
		StoreName:      "Gearbox Garage II",
		ContactEmail:   "gearbox@example.com",
		CommissionRate: decimal.RequireFromString("0.10"),
	}
	require.Error(t, repo.CreateProfile(ctx, dup))

	found, err := repo.FindProfileByUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, profile.ID, found.ID)
	assert.True(t, found.CommissionRate.Equal(decimal.RequireFromString("0.15")))
}
