package tracking

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dvillareal/automarket-backend/pkg/db/models"
	"github.com/dvillareal/automarket-backend/pkg/enums"
)

func setupTrackingTestDB(t *testing.T) *gorm.DB {
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
	trackings := `
CREATE TABLE IF NOT EXISTS order_trackings (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL UNIQUE,
  tracking_number TEXT NOT NULL UNIQUE,
  carrier TEXT NOT NULL,
  shipping_method TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'shipped',
  admin_id TEXT NOT NULL,
  partner_id TEXT NOT NULL,
  estimated_delivery DATETIME,
  actual_delivery DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	updates := `
CREATE TABLE IF NOT EXISTS tracking_updates (
  id TEXT PRIMARY KEY,
  tracking_id TEXT NOT NULL,
  status TEXT NOT NULL,
  location TEXT,
  description TEXT,
  updated_by TEXT NOT NULL,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(orders).Error)
	require.NoError(t, db.Exec(trackings).Error)
	require.NoError(t, db.Exec(updates).Error)
	return db
}

func seedTracking(t *testing.T, db *gorm.DB, status enums.TrackingStatus) *models.OrderTracking {
	t.Helper()

	tracking := &models.OrderTracking{
		ID:             uuid.New(),
		OrderID:        uuid.New(),
		TrackingNumber: "TRK-" + uuid.NewString()[:8],
		Carrier:        "FedEx",
		ShippingMethod: "express",
		Status:         status,
		AdminID:        uuid.New(),
		PartnerID:      uuid.New(),
	}
	require.NoError(t, db.Create(tracking).Error)
	return tracking
}

func TestCreateAndFind(t *testing.T) {
	db := setupTrackingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	tracking := seedTracking(t, db, enums.TrackingStatusShipped)
	base := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	for i, status := range []enums.TrackingStatus{enums.TrackingStatusShipped, enums.TrackingStatusInTransit} {
		update := &models.TrackingUpdate{
			ID:         uuid.New(),
			TrackingID: tracking.ID,
			Status:     status,
			UpdatedBy:  uuid.New(),
			CreatedAt:  base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, repo.AppendUpdate(ctx, update))
	}

	byOrder, err := repo.FindByOrder(ctx, tracking.OrderID)
	require.NoError(t, err)
	require.Len(t, byOrder.Updates, 2)
	assert.Equal(t, enums.TrackingStatusShipped, byOrder.Updates[0].Status, "history must be oldest first")
	assert.Equal(t, enums.TrackingStatusInTransit, byOrder.Updates[1].Status)

	byNumber, err := repo.FindByTrackingNumber(ctx, tracking.TrackingNumber)
	require.NoError(t, err)
	assert.Equal(t, tracking.ID, byNumber.ID)

	_, err = repo.FindByOrder(ctx, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestOneTrackingPerOrder(t *testing.T) {
	db := setupTrackingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	tracking := seedTracking(t, db, enums.TrackingStatusShipped)
	dup := &models.OrderTracking{
		ID:             uuid.New(),
		OrderID:        tracking.OrderID,
		TrackingNumber: "TRK-" + uuid.NewString()[:8],
		Carrier:        "UPS",
		ShippingMethod: "ground",
		Status:         enums.TrackingStatusShipped,
		AdminID:        uuid.New(),
		PartnerID:      uuid.New(),
	}
	err := repo.Create(ctx, dup)
	require.Error(t, err, "second tracking for the same order must be rejected")
}

func TestAdvanceStatusGuard(t *testing.T) {
	db := setupTrackingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	tracking := seedTracking(t, db, enums.TrackingStatusShipped)

	advanced, err := repo.AdvanceStatus(ctx, tracking.ID, enums.TrackingStatusShipped, enums.TrackingStatusInTransit, nil)
	require.NoError(t, err)
	assert.True(t, advanced)

	// Stale writers carry the old status and must lose.
	advanced, err = repo.AdvanceStatus(ctx, tracking.ID, enums.TrackingStatusShipped, enums.TrackingStatusInTransit, nil)
	require.NoError(t, err)
	assert.False(t, advanced)

	deliveredAt := time.Now().UTC()
	advanced, err = repo.AdvanceStatus(ctx, tracking.ID, enums.TrackingStatusInTransit, enums.TrackingStatusDelivered, &deliveredAt)
	require.NoError(t, err)
	assert.True(t, advanced)

	reloaded, err := repo.FindByID(ctx, tracking.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.TrackingStatusDelivered, reloaded.Status)
	require.NotNil(t, reloaded.ActualDelivery)
}

func TestDeleteCascadesHistory(t *testing.T) {
	db := setupTrackingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	tracking := seedTracking(t, db, enums.TrackingStatusShipped)
	update := &models.TrackingUpdate{
		ID:         uuid.New(),
		TrackingID: tracking.ID,
		Status:     enums.TrackingStatusShipped,
		UpdatedBy:  uuid.New(),
	}
	require.NoError(t, repo.AppendUpdate(ctx, update))

	require.NoError(t, repo.DeleteUpdates(ctx, tracking.ID))
	deleted, err := repo.Delete(ctx, tracking.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	var remaining int64
	require.NoError(t, db.Model(&models.TrackingUpdate{}).Where("tracking_id = ?", tracking.ID).Count(&remaining).Error)
	assert.Zero(t, remaining)

	deleted, err = repo.Delete(ctx, tracking.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}
