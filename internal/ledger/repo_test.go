package ledger

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

func setupLedgerTestDB(t *testing.T) *gorm.DB {
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
	partnerProfiles := `
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
	walletBalances := `
CREATE TABLE IF NOT EXISTS wallet_balances (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  balance NUMERIC NOT NULL DEFAULT 0,
  currency TEXT NOT NULL DEFAULT 'USD',
  created_at DATETIME,
  updated_at DATETIME
);`
	walletTransactions := `
CREATE TABLE IF NOT EXISTS wallet_transactions (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  order_id TEXT,
  type TEXT NOT NULL,
  amount NUMERIC NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  description TEXT NOT NULL,
  metadata TEXT,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(orders).Error)
	require.NoError(t, db.Exec(partnerProfiles).Error)
	require.NoError(t, db.Exec(walletBalances).Error)
	require.NoError(t, db.Exec(walletTransactions).Error)
	return db
}

func newOrder(t *testing.T, db *gorm.DB, partnerID uuid.UUID, total string, status enums.OrderStatus, payment enums.PaymentStatus) *models.Order {
	t.Helper()

	order := &models.Order{
		ID:            uuid.New(),
		OrderNumber:   "AM-" + uuid.NewString()[:8],
		PartnerID:     &partnerID,
		CustomerID:    uuid.New(),
		TotalAmount:   decimal.RequireFromString(total),
		Status:        status,
		PaymentStatus: payment,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestEnsureBalanceIdempotent(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, repo.EnsureBalance(ctx, userID))
	require.NoError(t, repo.EnsureBalance(ctx, userID))

	var count int64
	require.NoError(t, db.Model(&models.WalletBalance{}).Where("user_id = ?", userID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	balance, err := repo.FindBalance(ctx, userID)
	require.NoError(t, err)
	assert.True(t, balance.Balance.IsZero())
}

func TestDebitBalanceIfSufficient(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, repo.EnsureBalance(ctx, userID))
	credited, err := repo.CreditBalance(ctx, userID, decimal.RequireFromString("50.00"))
	require.NoError(t, err)
	require.True(t, credited)

	debited, err := repo.DebitBalanceIfSufficient(ctx, userID, decimal.RequireFromString("80.00"))
	require.NoError(t, err)
	assert.False(t, debited, "debit above balance must not apply")

	balance, err := repo.FindBalance(ctx, userID)
	require.NoError(t, err)
	assert.True(t, balance.Balance.Equal(decimal.RequireFromString("50.00")), "failed debit must leave the balance untouched, got %s", balance.Balance)

	debited, err = repo.DebitBalanceIfSufficient(ctx, userID, decimal.RequireFromString("30.00"))
	require.NoError(t, err)
	assert.True(t, debited)

	balance, err = repo.FindBalance(ctx, userID)
	require.NoError(t, err)
	assert.True(t, balance.Balance.Equal(decimal.RequireFromString("20.00")), "got %s", balance.Balance)
}

func TestCreditBalanceMissingRow(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)

	credited, err := repo.CreditBalance(context.Background(), uuid.New(), decimal.RequireFromString("10.00"))
	require.NoError(t, err)
	assert.False(t, credited)
}

func TestMarkOrderPaidOutOnce(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	order := newOrder(t, db, uuid.New(), "100.00", enums.OrderStatusCompleted, enums.PaymentStatusPaid)

	payout := decimal.RequireFromString("15.00")
	now := time.Now().UTC()

	flipped, err := repo.MarkOrderPaidOut(ctx, order.ID, payout, now)
	require.NoError(t, err)
	assert.True(t, flipped)

	flipped, err = repo.MarkOrderPaidOut(ctx, order.ID, payout, now)
	require.NoError(t, err)
	assert.False(t, flipped, "second flip must lose the paid_out guard")

	reloaded, err := repo.FindOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.PaidOut)
	require.NotNil(t, reloaded.PayoutAmount)
	assert.True(t, reloaded.PayoutAmount.Equal(payout))
}

func TestMarkOrderPaidGuard(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	order := newOrder(t, db, uuid.New(), "30.00", enums.OrderStatusPending, enums.PaymentStatusPending)

	paid, err := repo.MarkOrderPaid(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, paid)

	paid, err = repo.MarkOrderPaid(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, paid, "already paid order must not transition again")

	reloaded, err := repo.FindOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusProcessing, reloaded.Status)
	assert.Equal(t, enums.PaymentStatusPaid, reloaded.PaymentStatus)
}

func TestMarkOrderPaidIneligibleStatus(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	for _, status := range []enums.OrderStatus{
		enums.OrderStatusShipped,
		enums.OrderStatusCompleted,
		enums.OrderStatusCancelled,
	} {
		order := newOrder(t, db, uuid.New(), "30.00", status, enums.PaymentStatusPending)

		paid, err := repo.MarkOrderPaid(ctx, order.ID)
		require.NoError(t, err)
		assert.False(t, paid, "%s order must not be marked paid", status)

		reloaded, err := repo.FindOrder(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, status, reloaded.Status, "status must stay untouched")
		assert.Equal(t, enums.PaymentStatusPending, reloaded.PaymentStatus)
	}
}

func TestCancelOrderGuards(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	pending := newOrder(t, db, uuid.New(), "30.00", enums.OrderStatusPending, enums.PaymentStatusPending)
	cancelled, err := repo.CancelOrder(ctx, pending.ID, "customer request", now)
	require.NoError(t, err)
	assert.True(t, cancelled)

	cancelled, err = repo.CancelOrder(ctx, pending.ID, "again", now)
	require.NoError(t, err)
	assert.False(t, cancelled, "cancelled order must stay cancelled")

	completed := newOrder(t, db, uuid.New(), "30.00", enums.OrderStatusCompleted, enums.PaymentStatusPaid)
	cancelled, err = repo.CancelOrder(ctx, completed.ID, "too late", now)
	require.NoError(t, err)
	assert.False(t, cancelled, "completed order must not be cancellable")

	reloaded, err := repo.FindOrder(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, reloaded.Status)
	require.NotNil(t, reloaded.CancellationReason)
	assert.Equal(t, "customer request", *reloaded.CancellationReason)
}

func TestListTransactionsPagination(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	userID := uuid.New()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		txn := &models.WalletTransaction{
			ID:          uuid.New(),
			UserID:      userID,
			Type:        enums.TransactionTypeCommission,
			Amount:      decimal.RequireFromString("10.00"),
			Status:      enums.TransactionStatusCompleted,
			Description: "commission",
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.Create(txn).Error)
	}
	// Other users' rows stay invisible.
	other := &models.WalletTransaction{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		Type:        enums.TransactionTypeCommission,
		Amount:      decimal.RequireFromString("99.00"),
		Status:      enums.TransactionStatusCompleted,
		Description: "commission",
		CreatedAt:   base.Add(time.Hour),
	}
	require.NoError(t, db.Create(other).Error)

	page, next, err := repo.ListTransactions(ctx, userID, 2, nil)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.NotNil(t, next)
	assert.True(t, page[0].CreatedAt.After(page[1].CreatedAt), "newest first")

	rest, next, err := repo.ListTransactions(ctx, userID, 2, next)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Nil(t, next)
	assert.True(t, rest[0].CreatedAt.Equal(base))
}
