package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dvillareal/automarket-backend/pkg/db/models"
	"github.com/dvillareal/automarket-backend/pkg/enums"
	"github.com/dvillareal/automarket-backend/pkg/pagination"
)

// Repository manages persistence for wallet balances, wallet transactions
// and the order flags the ledger owns.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindPartnerProfile(ctx context.Context, userID uuid.UUID) (*models.PartnerProfile, error)
	FindBalance(ctx context.Context, userID uuid.UUID) (*models.WalletBalance, error)

	// EnsureBalance materializes a zero balance row when none exists.
	EnsureBalance(ctx context.Context, userID uuid.UUID) error
	CreditBalance(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (bool, error)
	// DebitBalanceIfSufficient decrements the balance only when it covers the
	// amount, reporting whether a row was updated.
	DebitBalanceIfSufficient(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (bool, error)

	// MarkOrderPaidOut flips paid_out exactly once; the guard is the
	// double-payout protection.
	MarkOrderPaidOut(ctx context.Context, orderID uuid.UUID, payout decimal.Decimal, at time.Time) (bool, error)
	MarkOrderPaid(ctx context.Context, orderID uuid.UUID) (bool, error)
	CancelOrder(ctx context.Context, orderID uuid.UUID, reason string, at time.Time) (bool, error)

	CreateTransaction(ctx context.Context, txn *models.WalletTransaction) error
	ListTransactions(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.WalletTransaction, *pagination.Cursor, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindPartnerProfile(ctx context.Context, userID uuid.UUID) (*models.PartnerProfile, error) {
	var profile models.PartnerProfile
	if err := r.db.WithContext(ctx).First(&profile, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *repository) FindBalance(ctx context.Context, userID uuid.UUID) (*models.WalletBalance, error) {
	var balance models.WalletBalance
	if err := r.db.WithContext(ctx).First(&balance, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &balance, nil
}

func (r *repository) EnsureBalance(ctx context.Context, userID uuid.UUID) error {
	row := models.WalletBalance{
		ID:       uuid.New(),
		UserID:   userID,
		Balance:  decimal.Zero,
		Currency: enums.CurrencyUSD,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&row).Error
}

func (r *repository) CreditBalance(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE wallet_balances
		SET balance = balance + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ?
	`, amount, userID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) DebitBalanceIfSufficient(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE wallet_balances
		SET balance = balance - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND balance >= ?
	`, amount, userID, amount)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) MarkOrderPaidOut(ctx context.Context, orderID uuid.UUID, payout decimal.Decimal, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE orders
		SET paid_out = TRUE,
			payout_amount = ?,
			payout_date = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND paid_out = FALSE
	`, payout, at, orderID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) MarkOrderPaid(ctx context.Context, orderID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE orders
		SET status = ?,
			payment_status = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND payment_status = ? AND status IN (?, ?)
	`, enums.OrderStatusProcessing, enums.PaymentStatusPaid, orderID, enums.PaymentStatusPending,
		enums.OrderStatusPending, enums.OrderStatusProcessing)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) CancelOrder(ctx context.Context, orderID uuid.UUID, reason string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE orders
		SET status = ?,
			cancellation_reason = ?,
			cancelled_at = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status NOT IN (?, ?)
	`, enums.OrderStatusCancelled, reason, at, orderID,
		enums.OrderStatusCancelled, enums.OrderStatusCompleted)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) CreateTransaction(ctx context.Context, txn *models.WalletTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) ListTransactions(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.WalletTransaction, *pagination.Cursor, error) {
	buffered := pagination.LimitWithBuffer(limit)
	normalized := pagination.NormalizeLimit(limit)

	query := r.db.WithContext(ctx).
		Model(&models.WalletTransaction{}).
		Where("user_id = ?", userID)
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var transactions []models.WalletTransaction
	if err := query.Order("created_at DESC, id DESC").Limit(buffered).Find(&transactions).Error; err != nil {
		return nil, nil, err
	}

	if len(transactions) > normalized {
		transactions = transactions[:normalized]
		last := transactions[normalized-1]
		return transactions, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return transactions, nil, nil
}
