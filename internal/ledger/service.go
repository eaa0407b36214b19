package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/dvillareal/automarket-backend/pkg/db"
	"github.com/dvillareal/automarket-backend/pkg/db/models"
	"github.com/dvillareal/automarket-backend/pkg/enums"
	pkgerrors "github.com/dvillareal/automarket-backend/pkg/errors"
	"github.com/dvillareal/automarket-backend/pkg/metrics"
	"github.com/dvillareal/automarket-backend/pkg/outbox"
	"github.com/dvillareal/automarket-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service applies the monetary effects of order events to partner wallets.
// Every balance mutation pairs exactly one WalletTransaction insert with one
// WalletBalance update inside a single database transaction.
type Service interface {
	ProcessPayout(ctx context.Context, orderID, actorID uuid.UUID) (decimal.Decimal, error)
	ChargeWallet(ctx context.Context, orderID, partnerID, actorID uuid.UUID) error
	Refund(ctx context.Context, orderID, partnerID uuid.UUID, reason string, actorID uuid.UUID) error
	Balance(ctx context.Context, userID uuid.UUID) (*models.WalletBalance, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, params pagination.Params) (*TransactionPage, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	metrics *metrics.LedgerMetrics
}

// TransactionPage wraps a page of wallet transactions and the next cursor.
type TransactionPage struct {
	Items  []models.WalletTransaction `json:"items"`
	Cursor string                     `json:"cursor"`
}

// PayoutCompletedEvent is emitted when commission lands in a partner wallet.
type PayoutCompletedEvent struct {
	OrderID   uuid.UUID       `json:"order_id"`
	PartnerID uuid.UUID       `json:"partner_id"`
	Earnings  decimal.Decimal `json:"earnings"`
}

// OrderPaidEvent is emitted when an order is paid from a wallet balance.
type OrderPaidEvent struct {
	OrderID   uuid.UUID       `json:"order_id"`
	PartnerID uuid.UUID       `json:"partner_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// OrderCancelledEvent is emitted when an order is cancelled, refunded or not.
type OrderCancelledEvent struct {
	OrderID   uuid.UUID       `json:"order_id"`
	PartnerID uuid.UUID       `json:"partner_id"`
	Reason    string          `json:"reason"`
	Refunded  bool            `json:"refunded"`
	Amount    decimal.Decimal `json:"amount"`
}

// NewService wires a ledger service with the required dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, ledgerMetrics *metrics.LedgerMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		outbox:  outboxSvc,
		metrics: ledgerMetrics,
	}, nil
}

func (s *service) ProcessPayout(ctx context.Context, orderID, actorID uuid.UUID) (decimal.Decimal, error) {
	if orderID == uuid.Nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if actorID == uuid.Nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}

	var earnings decimal.Decimal
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrder(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.PartnerID == nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not assigned to a partner")
		}
		if order.Status != enums.OrderStatusCompleted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not eligible for payout").
				WithDetails(map[string]any{"status": order.Status})
		}
		if order.PaidOut {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already paid out")
		}

		profile, err := repo.FindPartnerProfile(ctx, *order.PartnerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "partner has no commission profile")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load partner profile")
		}

		earnings = order.TotalAmount.Mul(profile.CommissionRate).Round(2)
		now := time.Now().UTC()

		// The paid_out guard is the double-payout protection: a concurrent
		// call loses the conditional update and aborts here.
		flipped, err := repo.MarkOrderPaidOut(ctx, order.ID, earnings, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid out")
		}
		if !flipped {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already paid out")
		}

		txn := &models.WalletTransaction{
			ID:          uuid.New(),
			UserID:      *order.PartnerID,
			OrderID:     &order.ID,
			Type:        enums.TransactionTypeCommission,
			Amount:      earnings,
			Status:      enums.TransactionStatusCompleted,
			Description: fmt.Sprintf("Commission for order %s", order.OrderNumber),
		}
		if err := repo.CreateTransaction(ctx, txn); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record commission transaction")
		}

		if err := s.credit(ctx, repo, *order.PartnerID, earnings); err != nil {
			return err
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventPayoutCompleted,
			AggregateType: enums.AggregateWallet,
			AggregateID:   *order.PartnerID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: actorID},
			Data: PayoutCompletedEvent{
				OrderID:   order.ID,
				PartnerID: *order.PartnerID,
				Earnings:  earnings,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		s.metrics.ObserveOperation(metrics.LedgerOpPayout, false)
		return decimal.Zero, err
	}
	s.metrics.ObserveOperation(metrics.LedgerOpPayout, true)
	return earnings, nil
}

// chargeable rejects orders whose lifecycle no longer admits a wallet
// charge. Only pending and processing orders with an outstanding payment
// qualify; cancelled, shipped and completed orders stay untouched even
// when their payment_status was never flipped.
func chargeable(order *models.Order) error {
	if order.PaymentStatus == enums.PaymentStatusPaid {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order already paid")
	}
	switch order.Status {
	case enums.OrderStatusPending, enums.OrderStatusProcessing:
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not payable").
		WithDetails(map[string]any{"status": order.Status})
}

func (s *service) ChargeWallet(ctx context.Context, orderID, partnerID, actorID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if partnerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "partner id required")
	}
	if actorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}

	// Check the order before touching the wallet so a bogus or ineligible
	// charge does not materialize a balance row as a side effect.
	precheck, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if err := chargeable(precheck); err != nil {
		return err
	}

	// Materialize the zero balance outside the transaction so it survives
	// an insufficient-funds abort.
	if err := s.repo.EnsureBalance(ctx, partnerID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure wallet balance")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrder(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if err := chargeable(order); err != nil {
			return err
		}

		debited, err := repo.DebitBalanceIfSufficient(ctx, partnerID, order.TotalAmount)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit wallet")
		}
		if !debited {
			balance, err := repo.FindBalance(ctx, partnerID)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet balance")
			}
			current := decimal.Zero
			if balance != nil {
				current = balance.Balance
			}
			needed := order.TotalAmount.Sub(current)
			return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "wallet balance does not cover order total").
				WithDetails(map[string]any{
					"needed":  needed.String(),
					"balance": current.String(),
					"total":   order.TotalAmount.String(),
				})
		}

		paid, err := repo.MarkOrderPaid(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
		}
		if !paid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already paid")
		}

		txn := &models.WalletTransaction{
			ID:          uuid.New(),
			UserID:      partnerID,
			OrderID:     &order.ID,
			Type:        enums.TransactionTypeOrderPayment,
			Amount:      order.TotalAmount.Neg(),
			Status:      enums.TransactionStatusCompleted,
			Description: fmt.Sprintf("Payment for order %s", order.OrderNumber),
		}
		if err := repo.CreateTransaction(ctx, txn); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment transaction")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: actorID},
			Data: OrderPaidEvent{
				OrderID:   order.ID,
				PartnerID: partnerID,
				Amount:    order.TotalAmount,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	s.metrics.ObserveOperation(metrics.LedgerOpCharge, err == nil)
	return err
}

func (s *service) Refund(ctx context.Context, orderID, partnerID uuid.UUID, reason string, actorID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if partnerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "partner id required")
	}
	if reason == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "cancellation reason required")
	}
	if actorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrder(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status == enums.OrderStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already cancelled")
		}
		if order.Status == enums.OrderStatusCompleted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "completed orders cannot be cancelled")
		}

		now := time.Now().UTC()
		cancelled, err := repo.CancelOrder(ctx, order.ID, reason, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if !cancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is no longer cancellable")
		}

		refunded := false
		if order.PaymentStatus == enums.PaymentStatusPaid {
			txn := &models.WalletTransaction{
				ID:          uuid.New(),
				UserID:      partnerID,
				OrderID:     &order.ID,
				Type:        enums.TransactionTypeOrderRefund,
				Amount:      order.TotalAmount,
				Status:      enums.TransactionStatusCompleted,
				Description: fmt.Sprintf("Refund for order %s: %s", order.OrderNumber, reason),
			}
			if err := repo.CreateTransaction(ctx, txn); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record refund transaction")
			}
			if err := s.credit(ctx, repo, partnerID, order.TotalAmount); err != nil {
				return err
			}
			refunded = true
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: actorID},
			Data: OrderCancelledEvent{
				OrderID:   order.ID,
				PartnerID: partnerID,
				Reason:    reason,
				Refunded:  refunded,
				Amount:    order.TotalAmount,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	s.metrics.ObserveOperation(metrics.LedgerOpRefund, err == nil)
	return err
}

func (s *service) Balance(ctx context.Context, userID uuid.UUID) (*models.WalletBalance, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	balance, err := s.repo.FindBalance(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := s.repo.EnsureBalance(ctx, userID); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "materialize wallet balance")
			}
			balance, err = s.repo.FindBalance(ctx, userID)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet balance")
			}
			return balance, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet balance")
	}
	return balance, nil
}

func (s *service) ListTransactions(ctx context.Context, userID uuid.UUID, params pagination.Params) (*TransactionPage, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	var cursor *pagination.Cursor
	if params.Cursor != "" {
		parsed, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		cursor = parsed
	}

	items, next, err := s.repo.ListTransactions(ctx, userID, params.Limit, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wallet transactions")
	}

	page := &TransactionPage{Items: items}
	if next != nil {
		page.Cursor = pagination.EncodeCursor(*next)
	}
	return page, nil
}

// credit adds to a wallet, creating the row when the first credit races the
// lazy materialization.
func (s *service) credit(ctx context.Context, repo Repository, userID uuid.UUID, amount decimal.Decimal) error {
	credited, err := repo.CreditBalance(ctx, userID, amount)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit wallet")
	}
	if credited {
		return nil
	}
	if err := repo.EnsureBalance(ctx, userID); err != nil && !dbpkg.IsUniqueViolation(err, "") {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create wallet balance")
	}
	credited, err = repo.CreditBalance(ctx, userID, amount)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit wallet")
	}
	if !credited {
		return pkgerrors.New(pkgerrors.CodeDependency, "wallet balance row unavailable")
	}
	return nil
}
