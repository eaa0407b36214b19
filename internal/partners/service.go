package partners

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dvillareal/automarket-backend/internal/ledger"
	dbpkg "github.com/dvillareal/automarket-backend/pkg/db"
	"github.com/dvillareal/automarket-backend/pkg/db/models"
	"github.com/dvillareal/automarket-backend/pkg/enums"
	pkgerrors "github.com/dvillareal/automarket-backend/pkg/errors"
	"github.com/dvillareal/automarket-backend/pkg/logger"
	"github.com/dvillareal/automarket-backend/pkg/pagination"
)

// Service aggregates the read-only partner views and handles profile
// onboarding. Stats reads degrade to zero values when storage misbehaves
// because they back a dashboard, not a ledger decision.
type Service interface {
	Stats(ctx context.Context, partnerID uuid.UUID) (*PartnerStats, error)
	Orders(ctx context.Context, partnerID uuid.UUID, params pagination.Params) (*OrderPage, error)
	Order(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	CustomerHistory(ctx context.Context, customerID, partnerID uuid.UUID) ([]models.Order, error)

	CreateProfile(ctx context.Context, input CreateProfileInput) (*models.PartnerProfile, error)
	Profile(ctx context.Context, userID uuid.UUID) (*models.PartnerProfile, error)
}

type service struct {
	repo        Repository
	ledger      ledger.Service
	defaultRate decimal.Decimal
	log         *logger.Logger
}

// NewService wires the partner query facade. defaultRate is the commission
// applied when onboarding omits an explicit rate; deployments configure it,
// there is no hard-coded fallback.
func NewService(repo Repository, ledgerSvc ledger.Service, defaultRate decimal.Decimal, log *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("partners repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if !defaultRate.IsPositive() || defaultRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("default commission rate must be a fraction between 0 and 1")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, ledger: ledgerSvc, defaultRate: defaultRate, log: log}, nil
}

func (s *service) Stats(ctx context.Context, partnerID uuid.UUID) (*PartnerStats, error) {
	if partnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "partner id required")
	}
	ctx = s.log.WithPartnerID(ctx, partnerID.String())

	stats := &PartnerStats{
		PartnerID:      partnerID,
		OrdersByStatus: map[enums.OrderStatus]int64{},
	}

	counts, err := s.repo.CountOrdersByStatus(ctx, partnerID)
	if err != nil {
		s.log.Error(ctx, "partner stats: count orders failed, serving zeros", err)
		counts = nil
	}
	if counts != nil {
		stats.OrdersByStatus = counts
	}
	for _, count := range counts {
		stats.TotalOrders += count
	}

	revenue, err := s.repo.SumOrderTotals(ctx, partnerID)
	if err != nil {
		s.log.Error(ctx, "partner stats: revenue aggregation failed, serving zero", err)
		revenue = decimal.Zero
	}
	stats.GrossRevenue = revenue

	balance, err := s.ledger.Balance(ctx, partnerID)
	if err != nil {
		s.log.Error(ctx, "partner stats: wallet balance read failed, serving zero", err)
		stats.WalletBalance = decimal.Zero
	} else {
		stats.WalletBalance = balance.Balance
	}
	return stats, nil
}

func (s *service) Orders(ctx context.Context, partnerID uuid.UUID, params pagination.Params) (*OrderPage, error) {
	if partnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "partner id required")
	}
	var cursor *pagination.Cursor
	if params.Cursor != "" {
		parsed, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		cursor = parsed
	}

	orders, next, err := s.repo.ListOrders(ctx, partnerID, params.Limit, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list partner orders")
	}

	page := &OrderPage{Orders: orders}
	if next != nil {
		page.Cursor = pagination.EncodeCursor(*next)
	}
	return page, nil
}

func (s *service) Order(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) CustomerHistory(ctx context.Context, customerID, partnerID uuid.UUID) ([]models.Order, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if partnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "partner id required")
	}
	orders, err := s.repo.ListCustomerOrders(ctx, customerID, partnerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list customer orders")
	}
	return orders, nil
}

func (s *service) CreateProfile(ctx context.Context, input CreateProfileInput) (*models.PartnerProfile, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.StoreName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store name required")
	}
	if input.ContactEmail == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contact email required")
	}
	rate := input.CommissionRate
	if rate.IsZero() {
		rate = s.defaultRate
	}
	if !rate.IsPositive() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "commission rate must be a fraction between 0 and 1").
			WithDetails(map[string]any{"commission_rate": rate})
	}

	profile := &models.PartnerProfile{
		ID:             uuid.New(),
		UserID:         input.UserID,
		StoreName:      input.StoreName,
		ContactEmail:   input.ContactEmail,
		Phone:          input.Phone,
		CommissionRate: rate,
		Active:         true,
	}
	if err := s.repo.CreateProfile(ctx, profile); err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "partner profile already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create partner profile")
	}
	return profile, nil
}

func (s *service) Profile(ctx context.Context, userID uuid.UUID) (*models.PartnerProfile, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	profile, err := s.repo.FindProfileByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "partner profile not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load partner profile")
	}
	return profile, nil
}
