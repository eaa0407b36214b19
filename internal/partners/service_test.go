package partners

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dvillareal/automarket-backend/internal/ledger"
	"github.com/dvillareal/automarket-backend/pkg/db/models"
	"github.com/dvillareal/automarket-backend/pkg/enums"
	pkgerrors "github.com/dvillareal/automarket-backend/pkg/errors"
	"github.com/dvillareal/automarket-backend/pkg/logger"
	"github.com/dvillareal/automarket-backend/pkg/pagination"
)

type fakePartnerRepo struct {
	countFn         func(ctx context.Context, partnerID uuid.UUID) (map[enums.OrderStatus]int64, error)
	sumFn           func(ctx context.Context, partnerID uuid.UUID) (decimal.Decimal, error)
	listOrdersFn    func(ctx context.Context, partnerID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Order, *pagination.Cursor, error)
	findOrderFn     func(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	createProfileFn func(ctx context.Context, profile *models.PartnerProfile) error
	createdProfiles []*models.PartnerProfile
}

func (f *fakePartnerRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakePartnerRepo) CountOrdersByStatus(ctx context.Context, partnerID uuid.UUID) (map[enums.OrderStatus]int64, error) {
	if f.countFn != nil {
		return f.countFn(ctx, partnerID)
	}
	return nil, nil
}

func (f *fakePartnerRepo) SumOrderTotals(ctx context.Context, partnerID uuid.UUID) (decimal.Decimal, error) {
	if f.sumFn != nil {
		return f.sumFn(ctx, partnerID)
	}
	return decimal.Zero, nil
}

func (f *fakePartnerRepo) ListOrders(ctx context.Context, partnerID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Order, *pagination.Cursor, error) {
	if f.listOrdersFn != nil {
		return f.listOrdersFn(ctx, partnerID, limit, cursor)
	}
	return nil, nil, nil
}

func (f *fakePartnerRepo) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if f.findOrderFn != nil {
		return f.findOrderFn(ctx, orderID)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePartnerRepo) ListCustomerOrders(ctx context.Context, customerID, partnerID uuid.UUID) ([]models.Order, error) {
	return nil, nil
}

func (f *fakePartnerRepo) CreateProfile(ctx context.Context, profile *models.PartnerProfile) error {
	f.createdProfiles = append(f.createdProfiles, profile)
	if f.createProfileFn != nil {
		return f.createProfileFn(ctx, profile)
	}
	return nil
}

func (f *fakePartnerRepo) FindProfileByUser(ctx context.Context, userID uuid.UUID) (*models.PartnerProfile, error) {
	return nil, gorm.ErrRecordNotFound
}

type fakeBalanceLedger struct {
	balance    decimal.Decimal
	balanceErr error
}

func (f *fakeBalanceLedger) ProcessPayout(ctx context.Context, orderID, actorID uuid.UUID) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (f *fakeBalanceLedger) ChargeWallet(ctx context.Context, orderID, partnerID, actorID uuid.UUID) error {
	return nil
}

func (f *fakeBalanceLedger) Refund(ctx context.Context, orderID, partnerID uuid.UUID, reason string, actorID uuid.UUID) error {
	return nil
}

func (f *fakeBalanceLedger) Balance(ctx context.Context, userID uuid.UUID) (*models.WalletBalance, error) {
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	return &models.WalletBalance{UserID: userID, Balance: f.balance}, nil
}

func (f *fakeBalanceLedger) ListTransactions(ctx context.Context, userID uuid.UUID, params pagination.Params) (*ledger.TransactionPage, error) {
	return nil, nil
}

func newTestService(t *testing.T, repo *fakePartnerRepo, wallet *fakeBalanceLedger) Service {
	t.Helper()
	log := logger.New(logger.Options{ServiceName: "partners-test", Output: io.Discard})
	svc, err := NewService(repo, wallet, decimal.RequireFromString("0.10"), log)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func TestStats(t *testing.T) {
	partnerID := uuid.New()
	repo := &fakePartnerRepo{
		countFn: func(ctx context.Context, id uuid.UUID) (map[enums.OrderStatus]int64, error) {
			return map[enums.OrderStatus]int64{
				enums.OrderStatusPending:   2,
				enums.OrderStatusCompleted: 5,
			}, nil
		},
		sumFn: func(ctx context.Context, id uuid.UUID) (decimal.Decimal, error) {
			return decimal.RequireFromString("1250.00"), nil
		},
	}
	wallet := &fakeBalanceLedger{balance: decimal.RequireFromString("187.50")}
	svc := newTestService(t, repo, wallet)

	stats, err := svc.Stats(context.Background(), partnerID)
	if err != nil {
		t.Fatalf("Stats error: %v", err)
	}
	if stats.TotalOrders != 7 {
		t.Fatalf("total orders mismatch: %d", stats.TotalOrders)
	}
	if stats.OrdersByStatus[enums.OrderStatusCompleted] != 5 {
		t.Fatalf("completed count mismatch: %d", stats.OrdersByStatus[enums.OrderStatusCompleted])
	}
	if !stats.GrossRevenue.Equal(decimal.RequireFromString("1250.00")) {
		t.Fatalf("revenue mismatch: %s", stats.GrossRevenue)
	}
	if !stats.WalletBalance.Equal(decimal.RequireFromString("187.50")) {
		t.Fatalf("balance mismatch: %s", stats.WalletBalance)
	}
}

func TestStats_DegradesOnStorageFailure(t *testing.T) {
	repo := &fakePartnerRepo{
		countFn: func(ctx context.Context, id uuid.UUID) (map[enums.OrderStatus]int64, error) {
			return nil, errors.New("connection reset")
		},
		sumFn: func(ctx context.Context, id uuid.UUID) (decimal.Decimal, error) {
			return decimal.Zero, errors.New("connection reset")
		},
	}
	wallet := &fakeBalanceLedger{balanceErr: errors.New("connection reset")}
	svc := newTestService(t, repo, wallet)

	stats, err := svc.Stats(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("stats must degrade, not fail: %v", err)
	}
	if stats.TotalOrders != 0 || !stats.GrossRevenue.IsZero() || !stats.WalletBalance.IsZero() {
		t.Fatalf("degraded stats must be zero-valued, got %+v", stats)
	}
	if stats.OrdersByStatus == nil {
		t.Fatal("degraded stats must keep an empty map, not nil")
	}
}

func TestOrders_InvalidCursor(t *testing.T) {
	svc := newTestService(t, &fakePartnerRepo{}, &fakeBalanceLedger{})

	_, err := svc.Orders(context.Background(), uuid.New(), pagination.Params{Cursor: "not-base64!"})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestOrder_NotFound(t *testing.T) {
	svc := newTestService(t, &fakePartnerRepo{}, &fakeBalanceLedger{})

	_, err := svc.Order(context.Background(), uuid.New())
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestCreateProfile(t *testing.T) {
	repo := &fakePartnerRepo{}
	svc := newTestService(t, repo, &fakeBalanceLedger{})

	profile, err := svc.CreateProfile(context.Background(), CreateProfileInput{
		UserID:         uuid.New(),
		StoreName:      "Midwest Auto Parts",
		ContactEmail:   "parts@example.com",
		CommissionRate: decimal.RequireFromString("0.12"),
	})
	if err != nil {
		t.Fatalf("CreateProfile error: %v", err)
	}
	if !profile.Active {
		t.Fatal("new profile must start active")
	}
	if len(repo.createdProfiles) != 1 {
		t.Fatalf("expected one persisted profile, got %d", len(repo.createdProfiles))
	}
}

func TestCreateProfile_CommissionRateBounds(t *testing.T) {
	svc := newTestService(t, &fakePartnerRepo{}, &fakeBalanceLedger{})

	for _, rate := range []string{"-0.05", "1", "1.5"} {
		input := CreateProfileInput{
			UserID:         uuid.New(),
			StoreName:      "Shop",
			ContactEmail:   "shop@example.com",
			CommissionRate: decimal.RequireFromString(rate),
		}
		_, err := svc.CreateProfile(context.Background(), input)
		assertCode(t, err, pkgerrors.CodeValidation)
	}
}

func TestCreateProfile_OmittedRateUsesConfiguredDefault(t *testing.T) {
	repo := &fakePartnerRepo{}
	svc := newTestService(t, repo, &fakeBalanceLedger{})

	profile, err := svc.CreateProfile(context.Background(), CreateProfileInput{
		UserID:       uuid.New(),
		StoreName:    "Shop",
		ContactEmail: "shop@example.com",
	})
	if err != nil {
		t.Fatalf("CreateProfile error: %v", err)
	}
	if !profile.CommissionRate.Equal(decimal.RequireFromString("0.10")) {
		t.Fatalf("expected configured default rate, got %s", profile.CommissionRate)
	}
}

func TestCreateProfile_Duplicate(t *testing.T) {
	repo := &fakePartnerRepo{
		createProfileFn: func(ctx context.Context, profile *models.PartnerProfile) error {
			return errors.New(`duplicate key value violates unique constraint "idx_partner_profiles_user_id"`)
		},
	}
	svc := newTestService(t, repo, &fakeBalanceLedger{})

	_, err := svc.CreateProfile(context.Background(), CreateProfileInput{
		UserID:         uuid.New(),
		StoreName:      "Shop",
		ContactEmail:   "shop@example.com",
		CommissionRate: decimal.RequireFromString("0.10"),
	})
	assertCode(t, err, pkgerrors.CodeConflict)
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error, got %v", err)
	}
	if typed.Code() != code {
		t.Fatalf("expected code %s, got %s (%v)", code, typed.Code(), err)
	}
}
