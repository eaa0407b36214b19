package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dvillareal/automarket-backend/pkg/db/models"
	pkgerrors "github.com/dvillareal/automarket-backend/pkg/errors"
	"github.com/dvillareal/automarket-backend/pkg/pagination"
)

type fakeNotificationsRepo struct {
	listFn        func(ctx context.Context, params listNotificationsParams) ([]models.Notification, *pagination.Cursor, error)
	markReadFn    func(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error)
	markAllReadFn func(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error)
}

func (f *fakeNotificationsRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeNotificationsRepo) Create(ctx context.Context, notification *models.Notification) error {
	return nil
}

func (f *fakeNotificationsRepo) List(ctx context.Context, params listNotificationsParams) ([]models.Notification, *pagination.Cursor, error) {
	if f.listFn != nil {
		return f.listFn(ctx, params)
	}
	return nil, nil, nil
}

func (f *fakeNotificationsRepo) MarkRead(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error) {
	if f.markReadFn != nil {
		return f.markReadFn(ctx, userID, notificationID, now)
	}
	return notificationMarkResult{}, nil
}

func (f *fakeNotificationsRepo) MarkAllRead(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	if f.markAllReadFn != nil {
		return f.markAllReadFn(ctx, userID, now)
	}
	return 0, nil
}

func (f *fakeNotificationsRepo) DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	return 0, nil
}

func TestListRequiresUser(t *testing.T) {
	svc, err := NewService(&fakeNotificationsRepo{})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	_, err = svc.List(context.Background(), ListParams{})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestListEncodesCursor(t *testing.T) {
	userID := uuid.New()
	next := &pagination.Cursor{CreatedAt: time.Now().UTC(), ID: uuid.New()}
	repo := &fakeNotificationsRepo{
		listFn: func(ctx context.Context, params listNotificationsParams) ([]models.Notification, *pagination.Cursor, error) {
			if params.UserID != userID {
				t.Fatalf("user scope not applied, got %s", params.UserID)
			}
			return []models.Notification{{ID: uuid.New(), UserID: userID}}, next, nil
		},
	}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	result, err := svc.List(context.Background(), ListParams{UserID: userID, Limit: 1})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected one item, got %d", len(result.Items))
	}
	if result.Cursor == "" {
		t.Fatal("expected encoded cursor")
	}
	parsed, err := pagination.ParseCursor(result.Cursor)
	if err != nil {
		t.Fatalf("cursor should round-trip: %v", err)
	}
	if parsed.ID != next.ID {
		t.Fatalf("cursor id mismatch: %s", parsed.ID)
	}
}

func TestMarkReadNotFound(t *testing.T) {
	repo := &fakeNotificationsRepo{
		markReadFn: func(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error) {
			return notificationMarkResult{Found: false}, nil
		},
	}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	err = svc.MarkRead(context.Background(), uuid.New(), uuid.New())
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestMarkReadAlreadyReadIsIdempotent(t *testing.T) {
	repo := &fakeNotificationsRepo{
		markReadFn: func(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error) {
			return notificationMarkResult{Found: true, Updated: false}, nil
		},
	}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	if err := svc.MarkRead(context.Background(), uuid.New(), uuid.New()); err != nil {
		t.Fatalf("marking an already-read notification must succeed, got %v", err)
	}
}

func TestMarkAllRead(t *testing.T) {
	repo := &fakeNotificationsRepo{
		markAllReadFn: func(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
			return 3, nil
		},
	}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	count, err := svc.MarkAllRead(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("MarkAllRead error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 updates, got %d", count)
	}
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
