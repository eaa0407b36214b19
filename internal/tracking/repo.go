package tracking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dvillareal/automarket-backend/pkg/db/models"
	"github.com/dvillareal/automarket-backend/pkg/enums"
)

// Repository persists shipment tracking records and their append-only
// history. Status moves go through the guarded conditional update so that
// concurrent writers cannot interleave transitions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)

	Create(ctx context.Context, tracking *models.OrderTracking) error
	FindByID(ctx context.Context, trackingID uuid.UUID) (*models.OrderTracking, error)
	FindByTrackingNumber(ctx context.Context, trackingNumber string) (*models.OrderTracking, error)
	FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.OrderTracking, error)

	// AdvanceStatus moves a shipment from exactly the given current status
	// to the next one, stamping actual_delivery when the move terminates.
	AdvanceStatus(ctx context.Context, trackingID uuid.UUID, from, to enums.TrackingStatus, deliveredAt *time.Time) (bool, error)
	AppendUpdate(ctx context.Context, update *models.TrackingUpdate) error

	Delete(ctx context.Context, trackingID uuid.UUID) (bool, error)
	DeleteUpdates(ctx context.Context, trackingID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a tracking repository bound to the provided database.
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

func (r *repository) Create(ctx context.Context, tracking *models.OrderTracking) error {
	return r.db.WithContext(ctx).Create(tracking).Error
}

func (r *repository) FindByID(ctx context.Context, trackingID uuid.UUID) (*models.OrderTracking, error) {
	return r.findOne(ctx, "id = ?", trackingID)
}

func (r *repository) FindByTrackingNumber(ctx context.Context, trackingNumber string) (*models.OrderTracking, error) {
	return r.findOne(ctx, "tracking_number = ?", trackingNumber)
}

func (r *repository) FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.OrderTracking, error) {
	return r.findOne(ctx, "order_id = ?", orderID)
}

func (r *repository) findOne(ctx context.Context, query string, arg any) (*models.OrderTracking, error) {
	var tracking models.OrderTracking
	err := r.db.WithContext(ctx).
		Preload("Updates", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		First(&tracking, query, arg).Error
	if err != nil {
		return nil, err
	}
	return &tracking, nil
}

func (r *repository) AdvanceStatus(ctx context.Context, trackingID uuid.UUID, from, to enums.TrackingStatus, deliveredAt *time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE order_trackings
		SET status = ?,
			actual_delivery = COALESCE(?, actual_delivery),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`, to, deliveredAt, trackingID, from)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) AppendUpdate(ctx context.Context, update *models.TrackingUpdate) error {
	return r.db.WithContext(ctx).Create(update).Error
}

func (r *repository) Delete(ctx context.Context, trackingID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&models.OrderTracking{}, "id = ?", trackingID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) DeleteUpdates(ctx context.Context, trackingID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.TrackingUpdate{}, "tracking_id = ?", trackingID).Error
}
