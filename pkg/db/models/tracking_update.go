package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dvillareal/automarket-backend/pkg/enums"
)

// TrackingUpdate is an append-only history entry for a shipment. Rows are
// never mutated or deleted while the parent tracking record exists.
type TrackingUpdate struct {
	ID          uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TrackingID  uuid.UUID            `gorm:"column:tracking_id;type:uuid;not null;index"`
	Status      enums.TrackingStatus `gorm:"column:status;type:tracking_status;not null"`
	Location    *string              `gorm:"column:location"`
	Description *string              `gorm:"column:description"`
	UpdatedBy   uuid.UUID            `gorm:"column:updated_by;type:uuid;not null"`
	CreatedAt   time.Time            `gorm:"column:created_at;autoCreateTime"`
}
