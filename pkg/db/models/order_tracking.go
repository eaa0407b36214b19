package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dvillareal/automarket-backend/pkg/enums"
)

// OrderTracking is the single source of truth for a shipment's state.
// One row per order.
type OrderTracking struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID            `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	TrackingNumber    string               `gorm:"column:tracking_number;not null;uniqueIndex"`
	Carrier           string               `gorm:"column:carrier;not null"`
	ShippingMethod    string               `gorm:"column:shipping_method;not null"`
	Status            enums.TrackingStatus `gorm:"column:status;type:tracking_status;not null;default:'shipped'"`
	AdminID           uuid.UUID            `gorm:"column:admin_id;type:uuid;not null"`
	PartnerID         uuid.UUID            `gorm:"column:partner_id;type:uuid;not null;index"`
	EstimatedDelivery *time.Time           `gorm:"column:estimated_delivery"`
	ActualDelivery    *time.Time           `gorm:"column:actual_delivery"`
	Updates           []TrackingUpdate     `gorm:"foreignKey:TrackingID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
