package tracking

import (
	"time"

	"github.com/google/uuid"

	"github.com/dvillareal/automarket-backend/pkg/enums"
)

// CreateTrackingInput carries everything needed to open a shipment record
// for an order. The initial status is always shipped.
type CreateTrackingInput struct {
	OrderID           uuid.UUID  `json:"order_id" validate:"required"`
	TrackingNumber    string     `json:"tracking_number" validate:"required"`
	Carrier           string     `json:"carrier" validate:"required"`
	ShippingMethod    string     `json:"shipping_method" validate:"required"`
	EstimatedDelivery *time.Time `json:"estimated_delivery"`
	PartnerID         uuid.UUID  `json:"partner_id" validate:"required"`
	AdminID           uuid.UUID  `json:"-"`
}

// UpdateStatusInput advances a shipment along its forward-only status path.
type UpdateStatusInput struct {
	Status      enums.TrackingStatus `json:"status" validate:"required"`
	Location    *string              `json:"location"`
	Description *string              `json:"description"`
	AdminID     uuid.UUID            `json:"-"`
}

// StatusChangedEvent is emitted whenever a shipment's status moves,
// including the initial shipped state at creation.
type StatusChangedEvent struct {
	TrackingID     uuid.UUID            `json:"tracking_id"`
	OrderID        uuid.UUID            `json:"order_id"`
	PartnerID      uuid.UUID            `json:"partner_id"`
	TrackingNumber string               `json:"tracking_number"`
	Status         enums.TrackingStatus `json:"status"`
	Delivered      bool                 `json:"delivered"`
}
