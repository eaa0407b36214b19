package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dvillareal/automarket-backend/pkg/enums"
)

// OrderPaidEvent is emitted when an order is paid from a wallet balance.
type OrderPaidEvent struct {
	OrderID   uuid.UUID       `json:"order_id"`
	PartnerID uuid.UUID       `json:"partner_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// OrderShippedEvent is emitted when an order transitions to shipped.
type OrderShippedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
}

// OrderCompletedEvent is emitted when an order reaches its terminal
// completed state and becomes payout-eligible.
type OrderCompletedEvent struct {
	OrderID     uuid.UUID  `json:"order_id"`
	OrderNumber string     `json:"order_number"`
	PartnerID   *uuid.UUID `json:"partner_id,omitempty"`
}

// OrderCancelledEvent is emitted when an order is cancelled, refunded or not.
type OrderCancelledEvent struct {
	OrderID   uuid.UUID       `json:"order_id"`
	PartnerID uuid.UUID       `json:"partner_id"`
	Reason    string          `json:"reason"`
	Refunded  bool            `json:"refunded"`
	Amount    decimal.Decimal `json:"amount"`
}

// PayoutCompletedEvent is emitted after a partner payout credits the wallet.
type PayoutCompletedEvent struct {
	OrderID   uuid.UUID       `json:"order_id"`
	PartnerID uuid.UUID       `json:"partner_id"`
	Earnings  decimal.Decimal `json:"earnings"`
}

// TrackingStatusChangedEvent is emitted on every shipment status change.
type TrackingStatusChangedEvent struct {
	TrackingID     uuid.UUID            `json:"tracking_id"`
	OrderID        uuid.UUID            `json:"order_id"`
	PartnerID      uuid.UUID            `json:"partner_id"`
	TrackingNumber string               `json:"tracking_number"`
	Status         enums.TrackingStatus `json:"status"`
	Delivered      bool                 `json:"delivered"`
}
