package orders

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dvillareal/automarket-backend/pkg/enums"
)

// CreateOrderItemInput is a single product line on a new order.
type CreateOrderItemInput struct {
	ProductID *uuid.UUID      `json:"product_id"`
	Name      string          `json:"name" validate:"required"`
	SKU       *string         `json:"sku"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"required"`
	Qty       int             `json:"qty" validate:"required,gt=0"`
}

// CreateOrderInput carries everything needed to open an order in pending
// state. The total is derived from the items, never trusted from the caller.
type CreateOrderInput struct {
	CustomerID uuid.UUID              `json:"customer_id" validate:"required"`
	PartnerID  *uuid.UUID             `json:"partner_id"`
	Currency   enums.Currency         `json:"currency"`
	Items      []CreateOrderItemInput `json:"items" validate:"required,min=1,dive"`
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
