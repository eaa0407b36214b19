package partners

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dvillareal/automarket-backend/pkg/db/models"
	"github.com/dvillareal/automarket-backend/pkg/enums"
)

// PartnerStats is the dashboard aggregate for a partner. Gross revenue is
// the sum of order totals regardless of payment status and is not net of
// commission; the dashboard reports volume, not earnings.
type PartnerStats struct {
	PartnerID      uuid.UUID                   `json:"partner_id"`
	OrdersByStatus map[enums.OrderStatus]int64 `json:"orders_by_status"`
	TotalOrders    int64                       `json:"total_orders"`
	GrossRevenue   decimal.Decimal             `json:"gross_revenue"`
	WalletBalance  decimal.Decimal             `json:"wallet_balance"`
}

// OrderPage wraps a page of orders and the next cursor.
type OrderPage struct {
	Orders []models.Order `json:"orders"`
	Cursor string         `json:"cursor,omitempty"`
}

// CreateProfileInput onboards a partner. When the commission rate is omitted
// the service falls back to the configured deployment-wide default; there is
// no hard-coded rate.
type CreateProfileInput struct {
	UserID         uuid.UUID       `json:"user_id" validate:"required"`
	StoreName      string          `json:"store_name" validate:"required"`
	ContactEmail   string          `json:"contact_email" validate:"required,email"`
	Phone          *string         `json:"phone"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
}
