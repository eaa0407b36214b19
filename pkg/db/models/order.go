package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dvillareal/automarket-backend/pkg/enums"
)

// Order represents a marketplace purchase owned by a partner (seller).
// Orders are never physically deleted; cancellation is a status.
type Order struct {
	ID                 uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber        string              `gorm:"column:order_number;not null;uniqueIndex"`
	PartnerID          *uuid.UUID          `gorm:"column:partner_id;type:uuid;index"`
	CustomerID         uuid.UUID           `gorm:"column:customer_id;type:uuid;not null;index"`
	Currency           enums.Currency      `gorm:"column:currency;type:text;not null;default:'USD'"`
	TotalAmount        decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Status             enums.OrderStatus   `gorm:"column:status;type:order_status;not null;default:'pending'"`
	PaymentStatus      enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null;default:'pending'"`
	PaidOut            bool                `gorm:"column:paid_out;not null;default:false"`
	PayoutAmount       *decimal.Decimal    `gorm:"column:payout_amount;type:numeric(12,2)"`
	PayoutDate         *time.Time          `gorm:"column:payout_date"`
	CancellationReason *string             `gorm:"column:cancellation_reason"`
	CancelledAt        *time.Time          `gorm:"column:cancelled_at"`
	CompletedAt        *time.Time          `gorm:"column:completed_at"`
	Items              []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
