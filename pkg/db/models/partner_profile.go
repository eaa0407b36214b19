package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PartnerProfile carries seller identity and commission configuration.
// CommissionRate is a fraction of the order total credited on payout and is
// always set explicitly at onboarding.
type PartnerProfile struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         uuid.UUID       `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	StoreName      string          `gorm:"column:store_name;not null"`
	ContactEmail   string          `gorm:"column:contact_email;not null"`
	Phone          *string         `gorm:"column:phone"`
	CommissionRate decimal.Decimal `gorm:"column:commission_rate;type:numeric(5,4);not null"`
	Active         bool            `gorm:"column:active;not null;default:true"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
