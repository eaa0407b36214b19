package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dvillareal/automarket-backend/pkg/enums"
)

// WalletTransaction records an immutable balance-affecting event. Positive
// amounts credit the wallet, negative amounts debit it. Once completed the
// row never changes.
type WalletTransaction struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID               `gorm:"column:user_id;type:uuid;not null;index"`
	OrderID     *uuid.UUID              `gorm:"column:order_id;type:uuid;index"`
	Type        enums.TransactionType   `gorm:"column:type;type:wallet_transaction_type;not null"`
	Amount      decimal.Decimal         `gorm:"column:amount;type:numeric(12,2);not null"`
	Status      enums.TransactionStatus `gorm:"column:status;type:wallet_transaction_status;not null;default:'pending'"`
	Description string                  `gorm:"column:description;not null"`
	Metadata    json.RawMessage         `gorm:"column:metadata;type:jsonb"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime"`
}
