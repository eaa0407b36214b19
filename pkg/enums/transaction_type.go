package enums

import "fmt"

// TransactionType maps to the wallet_transaction_type enum in Postgres.
type TransactionType string

const (
	TransactionTypeCommission   TransactionType = "commission"
	TransactionTypeOrderPayment TransactionType = "order_payment"
	TransactionTypeOrderRefund  TransactionType = "order_refund"
	TransactionTypeWithdrawal   TransactionType = "withdrawal"
)

var validTransactionTypes = []TransactionType{
	TransactionTypeCommission,
	TransactionTypeOrderPayment,
	TransactionTypeOrderRefund,
	TransactionTypeWithdrawal,
}

// IsValid reports whether the value matches the canonical transaction type enum.
func (t TransactionType) IsValid() bool {
	for _, candidate := range validTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTransactionType converts raw input into TransactionType.
func ParseTransactionType(value string) (TransactionType, error) {
	for _, candidate := range validTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction type %q", value)
}
