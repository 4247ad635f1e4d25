package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transfer represents a money movement between two accounts, identified by account number.
type Transfer struct {
	FromAccountNumber string
	ToAccountNumber   string
	Amount            decimal.Decimal
}

// Validate validates transfer request.
func (t *Transfer) Validate() error {
	if t.FromAccountNumber == t.ToAccountNumber {
		return ErrSameAccount
	}

	if t.Amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	return nil
}

// TransferResult is the outcome of a successful ledger transfer.
type TransferResult struct {
	FromAccountNumber string
	ToAccountNumber   string
	Amount            decimal.Decimal
	FromBalance       decimal.Decimal
	ToBalance         decimal.Decimal
	CompletedAt       time.Time
}
