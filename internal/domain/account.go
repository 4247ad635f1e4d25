package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account represents a bank account held in the ledger.
type Account struct {
	ID              string
	AccountNumber   string
	RoutingCode     string
	HolderName      string
	Email           string
	Phone           string
	Balance         decimal.Decimal
	SignatureHandle string
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ValidateDebit checks if account can be debited by amount.
func (a *Account) ValidateDebit(amount decimal.Decimal) error {
	if a.Balance.LessThan(amount) {
		return ErrInsufficientFunds
	}
	return nil
}

// ApplyDebit returns new balance after debit.
func (a *Account) ApplyDebit(amount decimal.Decimal) decimal.Decimal {
	return a.Balance.Sub(amount)
}

// ApplyCredit returns new balance after credit.
func (a *Account) ApplyCredit(amount decimal.Decimal) decimal.Decimal {
	return a.Balance.Add(amount)
}
