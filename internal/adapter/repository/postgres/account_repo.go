package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/iho/chequer/internal/domain"
	"github.com/iho/chequer/internal/infrastructure/postgres/generated"
	"github.com/iho/chequer/internal/usecase"
)

// AccountRepository implements usecase.AccountRepository.
type AccountRepository struct {
	queries *generated.Queries
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db generated.DBTX) *AccountRepository {
	return &AccountRepository{
		queries: generated.New(db),
	}
}

// Create creates a new account within a transaction.
func (r *AccountRepository) Create(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	queries := r.queries.WithTx(tx.(*Tx).PgxTx())

	_, err := queries.CreateAccount(ctx, generated.CreateAccountParams{
		ID:              account.ID,
		AccountNumber:   account.AccountNumber,
		RoutingCode:     account.RoutingCode,
		HolderName:      account.HolderName,
		Email:           account.Email,
		Phone:           account.Phone,
		Balance:         decimalToNumeric(account.Balance),
		SignatureHandle: account.SignatureHandle,
		Version:         account.Version,
		CreatedAt:       timeToPgTimestamptz(account.CreatedAt),
		UpdatedAt:       timeToPgTimestamptz(account.UpdatedAt),
	})
	if isUniqueViolation(err) {
		return domain.ErrAccountExists
	}

	return err
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	row, err := r.queries.GetAccountByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}

		return nil, err
	}

	return rowToAccount(row), nil
}

// GetByNumber retrieves an account by its account number.
func (r *AccountRepository) GetByNumber(ctx context.Context, number string) (*domain.Account, error) {
	row, err := r.queries.GetAccountByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}

		return nil, err
	}

	return rowToAccount(row), nil
}

// GetByNumbersForUpdate locks the accounts with the given numbers, in account
// number order, for the rest of the transaction.
func (r *AccountRepository) GetByNumbersForUpdate(ctx context.Context, tx usecase.Transaction, numbers []string) ([]*domain.Account, error) {
	queries := r.queries.WithTx(tx.(*Tx).PgxTx())

	rows, err := queries.GetAccountsByNumbersForUpdate(ctx, numbers)
	if err != nil {
		return nil, err
	}

	accounts := make([]*domain.Account, 0, len(rows))
	for _, row := range rows {
		accounts = append(accounts, rowToAccount(row))
	}

	return accounts, nil
}

// UpdateBalance updates the balance of an account.
func (r *AccountRepository) UpdateBalance(ctx context.Context, tx usecase.Transaction, id string, balance decimal.Decimal, updatedAt time.Time) error {
	queries := r.queries.WithTx(tx.(*Tx).PgxTx())

	return queries.UpdateAccountBalance(ctx, generated.UpdateAccountBalanceParams{
		ID:        id,
		Balance:   decimalToNumeric(balance),
		UpdatedAt: timeToPgTimestamptz(updatedAt),
	})
}

// List lists accounts with pagination.
func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	rows, err := r.queries.ListAccounts(ctx, generated.ListAccountsParams{
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		return nil, err
	}

	accounts := make([]*domain.Account, 0, len(rows))
	for _, row := range rows {
		accounts = append(accounts, rowToAccount(row))
	}

	return accounts, nil
}

func rowToAccount(row generated.Account) *domain.Account {
	return &domain.Account{
		ID:              row.ID,
		AccountNumber:   row.AccountNumber,
		RoutingCode:     row.RoutingCode,
		HolderName:      row.HolderName,
		Email:           row.Email,
		Phone:           row.Phone,
		Balance:         numericToDecimal(row.Balance),
		SignatureHandle: row.SignatureHandle,
		Version:         row.Version,
		CreatedAt:       row.CreatedAt.Time,
		UpdatedAt:       row.UpdatedAt.Time,
	}
}
