package usecase

import (
	"context"
	"sort"
	"time"

	"github.com/iho/chequer/internal/domain"
)

// LedgerUseCase is the only component that mutates account balances.
type LedgerUseCase struct {
	txManager   TransactionManager
	accountRepo AccountRepository
	retrier     Retrier
	now         func() time.Time
}

// NewLedgerUseCase creates a new LedgerUseCase. retrier may be nil.
func NewLedgerUseCase(txManager TransactionManager, accountRepo AccountRepository, retrier Retrier) *LedgerUseCase {
	return &LedgerUseCase{
		txManager:   txManager,
		accountRepo: accountRepo,
		retrier:     retrier,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Transfer moves amount between two accounts in its own transaction.
func (uc *LedgerUseCase) Transfer(ctx context.Context, transfer domain.Transfer) (*domain.TransferResult, error) {
	if err := transfer.Validate(); err != nil {
		return nil, err
	}

	var result *domain.TransferResult
	op := func() error {
		ctx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
		defer cancel()

		tx, err := uc.txManager.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		res, err := uc.TransferTx(ctx, tx, transfer)
		if err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		result = res
		return nil
	}

	var err error
	if uc.retrier != nil {
		err = uc.retrier.Retry(ctx, op)
	} else {
		err = op()
	}
	if err != nil {
		return nil, err
	}

	return result, nil
}

// TransferTx applies the transfer inside tx. The caller owns commit and rollback,
// which lets a clearance record update commit atomically with the balances.
func (uc *LedgerUseCase) TransferTx(ctx context.Context, tx Transaction, transfer domain.Transfer) (*domain.TransferResult, error) {
	if err := transfer.Validate(); err != nil {
		return nil, err
	}

	// Lock accounts in sorted order (DEADLOCK PREVENTION)
	numbers := []string{transfer.FromAccountNumber, transfer.ToAccountNumber}
	sort.Strings(numbers)

	accounts, err := uc.accountRepo.GetByNumbersForUpdate(ctx, tx, numbers)
	if err != nil {
		return nil, err
	}

	byNumber := make(map[string]*domain.Account, len(accounts))
	for _, a := range accounts {
		byNumber[a.AccountNumber] = a
	}

	from := byNumber[transfer.FromAccountNumber]
	to := byNumber[transfer.ToAccountNumber]
	if from == nil || to == nil {
		return nil, domain.ErrAccountNotFound
	}

	if err := from.ValidateDebit(transfer.Amount); err != nil {
		return nil, err
	}

	now := uc.now()
	fromBalance := from.ApplyDebit(transfer.Amount)
	toBalance := to.ApplyCredit(transfer.Amount)

	if err := uc.accountRepo.UpdateBalance(ctx, tx, from.ID, fromBalance, now); err != nil {
		return nil, err
	}
	if err := uc.accountRepo.UpdateBalance(ctx, tx, to.ID, toBalance, now); err != nil {
		return nil, err
	}

	return &domain.TransferResult{
		FromAccountNumber: from.AccountNumber,
		ToAccountNumber:   to.AccountNumber,
		Amount:            transfer.Amount,
		FromBalance:       fromBalance,
		ToBalance:         toBalance,
		CompletedAt:       now,
	}, nil
}
