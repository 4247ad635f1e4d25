package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/chequer/internal/domain"
	"github.com/iho/chequer/internal/infrastructure/metrics"
)

// AccountUseCase handles account business logic.
type AccountUseCase struct {
	txManager   TransactionManager
	accountRepo AccountRepository
	outboxRepo  OutboxRepository
	blobs       BlobStore
	idGen       IDGenerator
	metrics     *metrics.Metrics
}

// NewAccountUseCase creates a new AccountUseCase.
func NewAccountUseCase(
	txManager TransactionManager,
	accountRepo AccountRepository,
	outboxRepo OutboxRepository,
	blobs BlobStore,
	idGen IDGenerator,
) *AccountUseCase {
	return &AccountUseCase{
		txManager:   txManager,
		accountRepo: accountRepo,
		outboxRepo:  outboxRepo,
		blobs:       blobs,
		idGen:       idGen,
	}
}

// WithMetrics records account counters on m.
func (uc *AccountUseCase) WithMetrics(m *metrics.Metrics) *AccountUseCase {
	uc.metrics = m
	return uc
}

// CreateAccountInput represents input for creating an account.
type CreateAccountInput struct {
	AccountNumber        string
	RoutingCode          string
	HolderName           string
	Email                string
	Phone                string
	OpeningBalance       decimal.Decimal
	Signature            []byte
	SignatureContentType string
}

// Validate checks the input before any side effect happens.
func (in *CreateAccountInput) Validate() error {
	in.AccountNumber = domain.NormalizeAccountNumber(in.AccountNumber)
	if err := domain.ValidateAccountNumber(in.AccountNumber); err != nil {
		return err
	}
	if err := domain.ValidateHolderName(in.HolderName); err != nil {
		return err
	}
	if in.Email != "" {
		if err := domain.ValidateEmail(in.Email); err != nil {
			return err
		}
	}
	if in.Phone != "" {
		if err := domain.ValidatePhone(in.Phone); err != nil {
			return err
		}
	}
	if in.OpeningBalance.IsNegative() {
		return domain.ErrNegativeBalance
	}
	if len(in.Signature) == 0 {
		return fmt.Errorf("%w: reference signature is required", domain.ErrInvalidImage)
	}
	return nil
}

// CreateAccount uploads the reference signature and opens the account.
func (uc *AccountUseCase) CreateAccount(ctx context.Context, input CreateAccountInput) (*domain.Account, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	if existing, err := uc.accountRepo.GetByNumber(ctx, input.AccountNumber); err == nil && existing != nil {
		return nil, domain.ErrAccountExists
	}

	// Keyed by account id: a blob left by a failed attempt never blocks a retry.
	id := uc.idGen.Generate()
	key := SignatureKeyPrefix + input.AccountNumber + "/" + id + extensionFor(input.SignatureContentType)
	handle, err := uc.blobs.Put(ctx, key, input.Signature, input.SignatureContentType)
	if err != nil {
		return nil, fmt.Errorf("upload reference signature: %w", err)
	}

	now := time.Now().UTC()
	account := &domain.Account{
		ID:              id,
		AccountNumber:   input.AccountNumber,
		RoutingCode:     input.RoutingCode,
		HolderName:      input.HolderName,
		Email:           input.Email,
		Phone:           input.Phone,
		Balance:         input.OpeningBalance,
		SignatureHandle: handle,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := uc.accountRepo.Create(ctx, tx, account); err != nil {
		return nil, err
	}

	event := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   account.ID,
		AggregateType: domain.AggregateTypeAccount,
		EventType:     domain.EventTypeAccountCreated,
		Payload: map[string]any{
			"account_id":     account.ID,
			"account_number": account.AccountNumber,
			"holder_name":    account.HolderName,
		},
		CreatedAt: now,
	}
	if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	uc.metrics.AccountCreated()

	return account, nil
}

// GetAccount retrieves an account by ID.
func (uc *AccountUseCase) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	return uc.accountRepo.GetByID(ctx, id)
}

// GetAccountByNumber retrieves an account by its account number.
func (uc *AccountUseCase) GetAccountByNumber(ctx context.Context, number string) (*domain.Account, error) {
	return uc.accountRepo.GetByNumber(ctx, domain.NormalizeAccountNumber(number))
}

// ListAccountsInput represents input for listing accounts.
type ListAccountsInput struct {
	Limit  int
	Offset int
}

// ListAccounts lists accounts with pagination.
func (uc *AccountUseCase) ListAccounts(ctx context.Context, input ListAccountsInput) ([]*domain.Account, error) {
	if input.Limit <= 0 {
		input.Limit = 20
	}
	if input.Limit > 100 {
		input.Limit = 100
	}
	return uc.accountRepo.List(ctx, input.Limit, input.Offset)
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/tiff":
		return ".tiff"
	default:
		return ".png"
	}
}
