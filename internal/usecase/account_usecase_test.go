package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/iho/chequer/internal/domain"
	"github.com/iho/chequer/internal/usecase"
	"github.com/iho/chequer/internal/usecase/mocks"
)

type accountFixture struct {
	repo   *mocks.MockAccountRepository
	outbox *mocks.MockOutboxRepository
	blobs  *mocks.MockBlobStore
	txMgr  *mocks.MockTransactionManager
	uc     *usecase.AccountUseCase
}

func newAccountFixture() *accountFixture {
	f := &accountFixture{
		repo:   mocks.NewMockAccountRepository(),
		outbox: mocks.NewMockOutboxRepository(),
		blobs:  mocks.NewMockBlobStore(),
		txMgr:  mocks.NewMockTransactionManager(),
	}
	f.uc = usecase.NewAccountUseCase(f.txMgr, f.repo, f.outbox, f.blobs, mocks.NewMockIDGenerator())
	return f
}

func validAccountInput() usecase.CreateAccountInput {
	return usecase.CreateAccountInput{
		AccountNumber:        "5010 0234",
		RoutingCode:          "HDFC0001234",
		HolderName:           "Alice Example",
		Email:                "alice@example.com",
		Phone:                "+919876543210",
		OpeningBalance:       decimal.NewFromInt(1000),
		Signature:            []byte("png-bytes"),
		SignatureContentType: "image/png",
	}
}

func TestAccountUseCase_CreateAccount(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*usecase.CreateAccountInput)
		setup       func(*accountFixture)
		expectError error
	}{
		{
			name: "successful account creation",
		},
		{
			name:        "negative opening balance",
			mutate:      func(in *usecase.CreateAccountInput) { in.OpeningBalance = decimal.NewFromInt(-1) },
			expectError: domain.ErrNegativeBalance,
		},
		{
			name:        "missing signature",
			mutate:      func(in *usecase.CreateAccountInput) { in.Signature = nil },
			expectError: domain.ErrInvalidImage,
		},
		{
			name:        "bad email",
			mutate:      func(in *usecase.CreateAccountInput) { in.Email = "not-an-email" },
			expectError: domain.ErrInvalidEmail,
		},
		{
			name: "blob store unavailable",
			setup: func(f *accountFixture) {
				f.blobs.PutFunc = func(ctx context.Context, key string, data []byte, contentType string) (string, error) {
					return "", errors.New("storage unavailable")
				}
			},
			expectError: errors.New("upload reference signature: storage unavailable"),
		},
		{
			name: "duplicate account number",
			setup: func(f *accountFixture) {
				_ = f.repo.Create(context.Background(), nil, &domain.Account{ID: "existing", AccountNumber: "50100234"})
			},
			expectError: domain.ErrAccountExists,
		},
		{
			name: "repository error rolls back",
			setup: func(f *accountFixture) {
				f.repo.CreateFunc = func(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
					return errors.New("insert failed")
				}
			},
			expectError: errors.New("insert failed"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAccountFixture()
			if tt.setup != nil {
				tt.setup(f)
			}
			input := validAccountInput()
			if tt.mutate != nil {
				tt.mutate(&input)
			}

			account, err := f.uc.CreateAccount(context.Background(), input)

			if tt.expectError != nil {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, tt.expectError) && err.Error() != tt.expectError.Error() {
					t.Fatalf("expected error %v, got %v", tt.expectError, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if account.AccountNumber != "50100234" {
				t.Errorf("expected normalized account number, got %q", account.AccountNumber)
			}
			if account.SignatureHandle != "mock://signatures/50100234/mock-id-1.png" {
				t.Errorf("unexpected signature handle %q", account.SignatureHandle)
			}
			if !account.Balance.Equal(decimal.NewFromInt(1000)) {
				t.Errorf("unexpected opening balance %s", account.Balance)
			}
			if types := f.outbox.EventTypes(); len(types) != 1 || types[0] != domain.EventTypeAccountCreated {
				t.Errorf("expected account.created event, got %v", types)
			}
			if f.txMgr.Commits != 1 {
				t.Errorf("expected one commit, got %d", f.txMgr.Commits)
			}
		})
	}
}

func TestAccountUseCase_CreateAccountRetryAfterFailedInsert(t *testing.T) {
	f := newAccountFixture()
	failures := 1
	f.repo.CreateFunc = func(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
		if failures > 0 {
			failures--
			return errors.New("connection reset")
		}
		f.repo.CreateFunc = nil
		return f.repo.Create(ctx, tx, account)
	}

	input := validAccountInput()
	if _, err := f.uc.CreateAccount(context.Background(), input); err == nil {
		t.Fatal("expected the first attempt to fail")
	}

	input.Signature = []byte("second-scan")
	account, err := f.uc.CreateAccount(context.Background(), input)
	if err != nil {
		t.Fatalf("retry must not be blocked by the first upload: %v", err)
	}

	stored, err := f.blobs.Get(context.Background(), account.SignatureHandle)
	if err != nil {
		t.Fatalf("reference signature not stored: %v", err)
	}
	if string(stored) != "second-scan" {
		t.Errorf("account must reference the signature sent with it, got %q", stored)
	}
}

func TestAccountUseCase_GetAccount(t *testing.T) {
	f := newAccountFixture()
	_ = f.repo.Create(context.Background(), nil, &domain.Account{ID: "acc-1", AccountNumber: "1000", HolderName: "Alice"})

	account, err := f.uc.GetAccount(context.Background(), "acc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if account.HolderName != "Alice" {
		t.Errorf("unexpected holder %q", account.HolderName)
	}

	if _, err := f.uc.GetAccount(context.Background(), "missing"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}

	byNumber, err := f.uc.GetAccountByNumber(context.Background(), " 10-00 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if byNumber.ID != "acc-1" {
		t.Errorf("expected acc-1, got %s", byNumber.ID)
	}
}

func TestAccountUseCase_ListAccounts(t *testing.T) {
	f := newAccountFixture()
	_ = f.repo.Create(context.Background(), nil, &domain.Account{ID: "1", AccountNumber: "1000"})
	_ = f.repo.Create(context.Background(), nil, &domain.Account{ID: "2", AccountNumber: "2000"})

	accounts, err := f.uc.ListAccounts(context.Background(), usecase.ListAccountsInput{Limit: 10, Offset: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(accounts) != 2 {
		t.Errorf("expected 2 accounts, got %d", len(accounts))
	}

	accounts, _ = f.uc.ListAccounts(context.Background(), usecase.ListAccountsInput{Limit: 10, Offset: 1})
	if len(accounts) != 1 || accounts[0].AccountNumber != "2000" {
		t.Errorf("expected second page to hold 2000, got %v", accounts)
	}
}
