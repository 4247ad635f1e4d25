package postgres_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/mock/gomock"

	"github.com/iho/chequer/internal/adapter/repository/postgres"
	"github.com/iho/chequer/internal/adapter/storage/memory"
	"github.com/iho/chequer/internal/domain"
	pgdb "github.com/iho/chequer/internal/infrastructure/postgres"
	"github.com/iho/chequer/internal/queue"
	"github.com/iho/chequer/internal/usecase"
	"github.com/iho/chequer/internal/usecase/mocks"
)

// startDatabase returns a migrated pool. DATABASE_URL points the test at an
// existing database instead of a container.
func startDatabase(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		testcontainers.SkipIfProviderIsNotHealthy(t)

		ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
			tcpostgres.WithDatabase("chequer"),
			tcpostgres.WithUsername("chequer"),
			tcpostgres.WithPassword("chequer"),
			tcpostgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
		t.Cleanup(func() {
			_ = testcontainers.TerminateContainer(ctr)
		})

		dsn, err = ctr.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err)
	}

	require.NoError(t, pgdb.RunMigrations(dsn, zerolog.Nop()))

	pool, err := pgdb.NewPool(ctx, dsn, 10, 1)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, "TRUNCATE outbox_events, clearance_records, accounts")
	require.NoError(t, err)

	return pool
}

type pipeline struct {
	accounts    *usecase.AccountUseCase
	clearances  *usecase.ClearanceUseCase
	resolver    *usecase.Resolver
	accountRepo *postgres.AccountRepository
	outboxRepo  *postgres.OutboxRepository
}

func newPipeline(t *testing.T, pool *pgxpool.Pool, verifier usecase.SignatureVerifier) *pipeline {
	txManager := postgres.NewTxManager(pool)
	accountRepo := postgres.NewAccountRepository(pool)
	clearanceRepo := postgres.NewClearanceRepository(pool)
	outboxRepo := postgres.NewOutboxRepository(pool)
	idGen := postgres.NewULIDGenerator()
	blobs := memory.New()
	ledger := usecase.NewLedgerUseCase(txManager, accountRepo, postgres.NewRetrier(zerolog.Nop()))

	return &pipeline{
		accounts:    usecase.NewAccountUseCase(txManager, accountRepo, outboxRepo, blobs, idGen),
		clearances:  usecase.NewClearanceUseCase(txManager, clearanceRepo, outboxRepo, blobs, queue.New(), idGen),
		resolver:    usecase.NewResolver(txManager, accountRepo, clearanceRepo, outboxRepo, ledger, verifier, idGen, 0.85),
		accountRepo: accountRepo,
		outboxRepo:  outboxRepo,
	}
}

func (p *pipeline) openAccount(t *testing.T, number, holder string, balance int64) *domain.Account {
	t.Helper()
	account, err := p.accounts.CreateAccount(context.Background(), usecase.CreateAccountInput{
		AccountNumber:        number,
		RoutingCode:          "HDFC0001",
		HolderName:           holder,
		OpeningBalance:       decimal.NewFromInt(balance),
		Signature:            []byte("reference"),
		SignatureContentType: "image/png",
	})
	require.NoError(t, err)
	return account
}

func (p *pipeline) submit(t *testing.T, destination string) *domain.ClearanceRecord {
	t.Helper()
	record, err := p.clearances.SubmitImage(context.Background(), usecase.SubmitImageInput{
		Image:                    []byte("cheque"),
		ContentType:              "image/png",
		DestinationAccountNumber: destination,
	})
	require.NoError(t, err)
	return record
}

func chequeFields(amount int64) *domain.ExtractedFields {
	return &domain.ExtractedFields{
		PayeeName:           "Bob",
		Amount:              decimal.NewFromInt(amount),
		SourceAccountNumber: "1000",
		RoutingCode:         "HDFC0001",
		ChequeNumber:        "000123",
		SignatureBox:        &domain.BoundingBox{Left: 0.6, Top: 0.7, Width: 0.3, Height: 0.2},
		RawResponse:         []byte(`{"Blocks":[]}`),
	}
}

func matchingVerifier(t *testing.T) usecase.SignatureVerifier {
	ctrl := gomock.NewController(t)
	verifier := mocks.NewMockSignatureVerifier(ctrl)
	verifier.EXPECT().
		Similarity(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(0.97, nil).
		AnyTimes()
	return verifier
}

func TestIntegration_ClearanceMovesFundsOnce(t *testing.T) {
	pool := startDatabase(t)
	p := newPipeline(t, pool, matchingVerifier(t))
	ctx := context.Background()

	p.openAccount(t, "1000", "Alice", 1000)
	p.openAccount(t, "2000", "Bob", 0)

	pending := p.submit(t, "2000")
	assert.Equal(t, domain.ClearanceStatusPending, pending.Status)

	resolved, err := p.resolver.Resolve(ctx, pending, chequeFields(400))
	require.NoError(t, err)
	assert.Equal(t, domain.ClearanceStatusCleared, resolved.Status)

	stored, err := p.clearances.GetRecord(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ClearanceStatusCleared, stored.Status)
	require.NotNil(t, stored.Amount)
	assert.True(t, stored.Amount.Equal(decimal.NewFromInt(400)))
	require.NotNil(t, stored.SignatureBox)
	assert.InDelta(t, 0.6, stored.SignatureBox.Left, 1e-9)
	require.NotNil(t, stored.SourceAccountID)

	alice, err := p.accountRepo.GetByNumber(ctx, "1000")
	require.NoError(t, err)
	bob, err := p.accountRepo.GetByNumber(ctx, "2000")
	require.NoError(t, err)
	assert.Equal(t, "600", alice.Balance.String())
	assert.Equal(t, "400", bob.Balance.String())

	_, err = p.resolver.Resolve(ctx, pending, chequeFields(400))
	assert.ErrorIs(t, err, domain.ErrClearanceAlreadyResolved)

	alice, err = p.accountRepo.GetByNumber(ctx, "1000")
	require.NoError(t, err)
	assert.Equal(t, "600", alice.Balance.String())

	events, err := p.outboxRepo.GetByAggregate(ctx, domain.AggregateTypeClearance, pending.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventTypeClearanceSubmitted, events[0].EventType)
	assert.Equal(t, domain.EventTypeClearanceResolved, events[1].EventType)
}

func TestIntegration_ConcurrentChequesNeverOverdraw(t *testing.T) {
	pool := startDatabase(t)
	p := newPipeline(t, pool, matchingVerifier(t))
	ctx := context.Background()

	p.openAccount(t, "1000", "Alice", 1000)
	p.openAccount(t, "2000", "Bob", 0)

	records := []*domain.ClearanceRecord{p.submit(t, "2000"), p.submit(t, "2000")}

	var wg sync.WaitGroup
	statuses := make([]domain.ClearanceStatus, len(records))
	for i, record := range records {
		wg.Add(1)
		go func(i int, record *domain.ClearanceRecord) {
			defer wg.Done()
			resolved, err := p.resolver.Resolve(ctx, record, chequeFields(700))
			if assert.NoError(t, err) {
				statuses[i] = resolved.Status
			}
		}(i, record)
	}
	wg.Wait()

	assert.ElementsMatch(t, []domain.ClearanceStatus{
		domain.ClearanceStatusCleared,
		domain.ClearanceStatusInsufficientFunds,
	}, statuses)

	alice, err := p.accountRepo.GetByNumber(ctx, "1000")
	require.NoError(t, err)
	assert.Equal(t, "300", alice.Balance.String())
}

func TestIntegration_QueryFilters(t *testing.T) {
	pool := startDatabase(t)
	p := newPipeline(t, pool, matchingVerifier(t))
	ctx := context.Background()

	p.openAccount(t, "1000", "Alice", 1000)
	p.openAccount(t, "2000", "Bob", 0)

	first := p.submit(t, "2000")
	time.Sleep(5 * time.Millisecond)
	second := p.submit(t, "2000")

	_, err := p.resolver.Resolve(ctx, first, chequeFields(100))
	require.NoError(t, err)

	cleared, err := p.clearances.ListCleared(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, cleared, 1)
	assert.Equal(t, first.ID, cleared[0].ID)

	repo := postgres.NewClearanceRepository(pool)
	pending, err := repo.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)

	require.NoError(t, repo.RecordAttempt(ctx, second.ID, 2, "throttled", time.Now()))
	reloaded, err := repo.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Attempts)
	assert.Equal(t, "throttled", reloaded.LastError)
	assert.Equal(t, domain.ClearanceStatusPending, reloaded.Status)

	_, err = p.accounts.CreateAccount(ctx, usecase.CreateAccountInput{
		AccountNumber:  "1000",
		HolderName:     "Mallory",
		Signature:      []byte("x"),
		OpeningBalance: decimal.Zero,
	})
	assert.ErrorIs(t, err, domain.ErrAccountExists)
}
