package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/chequer/internal/domain"
	"github.com/iho/chequer/internal/queue"
	"github.com/iho/chequer/internal/usecase"
	"github.com/iho/chequer/internal/usecase/mocks"
	"github.com/iho/chequer/internal/worker"
)

type harness struct {
	accounts   *mocks.MockAccountRepository
	clearances *mocks.MockClearanceRepository
	blobs      *mocks.MockBlobStore
	extractor  *mocks.MockExtractor
	verifier   *mocks.MockSignatureVerifier
	queue      *queue.Queue
	worker     *worker.Worker
}

func newHarness(t *testing.T, opts ...worker.Option) *harness {
	t.Helper()
	ctrl := gomock.NewController(t)

	h := &harness{
		accounts: mocks.NewMockAccountRepository(
			&domain.Account{ID: "acc-a", AccountNumber: "1000", HolderName: "Alice", Balance: decimal.NewFromInt(1000), SignatureHandle: "mock://signatures/1000.png"},
			&domain.Account{ID: "acc-b", AccountNumber: "2000", HolderName: "Bob", Balance: decimal.Zero, SignatureHandle: "mock://signatures/2000.png"},
		),
		clearances: mocks.NewMockClearanceRepository(),
		blobs:      mocks.NewMockBlobStore(),
		extractor:  mocks.NewMockExtractor(ctrl),
		verifier:   mocks.NewMockSignatureVerifier(ctrl),
		queue:      queue.New(),
	}

	txMgr := mocks.NewMockTransactionManager()
	ledger := usecase.NewLedgerUseCase(txMgr, h.accounts, nil)
	resolver := usecase.NewResolver(txMgr, h.accounts, h.clearances, mocks.NewMockOutboxRepository(), ledger, h.verifier, mocks.NewMockIDGenerator(), 0.75)

	h.worker = worker.New(worker.Config{
		IdleWait:       10 * time.Millisecond,
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}, h.queue, h.clearances, h.extractor, resolver, h.blobs, opts...)
	return h
}

func (h *harness) submit(t *testing.T, id, image string) domain.QueueItem {
	t.Helper()
	now := time.Now().UTC()
	record := domain.NewClearanceRecord(id, domain.ClearanceRequest{
		ImageHandle:              image,
		DestinationAccountNumber: "2000",
		SubmittedAt:              now,
	}, now)
	require.NoError(t, h.clearances.Create(context.Background(), nil, record))
	return domain.QueueItem{RecordID: id, Request: record.Request(), Status: domain.ClearanceStatusPending}
}

func (h *harness) status(t *testing.T, id string) *domain.ClearanceRecord {
	t.Helper()
	r, err := h.clearances.GetByID(context.Background(), id)
	require.NoError(t, err)
	return r
}

func fields(amount int64) *domain.ExtractedFields {
	return &domain.ExtractedFields{
		PayeeName:           "Bob",
		Amount:              decimal.NewFromInt(amount),
		SourceAccountNumber: "1000",
		ChequeNumber:        "000123",
		SignatureBox:        &domain.BoundingBox{Left: 0.6, Top: 0.7, Width: 0.3, Height: 0.15},
		RawResponse:         []byte(`{"DocumentMetadata":{"Pages":1}}`),
	}
}

func TestWorker_ProcessItemClears(t *testing.T) {
	h := newHarness(t)
	item := h.submit(t, "rec-1", "mock://cheques/1.png")

	h.extractor.EXPECT().Extract(gomock.Any(), "mock://cheques/1.png").Return(fields(400), nil)
	h.verifier.EXPECT().Similarity(gomock.Any(), "mock://signatures/1000.png", "mock://cheques/1.png", gomock.Any()).Return(0.9, nil)

	h.worker.ProcessItem(context.Background(), item)

	record := h.status(t, "rec-1")
	assert.Equal(t, domain.ClearanceStatusCleared, record.Status)
	assert.Equal(t, "mock://ocr/rec-1.json", record.OCRHandle)
	assert.True(t, h.accounts.Balance("1000").Equal(decimal.NewFromInt(600)))
	assert.True(t, h.accounts.Balance("2000").Equal(decimal.NewFromInt(400)))

	artifact, err := h.blobs.Get(context.Background(), record.OCRHandle)
	require.NoError(t, err)
	assert.Contains(t, string(artifact), `"cheque_number":"000123"`)
	assert.Contains(t, string(artifact), `"DocumentMetadata"`)
}

func TestWorker_RetriesTransientExtraction(t *testing.T) {
	h := newHarness(t)
	item := h.submit(t, "rec-1", "mock://cheques/1.png")

	gomock.InOrder(
		h.extractor.EXPECT().Extract(gomock.Any(), gomock.Any()).Return(nil, domain.NewTransientExtractionError(errors.New("throttled"))),
		h.extractor.EXPECT().Extract(gomock.Any(), gomock.Any()).Return(fields(400), nil),
	)
	h.verifier.EXPECT().Similarity(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(0.9, nil)

	h.worker.ProcessItem(context.Background(), item)

	record := h.status(t, "rec-1")
	assert.Equal(t, domain.ClearanceStatusCleared, record.Status)
	assert.Equal(t, 2, record.Attempts)
}

func TestWorker_ParksAfterBoundedRetries(t *testing.T) {
	h := newHarness(t)
	item := h.submit(t, "rec-1", "mock://cheques/1.png")

	h.extractor.EXPECT().
		Extract(gomock.Any(), gomock.Any()).
		Return(nil, domain.NewTransientExtractionError(errors.New("service unavailable"))).
		Times(3)

	h.worker.ProcessItem(context.Background(), item)

	record := h.status(t, "rec-1")
	assert.Equal(t, domain.ClearanceStatusExtractionFailed, record.Status)
	assert.Equal(t, 3, record.Attempts)
	assert.Contains(t, record.LastError, "service unavailable")
	assert.True(t, h.accounts.Balance("1000").Equal(decimal.NewFromInt(1000)))
}

func TestWorker_PermanentExtractionErrorIsNotRetried(t *testing.T) {
	h := newHarness(t)
	item := h.submit(t, "rec-1", "mock://cheques/1.png")

	h.extractor.EXPECT().
		Extract(gomock.Any(), gomock.Any()).
		Return(nil, domain.NewPermanentExtractionError(errors.New("unsupported document"))).
		Times(1)

	h.worker.ProcessItem(context.Background(), item)

	record := h.status(t, "rec-1")
	assert.Equal(t, domain.ClearanceStatusExtractionFailed, record.Status)
	assert.Equal(t, 1, record.Attempts)
}

func TestWorker_InvalidExtractedAmountIsParked(t *testing.T) {
	h := newHarness(t)
	item := h.submit(t, "rec-1", "mock://cheques/1.png")

	h.extractor.EXPECT().Extract(gomock.Any(), gomock.Any()).Return(fields(0), nil).Times(1)

	h.worker.ProcessItem(context.Background(), item)

	record := h.status(t, "rec-1")
	assert.Equal(t, domain.ClearanceStatusExtractionFailed, record.Status)
	assert.Equal(t, 1, record.Attempts)
	assert.Equal(t, "Bob", record.PayeeName)
	assert.Equal(t, "1000", record.SourceAccountNumber)
	assert.Equal(t, "000123", record.ChequeNumber)
	assert.NotEmpty(t, record.RawResponse)
	require.NotNil(t, record.Amount)
	assert.True(t, record.Amount.IsZero())
	assert.Equal(t, "mock://ocr/rec-1.json", record.OCRHandle)

	artifact, err := h.blobs.Get(context.Background(), record.OCRHandle)
	require.NoError(t, err)
	assert.Contains(t, string(artifact), `"payee_name":"Bob"`)
	assert.True(t, h.accounts.Balance("1000").Equal(decimal.NewFromInt(1000)))
}

func TestWorker_RejectedDocumentKeepsPartialFields(t *testing.T) {
	h := newHarness(t)
	item := h.submit(t, "rec-1", "mock://cheques/1.png")

	partial := fields(0)
	h.extractor.EXPECT().Extract(gomock.Any(), gomock.Any()).
		Return(nil, domain.NewIncompleteExtractionError(errors.New("no amount found on cheque"), partial)).
		Times(1)

	h.worker.ProcessItem(context.Background(), item)

	record := h.status(t, "rec-1")
	assert.Equal(t, domain.ClearanceStatusExtractionFailed, record.Status)
	assert.Equal(t, "Bob", record.PayeeName)
	assert.Equal(t, "000123", record.ChequeNumber)
	assert.Contains(t, record.LastError, "no amount found")
	assert.Equal(t, "mock://ocr/rec-1.json", record.OCRHandle)
}

func TestWorker_SkipsResolvedRecords(t *testing.T) {
	h := newHarness(t)
	item := h.submit(t, "rec-1", "mock://cheques/1.png")
	require.NoError(t, h.clearances.Resolve(context.Background(), nil, &domain.ClearanceRecord{ID: "rec-1", Status: domain.ClearanceStatusCleared}))

	// no extractor expectation: calling it fails the test
	h.worker.ProcessItem(context.Background(), item)

	assert.Equal(t, domain.ClearanceStatusCleared, h.status(t, "rec-1").Status)
}

func TestWorker_MissingRecordIsDeadLettered(t *testing.T) {
	h := newHarness(t)

	h.worker.ProcessItem(context.Background(), domain.QueueItem{RecordID: "ghost"})
}

func TestWorker_RecoversFromPanics(t *testing.T) {
	h := newHarness(t)
	item := h.submit(t, "rec-1", "mock://cheques/1.png")

	h.extractor.EXPECT().Extract(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, handle string) (*domain.ExtractedFields, error) {
			panic("nil map in extractor")
		},
	)

	assert.NotPanics(t, func() { h.worker.ProcessItem(context.Background(), item) })

	record := h.status(t, "rec-1")
	assert.Equal(t, domain.ClearanceStatusExtractionFailed, record.Status)
	assert.Equal(t, 1, record.Attempts)
	assert.Contains(t, record.LastError, "panic: nil map in extractor")

	n, err := h.worker.Recover(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "a record that panicked is not scheduled again")
	assert.Zero(t, h.queue.Len())
}

func TestWorker_LockedRecordIsSkipped(t *testing.T) {
	ctrl := gomock.NewController(t)
	locker := mocks.NewMockLocker(ctrl)
	h := newHarness(t, worker.WithLocker(locker))
	item := h.submit(t, "rec-1", "mock://cheques/1.png")

	locker.EXPECT().Acquire(gomock.Any(), "clearance:rec-1").Return(nil, errors.New("lock already taken"))

	h.worker.ProcessItem(context.Background(), item)

	assert.Equal(t, domain.ClearanceStatusPending, h.status(t, "rec-1").Status)
}

func TestWorker_ReleasesLock(t *testing.T) {
	ctrl := gomock.NewController(t)
	locker := mocks.NewMockLocker(ctrl)
	h := newHarness(t, worker.WithLocker(locker))
	item := h.submit(t, "rec-1", "mock://cheques/1.png")

	released := false
	locker.EXPECT().Acquire(gomock.Any(), "clearance:rec-1").Return(func(context.Context) error {
		released = true
		return nil
	}, nil)
	h.extractor.EXPECT().Extract(gomock.Any(), gomock.Any()).Return(fields(400), nil)
	h.verifier.EXPECT().Similarity(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(0.2, nil)

	h.worker.ProcessItem(context.Background(), item)

	assert.True(t, released)
	assert.Equal(t, domain.ClearanceStatusSignatureMismatch, h.status(t, "rec-1").Status)
}

func TestWorker_RecoverSchedulesPendingRecords(t *testing.T) {
	h := newHarness(t)
	h.submit(t, "rec-1", "mock://cheques/1.png")
	h.submit(t, "rec-2", "mock://cheques/2.png")
	h.submit(t, "rec-3", "mock://cheques/3.png")
	require.NoError(t, h.clearances.Resolve(context.Background(), nil, &domain.ClearanceRecord{ID: "rec-2", Status: domain.ClearanceStatusCleared}))

	n, err := h.worker.Recover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = h.worker.Recover(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "records already waiting are not scheduled twice")
	assert.Equal(t, 2, h.queue.Len())
}

func TestWorker_RunContinuesAfterFailedItem(t *testing.T) {
	h := newHarness(t)
	h.queue.Enqueue(h.submit(t, "rec-1", "mock://cheques/bad.png"))
	h.queue.Enqueue(h.submit(t, "rec-2", "mock://cheques/good.png"))

	h.extractor.EXPECT().Extract(gomock.Any(), "mock://cheques/bad.png").
		Return(nil, domain.NewPermanentExtractionError(errors.New("blank page"))).AnyTimes()
	h.extractor.EXPECT().Extract(gomock.Any(), "mock://cheques/good.png").Return(fields(400), nil)
	h.verifier.EXPECT().Similarity(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(0.9, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.worker.Run(ctx) }()

	require.Eventually(t, func() bool {
		return h.status(t, "rec-2").Status == domain.ClearanceStatusCleared
	}, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}

	assert.Equal(t, domain.ClearanceStatusExtractionFailed, h.status(t, "rec-1").Status)
}

func TestWorker_JointOverdrawClearsOnlyOne(t *testing.T) {
	h := newHarness(t)
	first := h.submit(t, "rec-1", "mock://cheques/1.png")
	second := h.submit(t, "rec-2", "mock://cheques/2.png")

	h.extractor.EXPECT().Extract(gomock.Any(), gomock.Any()).Return(fields(700), nil).Times(2)
	h.verifier.EXPECT().Similarity(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(0.9, nil).Times(2)

	h.worker.ProcessItem(context.Background(), first)
	h.worker.ProcessItem(context.Background(), second)

	assert.Equal(t, domain.ClearanceStatusCleared, h.status(t, "rec-1").Status)
	assert.Equal(t, domain.ClearanceStatusInsufficientFunds, h.status(t, "rec-2").Status)
	assert.True(t, h.accounts.Balance("1000").Equal(decimal.NewFromInt(300)))
	assert.True(t, h.accounts.Balance("2000").Equal(decimal.NewFromInt(700)))
}
