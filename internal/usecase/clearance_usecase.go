package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iho/chequer/internal/domain"
	"github.com/iho/chequer/internal/infrastructure/metrics"
)

// ClearanceUseCase is the submission and query boundary of the clearance pipeline.
type ClearanceUseCase struct {
	txManager     TransactionManager
	clearanceRepo ClearanceRepository
	outboxRepo    OutboxRepository
	blobs         BlobStore
	queue         ClearanceQueue
	idGen         IDGenerator
	now           func() time.Time
	metrics       *metrics.Metrics
}

// NewClearanceUseCase creates a new ClearanceUseCase.
func NewClearanceUseCase(
	txManager TransactionManager,
	clearanceRepo ClearanceRepository,
	outboxRepo OutboxRepository,
	blobs BlobStore,
	queue ClearanceQueue,
	idGen IDGenerator,
) *ClearanceUseCase {
	return &ClearanceUseCase{
		txManager:     txManager,
		clearanceRepo: clearanceRepo,
		outboxRepo:    outboxRepo,
		blobs:         blobs,
		queue:         queue,
		idGen:         idGen,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// WithMetrics records submission counters on m.
func (uc *ClearanceUseCase) WithMetrics(m *metrics.Metrics) *ClearanceUseCase {
	uc.metrics = m
	return uc
}

// SubmitClearanceInput represents a cheque that is already in blob storage.
type SubmitClearanceInput struct {
	ImageHandle              string
	DestinationAccountNumber string
}

// Submit records a PENDING clearance and schedules it. It returns as soon as the
// record is durable; the outcome is observed by polling GetRecord.
func (uc *ClearanceUseCase) Submit(ctx context.Context, input SubmitClearanceInput) (*domain.ClearanceRecord, error) {
	return uc.submit(ctx, input, nil)
}

// SubmitImageInput represents a cheque image uploaded with the request.
type SubmitImageInput struct {
	Image                    []byte
	ContentType              string
	DestinationAccountNumber string
}

// SubmitImage stores the cheque image and submits it.
func (uc *ClearanceUseCase) SubmitImage(ctx context.Context, input SubmitImageInput) (*domain.ClearanceRecord, error) {
	if len(input.Image) == 0 {
		return nil, fmt.Errorf("%w: empty cheque image", domain.ErrInvalidImage)
	}
	destination := domain.NormalizeAccountNumber(input.DestinationAccountNumber)
	if err := domain.ValidateAccountNumber(destination); err != nil {
		return nil, err
	}

	key := ChequeKeyPrefix + uuid.NewString() + extensionFor(input.ContentType)
	handle, err := uc.blobs.Put(ctx, key, input.Image, input.ContentType)
	if err != nil {
		return nil, fmt.Errorf("upload cheque image: %w", err)
	}

	return uc.submit(ctx, SubmitClearanceInput{
		ImageHandle:              handle,
		DestinationAccountNumber: destination,
	}, nil)
}

// Resubmit creates a new clearance request from a failed record's image,
// optionally with a corrected destination account.
func (uc *ClearanceUseCase) Resubmit(ctx context.Context, id, destinationAccountNumber string) (*domain.ClearanceRecord, error) {
	original, err := uc.clearanceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !original.Status.IsTerminal() || original.Status == domain.ClearanceStatusCleared {
		return nil, domain.ErrClearanceNotResubmittable
	}

	destination := original.DestinationAccountNumber
	if destinationAccountNumber != "" {
		destination = destinationAccountNumber
	}

	return uc.submit(ctx, SubmitClearanceInput{
		ImageHandle:              original.ImageHandle,
		DestinationAccountNumber: destination,
	}, &original.ID)
}

func (uc *ClearanceUseCase) submit(ctx context.Context, input SubmitClearanceInput, resubmittedFrom *string) (*domain.ClearanceRecord, error) {
	destination := domain.NormalizeAccountNumber(input.DestinationAccountNumber)
	if err := domain.ValidateAccountNumber(destination); err != nil {
		return nil, err
	}

	exists, err := uc.blobs.Exists(ctx, input.ImageHandle)
	if err != nil {
		return nil, fmt.Errorf("check cheque image: %w", err)
	}
	if !exists {
		return nil, domain.ErrBlobNotFound
	}

	now := uc.now()
	record := domain.NewClearanceRecord(uc.idGen.Generate(), domain.ClearanceRequest{
		ImageHandle:              input.ImageHandle,
		DestinationAccountNumber: destination,
		SubmittedAt:              now,
	}, now)
	record.ResubmittedFrom = resubmittedFrom

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := uc.clearanceRepo.Create(ctx, tx, record); err != nil {
		return nil, err
	}

	payload := domain.NewClearanceEvent(record, now)
	if resubmittedFrom != nil {
		payload["resubmitted_from"] = *resubmittedFrom
	}
	if err := uc.outboxRepo.Create(ctx, tx, &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   record.ID,
		AggregateType: domain.AggregateTypeClearance,
		EventType:     domain.EventTypeClearanceSubmitted,
		Payload:       payload,
		CreatedAt:     now,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	uc.metrics.ClearanceSubmitted()

	uc.queue.Enqueue(domain.QueueItem{
		RecordID:   record.ID,
		Request:    record.Request(),
		Status:     domain.ClearanceStatusPending,
		EnqueuedAt: now,
	})

	return record, nil
}

// GetQueue returns the requests waiting for the worker, oldest first.
func (uc *ClearanceUseCase) GetQueue() []domain.QueueItem {
	return uc.queue.Snapshot()
}

// GetRecord retrieves a clearance record by ID.
func (uc *ClearanceUseCase) GetRecord(ctx context.Context, id string) (*domain.ClearanceRecord, error) {
	return uc.clearanceRepo.GetByID(ctx, id)
}

// ListRecordsInput represents input for listing clearance records.
type ListRecordsInput struct {
	Status *domain.ClearanceStatus
	Limit  int
	Offset int
}

// ListRecords lists clearance records, newest first.
func (uc *ClearanceUseCase) ListRecords(ctx context.Context, input ListRecordsInput) ([]*domain.ClearanceRecord, error) {
	if input.Status != nil && !input.Status.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidClearanceStatus, *input.Status)
	}
	limit, offset, _ := domain.ValidatePagination(input.Limit, input.Offset)
	return uc.clearanceRepo.List(ctx, ClearanceFilter{
		Status: input.Status,
		Limit:  limit,
		Offset: offset,
	})
}

// ListCleared lists records whose funds were transferred.
func (uc *ClearanceUseCase) ListCleared(ctx context.Context, limit, offset int) ([]*domain.ClearanceRecord, error) {
	status := domain.ClearanceStatusCleared
	return uc.ListRecords(ctx, ListRecordsInput{Status: &status, Limit: limit, Offset: offset})
}

// ListEvents returns the outbox history of a clearance record.
func (uc *ClearanceUseCase) ListEvents(ctx context.Context, id string, limit, offset int) ([]*domain.OutboxEvent, error) {
	if _, err := uc.clearanceRepo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	limit, offset, _ = domain.ValidatePagination(limit, offset)
	return uc.outboxRepo.GetByAggregate(ctx, domain.AggregateTypeClearance, id, limit, offset)
}
