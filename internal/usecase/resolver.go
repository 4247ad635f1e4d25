package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/iho/chequer/internal/domain"
)

var tracer = otel.Tracer("github.com/iho/chequer/internal/usecase")

// Ledger is the transfer contract the resolver drives inside its own transaction.
type Ledger interface {
	TransferTx(ctx context.Context, tx Transaction, transfer domain.Transfer) (*domain.TransferResult, error)
}

// Resolver turns extracted cheque fields into a terminal clearance status. It is the
// only writer of ClearanceRecord.Status and the only caller of the ledger for cheques.
type Resolver struct {
	txManager     TransactionManager
	accountRepo   AccountRepository
	clearanceRepo ClearanceRepository
	outboxRepo    OutboxRepository
	ledger        Ledger
	verifier      SignatureVerifier
	idGen         IDGenerator
	threshold     float64
	now           func() time.Time
}

// NewResolver creates a Resolver. A threshold outside (0,1] falls back to DefaultSignatureThreshold.
func NewResolver(
	txManager TransactionManager,
	accountRepo AccountRepository,
	clearanceRepo ClearanceRepository,
	outboxRepo OutboxRepository,
	ledger Ledger,
	verifier SignatureVerifier,
	idGen IDGenerator,
	threshold float64,
) *Resolver {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultSignatureThreshold
	}
	return &Resolver{
		txManager:     txManager,
		accountRepo:   accountRepo,
		clearanceRepo: clearanceRepo,
		outboxRepo:    outboxRepo,
		ledger:        ledger,
		verifier:      verifier,
		idGen:         idGen,
		threshold:     threshold,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Threshold returns the similarity a signature must reach to match.
func (r *Resolver) Threshold() float64 {
	return r.threshold
}

// Resolve runs the verification gates in order and persists the outcome. A returned
// error is operational: nothing was persisted and the record is still PENDING.
func (r *Resolver) Resolve(ctx context.Context, record *domain.ClearanceRecord, fields *domain.ExtractedFields) (*domain.ClearanceRecord, error) {
	ctx, span := tracer.Start(ctx, "clearance.resolve")
	defer span.End()
	span.SetAttributes(attribute.String("clearance.id", record.ID))

	out := *record
	out.ApplyExtraction(fields)

	result, err := r.resolve(ctx, &out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.String("clearance.status", string(result.Status)))
	return result, nil
}

func (r *Resolver) resolve(ctx context.Context, record *domain.ClearanceRecord) (*domain.ClearanceRecord, error) {
	// 1. source account, from the cheque itself
	sourceNumber := domain.NormalizeAccountNumber(record.SourceAccountNumber)
	if sourceNumber == "" {
		return r.finish(ctx, record, domain.ClearanceStatusFromAccountNotFound)
	}
	source, err := r.accountRepo.GetByNumber(ctx, sourceNumber)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return r.finish(ctx, record, domain.ClearanceStatusFromAccountNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup source account: %w", err)
	}
	record.SourceAccountID = &source.ID

	// 2. destination account, supplied by the caller
	destination, err := r.accountRepo.GetByNumber(ctx, record.DestinationAccountNumber)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return r.finish(ctx, record, domain.ClearanceStatusToAccountNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup destination account: %w", err)
	}

	// 3. payee, exact value equality
	if record.PayeeName != destination.HolderName {
		return r.finish(ctx, record, domain.ClearanceStatusPayeeNameMismatch)
	}

	// 4. signature against the source account's reference
	score, err := r.similarity(ctx, record, source)
	if err != nil {
		return nil, err
	}
	record.SignatureSimilarity = &score
	if score < r.threshold {
		return r.finish(ctx, record, domain.ClearanceStatusSignatureMismatch)
	}

	// 5. move the money
	return r.clear(ctx, record, source, destination)
}

func (r *Resolver) similarity(ctx context.Context, record *domain.ClearanceRecord, source *domain.Account) (float64, error) {
	if record.SignatureBox == nil {
		record.LastError = "no signature region detected"
		return 0, nil
	}

	ctx, span := tracer.Start(ctx, "signature.verify")
	defer span.End()

	score, err := r.verifier.Similarity(ctx, source.SignatureHandle, record.ImageHandle, *record.SignatureBox)
	switch {
	case errors.Is(err, domain.ErrInvalidImage), errors.Is(err, domain.ErrInvalidBoundingBox):
		// An unreadable crop cannot match; keep the reason for review.
		record.LastError = err.Error()
		return 0, nil
	case errors.Is(err, domain.ErrBlobNotFound):
		// No image to compare against; retrying will not bring it back.
		record.LastError = "signature image missing: " + err.Error()
		return 0, nil
	case err != nil:
		span.RecordError(err)
		return 0, fmt.Errorf("verify signature: %w", err)
	}

	span.SetAttributes(attribute.Float64("signature.score", score))
	return score, nil
}

func (r *Resolver) clear(ctx context.Context, record *domain.ClearanceRecord, source, destination *domain.Account) (*domain.ClearanceRecord, error) {
	ctx, span := tracer.Start(ctx, "ledger.transfer")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := r.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	amount := decimal.Zero
	if record.Amount != nil {
		amount = *record.Amount
	}
	result, err := r.ledger.TransferTx(ctx, tx, domain.Transfer{
		FromAccountNumber: source.AccountNumber,
		ToAccountNumber:   destination.AccountNumber,
		Amount:            amount,
	})
	switch {
	case errors.Is(err, domain.ErrInsufficientFunds):
		_ = tx.Rollback(ctx)
		record.LastError = err.Error()
		return r.finish(ctx, record, domain.ClearanceStatusInsufficientFunds)
	case errors.Is(err, domain.ErrSameAccount), errors.Is(err, domain.ErrInvalidAmount):
		_ = tx.Rollback(ctx)
		record.LastError = err.Error()
		return r.finish(ctx, record, domain.ClearanceStatusLedgerRejected)
	case err != nil:
		span.RecordError(err)
		return nil, fmt.Errorf("ledger transfer: %w", err)
	}

	now := r.now()
	record.Status = domain.ClearanceStatusCleared
	record.LastError = ""
	record.UpdatedAt = now

	if err := r.clearanceRepo.Resolve(ctx, tx, record); err != nil {
		return nil, err
	}

	if err := r.outboxRepo.Create(ctx, tx, &domain.OutboxEvent{
		ID:            r.idGen.Generate(),
		AggregateID:   record.ID,
		AggregateType: domain.AggregateTypeTransfer,
		EventType:     domain.EventTypeTransferCompleted,
		Payload: map[string]any{
			"from_account_number": result.FromAccountNumber,
			"to_account_number":   result.ToAccountNumber,
			"amount":              result.Amount.String(),
			"clearance_id":        record.ID,
			"event_at":            now.Format(time.RFC3339),
		},
		CreatedAt: now,
	}); err != nil {
		return nil, err
	}

	if err := r.writeEvent(ctx, tx, record, domain.EventTypeClearanceResolved, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return record, nil
}

// Park marks a record whose extraction kept failing as EXTRACTION_FAILED.
func (r *Resolver) Park(ctx context.Context, record *domain.ClearanceRecord, attempts int, cause error) (*domain.ClearanceRecord, error) {
	out := *record
	out.Attempts = attempts
	if cause != nil {
		out.LastError = cause.Error()
	}
	return r.persist(ctx, &out, domain.ClearanceStatusExtractionFailed, domain.EventTypeClearanceParked)
}

func (r *Resolver) finish(ctx context.Context, record *domain.ClearanceRecord, status domain.ClearanceStatus) (*domain.ClearanceRecord, error) {
	return r.persist(ctx, record, status, domain.EventTypeClearanceResolved)
}

func (r *Resolver) persist(ctx context.Context, record *domain.ClearanceRecord, status domain.ClearanceStatus, eventType string) (*domain.ClearanceRecord, error) {
	now := r.now()
	record.Status = status
	record.UpdatedAt = now

	tx, err := r.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := r.clearanceRepo.Resolve(ctx, tx, record); err != nil {
		return nil, err
	}
	if err := r.writeEvent(ctx, tx, record, eventType, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return record, nil
}

func (r *Resolver) writeEvent(ctx context.Context, tx Transaction, record *domain.ClearanceRecord, eventType string, now time.Time) error {
	return r.outboxRepo.Create(ctx, tx, &domain.OutboxEvent{
		ID:            r.idGen.Generate(),
		AggregateID:   record.ID,
		AggregateType: domain.AggregateTypeClearance,
		EventType:     eventType,
		Payload:       domain.NewClearanceEvent(record, now),
		CreatedAt:     now,
	})
}
