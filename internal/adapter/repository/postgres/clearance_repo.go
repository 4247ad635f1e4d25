package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iho/chequer/internal/domain"
	"github.com/iho/chequer/internal/infrastructure/postgres/generated"
	"github.com/iho/chequer/internal/usecase"
)

// ClearanceRepository implements usecase.ClearanceRepository.
type ClearanceRepository struct {
	queries *generated.Queries
}

// NewClearanceRepository creates a new ClearanceRepository.
func NewClearanceRepository(db generated.DBTX) *ClearanceRepository {
	return &ClearanceRepository{
		queries: generated.New(db),
	}
}

// Create inserts a PENDING record within a transaction.
func (r *ClearanceRepository) Create(ctx context.Context, tx usecase.Transaction, record *domain.ClearanceRecord) error {
	queries := r.queries.WithTx(tx.(*Tx).PgxTx())

	return queries.CreateClearanceRecord(ctx, generated.CreateClearanceRecordParams{
		ID:                       record.ID,
		DestinationAccountNumber: record.DestinationAccountNumber,
		ImageHandle:              record.ImageHandle,
		Status:                   string(record.Status),
		Attempts:                 int32(record.Attempts),
		ResubmittedFrom:          stringPtrToText(record.ResubmittedFrom),
		SubmittedAt:              timeToPgTimestamptz(record.SubmittedAt),
		CreatedAt:                timeToPgTimestamptz(record.CreatedAt),
		UpdatedAt:                timeToPgTimestamptz(record.UpdatedAt),
	})
}

// GetByID retrieves a record by ID.
func (r *ClearanceRepository) GetByID(ctx context.Context, id string) (*domain.ClearanceRecord, error) {
	row, err := r.queries.GetClearanceRecord(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrClearanceNotFound
		}

		return nil, err
	}

	return rowToClearanceRecord(row), nil
}

// List lists records newest first, optionally filtered by status.
func (r *ClearanceRepository) List(ctx context.Context, filter usecase.ClearanceFilter) ([]*domain.ClearanceRecord, error) {
	var status pgtype.Text
	if filter.Status != nil {
		status = pgtype.Text{String: string(*filter.Status), Valid: true}
	}

	rows, err := r.queries.ListClearanceRecords(ctx, generated.ListClearanceRecordsParams{
		Limit:  int32(filter.Limit),
		Offset: int32(filter.Offset),
		Status: status,
	})
	if err != nil {
		return nil, err
	}

	return rowsToClearanceRecords(rows), nil
}

// ListPending lists PENDING records oldest first.
func (r *ClearanceRepository) ListPending(ctx context.Context, limit int) ([]*domain.ClearanceRecord, error) {
	rows, err := r.queries.ListPendingClearanceRecords(ctx, int32(limit))
	if err != nil {
		return nil, err
	}

	return rowsToClearanceRecords(rows), nil
}

// Resolve writes the record's outcome. The update only matches a PENDING row.
func (r *ClearanceRepository) Resolve(ctx context.Context, tx usecase.Transaction, record *domain.ClearanceRecord) error {
	queries := r.queries.WithTx(tx.(*Tx).PgxTx())

	var box []byte
	if record.SignatureBox != nil {
		encoded, err := json.Marshal(record.SignatureBox)
		if err != nil {
			return fmt.Errorf("encode signature box: %w", err)
		}
		box = encoded
	}

	var raw []byte
	if len(record.RawResponse) > 0 {
		raw = record.RawResponse
	}

	affected, err := queries.ResolveClearanceRecord(ctx, generated.ResolveClearanceRecordParams{
		ID:                  record.ID,
		SourceAccountID:     stringPtrToText(record.SourceAccountID),
		OcrHandle:           record.OCRHandle,
		PayeeName:           record.PayeeName,
		Amount:              decimalPtrToNumeric(record.Amount),
		ChequeDate:          timePtrToPgDate(record.ChequeDate),
		ChequeDateRaw:       record.ChequeDateRaw,
		SourceAccountNumber: record.SourceAccountNumber,
		RoutingCode:         record.RoutingCode,
		ChequeNumber:        record.ChequeNumber,
		BankName:            record.BankName,
		SignatureBox:        box,
		SignatureSimilarity: float64PtrToFloat8(record.SignatureSimilarity),
		RawResponse:         raw,
		Status:              string(record.Status),
		Attempts:            int32(record.Attempts),
		LastError:           record.LastError,
		UpdatedAt:           timeToPgTimestamptz(record.UpdatedAt),
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, err := queries.GetClearanceRecord(ctx, record.ID); errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrClearanceNotFound
		}
		return domain.ErrClearanceAlreadyResolved
	}

	return nil
}

// RecordAttempt stores the attempt counter and last error of a PENDING record.
func (r *ClearanceRepository) RecordAttempt(ctx context.Context, id string, attempts int, lastError string, updatedAt time.Time) error {
	return r.queries.RecordClearanceAttempt(ctx, generated.RecordClearanceAttemptParams{
		ID:        id,
		Attempts:  int32(attempts),
		LastError: lastError,
		UpdatedAt: timeToPgTimestamptz(updatedAt),
	})
}

func rowsToClearanceRecords(rows []generated.ClearanceRecord) []*domain.ClearanceRecord {
	records := make([]*domain.ClearanceRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, rowToClearanceRecord(row))
	}
	return records
}

func rowToClearanceRecord(row generated.ClearanceRecord) *domain.ClearanceRecord {
	var box *domain.BoundingBox
	if len(row.SignatureBox) > 0 {
		var b domain.BoundingBox
		if err := json.Unmarshal(row.SignatureBox, &b); err == nil {
			box = &b
		}
	}

	return &domain.ClearanceRecord{
		ID:                       row.ID,
		SourceAccountID:          textToStringPtr(row.SourceAccountID),
		DestinationAccountNumber: row.DestinationAccountNumber,
		ImageHandle:              row.ImageHandle,
		OCRHandle:                row.OcrHandle,
		PayeeName:                row.PayeeName,
		Amount:                   numericToDecimalPtr(row.Amount),
		ChequeDate:               pgDateToTimePtr(row.ChequeDate),
		ChequeDateRaw:            row.ChequeDateRaw,
		SourceAccountNumber:      row.SourceAccountNumber,
		RoutingCode:              row.RoutingCode,
		ChequeNumber:             row.ChequeNumber,
		BankName:                 row.BankName,
		SignatureBox:             box,
		SignatureSimilarity:      float8ToFloat64Ptr(row.SignatureSimilarity),
		RawResponse:              row.RawResponse,
		Status:                   domain.ClearanceStatus(row.Status),
		Attempts:                 int(row.Attempts),
		LastError:                row.LastError,
		ResubmittedFrom:          textToStringPtr(row.ResubmittedFrom),
		SubmittedAt:              row.SubmittedAt.Time,
		CreatedAt:                row.CreatedAt.Time,
		UpdatedAt:                row.UpdatedAt.Time,
	}
}
