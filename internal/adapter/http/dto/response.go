package dto

import (
	"time"

	"github.com/iho/chequer/internal/domain"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// AccountResponse represents an account in API responses.
type AccountResponse struct {
	ID              string    `json:"id"`
	AccountNumber   string    `json:"account_number"`
	RoutingCode     string    `json:"routing_code"`
	HolderName      string    `json:"holder_name"`
	Email           string    `json:"email,omitempty"`
	Phone           string    `json:"phone,omitempty"`
	Balance         string    `json:"balance"`
	SignatureHandle string    `json:"signature_handle"`
	Version         int64     `json:"version"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// AccountFromDomain converts domain account to response.
func AccountFromDomain(a *domain.Account) *AccountResponse {
	return &AccountResponse{
		ID:              a.ID,
		AccountNumber:   a.AccountNumber,
		RoutingCode:     a.RoutingCode,
		HolderName:      a.HolderName,
		Email:           a.Email,
		Phone:           a.Phone,
		Balance:         a.Balance.String(),
		SignatureHandle: a.SignatureHandle,
		Version:         a.Version,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

// AccountsFromDomain converts domain accounts to responses.
func AccountsFromDomain(accounts []*domain.Account) []*AccountResponse {
	result := make([]*AccountResponse, len(accounts))
	for i, a := range accounts {
		result[i] = AccountFromDomain(a)
	}
	return result
}

// ListAccountsResponse represents a page of accounts.
type ListAccountsResponse struct {
	Accounts []*AccountResponse `json:"accounts"`
	Limit    int                `json:"limit"`
	Offset   int                `json:"offset"`
}

// SubmitClearanceResponse acknowledges a submission.
type SubmitClearanceResponse struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	ImageHandle string    `json:"image_handle"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// SubmitFromDomain converts a freshly created record.
func SubmitFromDomain(r *domain.ClearanceRecord) *SubmitClearanceResponse {
	return &SubmitClearanceResponse{
		ID:          r.ID,
		Status:      string(r.Status),
		ImageHandle: r.ImageHandle,
		SubmittedAt: r.SubmittedAt,
	}
}

// ClearanceResponse represents a clearance record in API responses.
type ClearanceResponse struct {
	ID                       string              `json:"id"`
	Status                   string              `json:"status"`
	DestinationAccountNumber string              `json:"to_account_number"`
	SourceAccountNumber      string              `json:"from_account_number,omitempty"`
	SourceAccountID          *string             `json:"from_account_id,omitempty"`
	ImageHandle              string              `json:"image_handle"`
	OCRHandle                string              `json:"ocr_handle,omitempty"`
	PayeeName                string              `json:"payee_name,omitempty"`
	Amount                   *string             `json:"amount,omitempty"`
	ChequeDate               *string             `json:"cheque_date,omitempty"`
	ChequeDateRaw            string              `json:"cheque_date_raw,omitempty"`
	RoutingCode              string              `json:"routing_code,omitempty"`
	ChequeNumber             string              `json:"cheque_number,omitempty"`
	BankName                 string              `json:"bank_name,omitempty"`
	SignatureBox             *domain.BoundingBox `json:"signature_box,omitempty"`
	SignatureSimilarity      *float64            `json:"signature_similarity,omitempty"`
	Attempts                 int                 `json:"attempts"`
	LastError                string              `json:"last_error,omitempty"`
	ResubmittedFrom          *string             `json:"resubmitted_from,omitempty"`
	SubmittedAt              time.Time           `json:"submitted_at"`
	UpdatedAt                time.Time           `json:"updated_at"`
}

// ClearanceFromDomain converts domain record to response.
func ClearanceFromDomain(r *domain.ClearanceRecord) *ClearanceResponse {
	resp := &ClearanceResponse{
		ID:                       r.ID,
		Status:                   string(r.Status),
		DestinationAccountNumber: r.DestinationAccountNumber,
		SourceAccountNumber:      r.SourceAccountNumber,
		SourceAccountID:          r.SourceAccountID,
		ImageHandle:              r.ImageHandle,
		OCRHandle:                r.OCRHandle,
		PayeeName:                r.PayeeName,
		ChequeDateRaw:            r.ChequeDateRaw,
		RoutingCode:              r.RoutingCode,
		ChequeNumber:             r.ChequeNumber,
		BankName:                 r.BankName,
		SignatureBox:             r.SignatureBox,
		SignatureSimilarity:      r.SignatureSimilarity,
		Attempts:                 r.Attempts,
		LastError:                r.LastError,
		ResubmittedFrom:          r.ResubmittedFrom,
		SubmittedAt:              r.SubmittedAt,
		UpdatedAt:                r.UpdatedAt,
	}
	if r.Amount != nil {
		amount := r.Amount.String()
		resp.Amount = &amount
	}
	if r.ChequeDate != nil {
		date := r.ChequeDate.Format("2006-01-02")
		resp.ChequeDate = &date
	}
	return resp
}

// ClearancesFromDomain converts domain records to responses.
func ClearancesFromDomain(records []*domain.ClearanceRecord) []*ClearanceResponse {
	result := make([]*ClearanceResponse, len(records))
	for i, r := range records {
		result[i] = ClearanceFromDomain(r)
	}
	return result
}

// ListClearancesResponse represents a page of clearance records.
type ListClearancesResponse struct {
	Clearances []*ClearanceResponse `json:"clearances"`
	Limit      int                  `json:"limit"`
	Offset     int                  `json:"offset"`
}

// QueueItemResponse represents a request waiting for the worker.
type QueueItemResponse struct {
	ID              string    `json:"id"`
	ImageHandle     string    `json:"image_handle"`
	ToAccountNumber string    `json:"to_account_number"`
	Status          string    `json:"status"`
	SubmittedAt     time.Time `json:"submitted_at"`
	EnqueuedAt      time.Time `json:"enqueued_at"`
}

// QueueFromDomain converts a queue snapshot, preserving FIFO order.
func QueueFromDomain(items []domain.QueueItem) []*QueueItemResponse {
	result := make([]*QueueItemResponse, len(items))
	for i, item := range items {
		result[i] = &QueueItemResponse{
			ID:              item.RecordID,
			ImageHandle:     item.Request.ImageHandle,
			ToAccountNumber: item.Request.DestinationAccountNumber,
			Status:          string(item.Status),
			SubmittedAt:     item.Request.SubmittedAt,
			EnqueuedAt:      item.EnqueuedAt,
		}
	}
	return result
}

// QueueResponse is the body of the queue endpoint.
type QueueResponse struct {
	Items []*QueueItemResponse `json:"items"`
	Total int                  `json:"total"`
}

// EventResponse represents one outbox event of a record's history.
type EventResponse struct {
	ID          string         `json:"id"`
	EventType   string         `json:"event_type"`
	Payload     map[string]any `json:"payload"`
	CreatedAt   time.Time      `json:"created_at"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
}

// EventsFromDomain converts outbox events to responses.
func EventsFromDomain(events []*domain.OutboxEvent) []*EventResponse {
	result := make([]*EventResponse, len(events))
	for i, e := range events {
		result[i] = &EventResponse{
			ID:          e.ID,
			EventType:   e.EventType,
			Payload:     e.Payload,
			CreatedAt:   e.CreatedAt,
			PublishedAt: e.PublishedAt,
		}
	}
	return result
}

// TransferResponse represents a completed manual transfer.
type TransferResponse struct {
	FromAccountNumber string    `json:"from_account_number"`
	ToAccountNumber   string    `json:"to_account_number"`
	Amount            string    `json:"amount"`
	FromBalance       string    `json:"from_balance"`
	ToBalance         string    `json:"to_balance"`
	CompletedAt       time.Time `json:"completed_at"`
}

// TransferFromDomain converts a ledger result to response.
func TransferFromDomain(t *domain.TransferResult) *TransferResponse {
	return &TransferResponse{
		FromAccountNumber: t.FromAccountNumber,
		ToAccountNumber:   t.ToAccountNumber,
		Amount:            t.Amount.String(),
		FromBalance:       t.FromBalance.String(),
		ToBalance:         t.ToBalance.String(),
		CompletedAt:       t.CompletedAt,
	}
}
