package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ClearanceStatus is the state of a clearance record.
type ClearanceStatus string

const (
	ClearanceStatusPending             ClearanceStatus = "PENDING"
	ClearanceStatusFromAccountNotFound ClearanceStatus = "FROM_ACCOUNT_NOT_FOUND"
	ClearanceStatusToAccountNotFound   ClearanceStatus = "TO_ACCOUNT_NOT_FOUND"
	ClearanceStatusPayeeNameMismatch   ClearanceStatus = "PAYEE_NAME_MISMATCH"
	ClearanceStatusSignatureMismatch   ClearanceStatus = "SIGNATURE_MISMATCH"
	ClearanceStatusCleared             ClearanceStatus = "CLEARED"

	// Financial failures reported by the ledger.
	ClearanceStatusInsufficientFunds ClearanceStatus = "INSUFFICIENT_FUNDS"
	ClearanceStatusLedgerRejected    ClearanceStatus = "LEDGER_REJECTED"

	// Operational failure parked after bounded retries.
	ClearanceStatusExtractionFailed ClearanceStatus = "EXTRACTION_FAILED"
)

var terminalStatuses = map[ClearanceStatus]bool{
	ClearanceStatusFromAccountNotFound: true,
	ClearanceStatusToAccountNotFound:   true,
	ClearanceStatusPayeeNameMismatch:   true,
	ClearanceStatusSignatureMismatch:   true,
	ClearanceStatusCleared:             true,
	ClearanceStatusInsufficientFunds:   true,
	ClearanceStatusLedgerRejected:      true,
	ClearanceStatusExtractionFailed:    true,
}

// IsValid reports whether s is a known status.
func (s ClearanceStatus) IsValid() bool {
	return s == ClearanceStatusPending || terminalStatuses[s]
}

// IsTerminal reports whether s is a final outcome.
func (s ClearanceStatus) IsTerminal() bool {
	return terminalStatuses[s]
}

// IsFinancialFailure reports whether s was produced by the ledger refusing the transfer.
func (s ClearanceStatus) IsFinancialFailure() bool {
	return s == ClearanceStatusInsufficientFunds || s == ClearanceStatusLedgerRejected
}

// BoundingBox is a region expressed as fractions of the full image dimensions.
type BoundingBox struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Validate checks that the box is non-empty and inside the unit square.
func (b BoundingBox) Validate() error {
	if b.Width <= 0 || b.Height <= 0 {
		return ErrInvalidBoundingBox
	}
	if b.Left < 0 || b.Top < 0 || b.Left+b.Width > 1.0001 || b.Top+b.Height > 1.0001 {
		return ErrInvalidBoundingBox
	}
	return nil
}

// ExtractedFields is the structured content read from a cheque image.
type ExtractedFields struct {
	PayeeName           string          `json:"payee_name"`
	Amount              decimal.Decimal `json:"amount"`
	ChequeDate          *time.Time      `json:"cheque_date,omitempty"`
	ChequeDateRaw       string          `json:"cheque_date_raw"`
	SourceAccountNumber string          `json:"source_account_number"`
	RoutingCode         string          `json:"routing_code"`
	ChequeNumber        string          `json:"cheque_number"`
	BankName            string          `json:"bank_name"`
	SignatureBox        *BoundingBox    `json:"signature_box,omitempty"`
	RawResponse         json.RawMessage `json:"-"`
}

// Validate checks the invariants an extractor must guarantee.
func (f *ExtractedFields) Validate() error {
	if f.Amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	if f.SignatureBox != nil {
		return f.SignatureBox.Validate()
	}
	return nil
}

// ClearanceRequest is a submitted cheque awaiting processing.
type ClearanceRequest struct {
	ImageHandle              string
	DestinationAccountNumber string
	SubmittedAt              time.Time
}

// QueueItem is an entry of the intake queue.
type QueueItem struct {
	RecordID   string
	Request    ClearanceRequest
	Status     ClearanceStatus
	EnqueuedAt time.Time
}

// ClearanceRecord is the durable outcome of one clearance request.
type ClearanceRecord struct {
	ID                       string
	SourceAccountID          *string
	DestinationAccountNumber string
	ImageHandle              string
	OCRHandle                string
	PayeeName                string
	Amount                   *decimal.Decimal
	ChequeDate               *time.Time
	ChequeDateRaw            string
	SourceAccountNumber      string
	RoutingCode              string
	ChequeNumber             string
	BankName                 string
	SignatureBox             *BoundingBox
	SignatureSimilarity      *float64
	RawResponse              json.RawMessage
	Status                   ClearanceStatus
	Attempts                 int
	LastError                string
	ResubmittedFrom          *string
	SubmittedAt              time.Time
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// NewClearanceRecord creates a pending record for req.
func NewClearanceRecord(id string, req ClearanceRequest, now time.Time) *ClearanceRecord {
	return &ClearanceRecord{
		ID:                       id,
		DestinationAccountNumber: req.DestinationAccountNumber,
		ImageHandle:              req.ImageHandle,
		Status:                   ClearanceStatusPending,
		SubmittedAt:              req.SubmittedAt,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
}

// Request returns the clearance request the record was created from.
func (r *ClearanceRecord) Request() ClearanceRequest {
	return ClearanceRequest{
		ImageHandle:              r.ImageHandle,
		DestinationAccountNumber: r.DestinationAccountNumber,
		SubmittedAt:              r.SubmittedAt,
	}
}

// ApplyExtraction copies every extracted field onto the record.
func (r *ClearanceRecord) ApplyExtraction(f *ExtractedFields) {
	amount := f.Amount
	r.PayeeName = f.PayeeName
	r.Amount = &amount
	r.ChequeDate = f.ChequeDate
	r.ChequeDateRaw = f.ChequeDateRaw
	r.SourceAccountNumber = f.SourceAccountNumber
	r.RoutingCode = f.RoutingCode
	r.ChequeNumber = f.ChequeNumber
	r.BankName = f.BankName
	r.SignatureBox = f.SignatureBox
	r.RawResponse = f.RawResponse
}
