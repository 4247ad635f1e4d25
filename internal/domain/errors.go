package domain

import (
	"errors"
	"fmt"
)

var (
	// Account errors
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountExists        = errors.New("account already exists")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrNegativeBalance      = errors.New("opening balance must not be negative")
	ErrInvalidAccountNumber = errors.New("invalid account number")

	// Transfer errors
	ErrSameAccount   = errors.New("cannot transfer to same account")
	ErrInvalidAmount = errors.New("amount must be positive")

	// Clearance errors
	ErrClearanceNotFound         = errors.New("clearance record not found")
	ErrClearanceAlreadyResolved  = errors.New("clearance record already resolved")
	ErrClearanceNotResubmittable = errors.New("clearance record cannot be resubmitted")
	ErrInvalidClearanceStatus    = errors.New("invalid clearance status")

	// Storage errors
	ErrBlobNotFound = errors.New("blob not found")
	ErrBlobExists   = errors.New("blob already exists")
	ErrCacheMiss    = errors.New("cache miss")

	// Image errors
	ErrInvalidImage       = errors.New("invalid image")
	ErrInvalidBoundingBox = errors.New("invalid bounding box")
)

// ExtractionError is returned by a document extractor. Retryable marks transient
// failures (throttling, network) that the worker may retry. Fields holds whatever
// was read before the document was rejected, or nil.
type ExtractionError struct {
	Retryable bool
	Err       error
	Fields    *ExtractedFields
}

func (e *ExtractionError) Error() string {
	if e.Retryable {
		return fmt.Sprintf("extraction failed (transient): %v", e.Err)
	}
	return fmt.Sprintf("extraction failed: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// NewPermanentExtractionError wraps err as a non-retryable extraction failure.
func NewPermanentExtractionError(err error) *ExtractionError {
	return &ExtractionError{Err: err}
}

// NewIncompleteExtractionError rejects a document that was read but failed
// validation, keeping the fields for audit.
func NewIncompleteExtractionError(err error, fields *ExtractedFields) *ExtractionError {
	return &ExtractionError{Err: err, Fields: fields}
}

// NewTransientExtractionError wraps err as a retryable extraction failure.
func NewTransientExtractionError(err error) *ExtractionError {
	return &ExtractionError{Retryable: true, Err: err}
}

// IsRetryableExtraction reports whether err is a transient extraction failure.
func IsRetryableExtraction(err error) bool {
	var extractionErr *ExtractionError
	if errors.As(err, &extractionErr) {
		return extractionErr.Retryable
	}
	return false
}

// PartialFields returns the fields carried by an extraction error, or nil.
func PartialFields(err error) *ExtractedFields {
	var extractionErr *ExtractionError
	if errors.As(err, &extractionErr) {
		return extractionErr.Fields
	}
	return nil
}
