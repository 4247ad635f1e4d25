package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running transactions from blocking tables
	DefaultTransactionTimeout = 10 * time.Second

	// DefaultSignatureThreshold is the minimum similarity accepted as a signature match.
	DefaultSignatureThreshold = 0.75

	// SignatureKeyPrefix and ChequeKeyPrefix namespace blob keys.
	SignatureKeyPrefix = "signatures/"
	ChequeKeyPrefix    = "cheques/"
	OCRKeyPrefix       = "ocr/"

	// RecoveryBatchSize bounds how many pending records are re-enqueued per page on startup.
	RecoveryBatchSize = 500
)
