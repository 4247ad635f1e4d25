package usecase

import (
	"context"
	"image"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/chequer/internal/domain"
)

// AccountRepository defines data access for accounts.
type AccountRepository interface {
	Create(ctx context.Context, tx Transaction, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByNumber(ctx context.Context, number string) (*domain.Account, error)
	GetByNumbersForUpdate(ctx context.Context, tx Transaction, numbers []string) ([]*domain.Account, error)
	UpdateBalance(ctx context.Context, tx Transaction, id string, balance decimal.Decimal, updatedAt time.Time) error
	List(ctx context.Context, limit, offset int) ([]*domain.Account, error)
}

// ClearanceFilter narrows a clearance record listing.
type ClearanceFilter struct {
	Status *domain.ClearanceStatus
	Limit  int
	Offset int
}

// ClearanceRepository defines data access for clearance records.
type ClearanceRepository interface {
	Create(ctx context.Context, tx Transaction, record *domain.ClearanceRecord) error
	GetByID(ctx context.Context, id string) (*domain.ClearanceRecord, error)
	List(ctx context.Context, filter ClearanceFilter) ([]*domain.ClearanceRecord, error)
	ListPending(ctx context.Context, limit int) ([]*domain.ClearanceRecord, error)
	// Resolve writes the record's terminal state. It only succeeds while the stored
	// record is still PENDING and returns domain.ErrClearanceAlreadyResolved otherwise.
	Resolve(ctx context.Context, tx Transaction, record *domain.ClearanceRecord) error
	RecordAttempt(ctx context.Context, id string, attempts int, lastError string, updatedAt time.Time) error
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	GetByAggregate(ctx context.Context, aggregateType, aggregateID string, limit, offset int) ([]*domain.OutboxEvent, error)
	DeletePublished(ctx context.Context, before time.Time) error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Cache defines caching operations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release forgets key so the request can be retried.
	Release(ctx context.Context, key string) error
}

// BlobStore stores cheque images, reference signatures and OCR artifacts.
type BlobStore interface {
	// Put uploads data under key and returns a stable handle. It fails with
	// domain.ErrBlobExists when the key is already taken.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// Get returns the raw bytes behind handle or domain.ErrBlobNotFound.
	Get(ctx context.Context, handle string) ([]byte, error)
	Exists(ctx context.Context, handle string) (bool, error)
	// HandleFor returns the handle Put would return for key.
	HandleFor(key string) string
}

// Extractor turns a cheque image into structured fields. Implementations must be
// idempotent for a given handle and return *domain.ExtractionError on failure.
type Extractor interface {
	Extract(ctx context.Context, imageHandle string) (*domain.ExtractedFields, error)
}

// Embedder maps a normalized signature image to a fixed-length feature vector.
type Embedder interface {
	Embed(ctx context.Context, img image.Image) ([]float64, error)
}

// SignatureVerifier scores a cheque's signature region against a reference signature.
type SignatureVerifier interface {
	Similarity(ctx context.Context, referenceHandle, chequeHandle string, box domain.BoundingBox) (float64, error)
}

// ClearanceQueue is the in-memory FIFO between submission and the worker.
type ClearanceQueue interface {
	Enqueue(item domain.QueueItem) bool
	Snapshot() []domain.QueueItem
}

// Locker provides a mutual-exclusion lock keyed by name.
type Locker interface {
	// Acquire takes the lock and returns a release function.
	Acquire(ctx context.Context, key string) (func(context.Context) error, error)
}

// Retrier re-runs an operation on transient storage conflicts.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}
