// Package worker drains the intake queue: one clearance request at a time it
// runs document extraction, hands the fields to the resolver and records the
// outcome. A failing item never stops the loop.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/iho/chequer/internal/domain"
	"github.com/iho/chequer/internal/infrastructure/metrics"
	"github.com/iho/chequer/internal/usecase"
)

var tracer = otel.Tracer("github.com/iho/chequer/internal/worker")

// Queue is the scheduling side of the intake queue.
type Queue interface {
	Enqueue(item domain.QueueItem) bool
	Dequeue(ctx context.Context, idleWait time.Duration) (domain.QueueItem, bool)
	Len() int
}

// Resolver decides and persists the terminal status of a record.
type Resolver interface {
	Resolve(ctx context.Context, record *domain.ClearanceRecord, fields *domain.ExtractedFields) (*domain.ClearanceRecord, error)
	Park(ctx context.Context, record *domain.ClearanceRecord, attempts int, cause error) (*domain.ClearanceRecord, error)
}

// Config tunes the worker loop.
type Config struct {
	IdleWait        time.Duration // bounded wait when the queue is empty
	MaxAttempts     int           // extraction and resolution attempts before parking
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	RecoverInterval time.Duration // how often PENDING records are re-scheduled
}

func (c *Config) withDefaults() {
	if c.IdleWait <= 0 {
		c.IdleWait = time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
	if c.RecoverInterval <= 0 {
		c.RecoverInterval = time.Minute
	}
}

// Worker is the single consumer of the intake queue.
type Worker struct {
	cfg           Config
	queue         Queue
	clearanceRepo usecase.ClearanceRepository
	extractor     usecase.Extractor
	resolver      Resolver
	blobs         usecase.BlobStore
	locker        usecase.Locker
	metrics       *metrics.Metrics
	logger        zerolog.Logger
}

// Option configures optional worker collaborators.
type Option func(*Worker)

// WithLocker serializes processing of a record across replicas.
func WithLocker(l usecase.Locker) Option {
	return func(w *Worker) { w.locker = l }
}

// WithMetrics records worker metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

// WithLogger sets the worker logger.
func WithLogger(l zerolog.Logger) Option {
	return func(w *Worker) { w.logger = l }
}

// New creates a Worker.
func New(
	cfg Config,
	queue Queue,
	clearanceRepo usecase.ClearanceRepository,
	extractor usecase.Extractor,
	resolver Resolver,
	blobs usecase.BlobStore,
	opts ...Option,
) *Worker {
	cfg.withDefaults()
	w := &Worker{
		cfg:           cfg,
		queue:         queue,
		clearanceRepo: clearanceRepo,
		extractor:     extractor,
		resolver:      resolver,
		blobs:         blobs,
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run re-schedules PENDING records and then processes the queue until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().
		Dur("idle_wait", w.cfg.IdleWait).
		Int("max_attempts", w.cfg.MaxAttempts).
		Msg("clearance worker started")

	if _, err := w.Recover(ctx); err != nil {
		w.logger.Error().Err(err).Msg("failed to recover pending clearances")
	}
	lastRecover := time.Now()

	for {
		if ctx.Err() != nil {
			w.logger.Info().Msg("clearance worker shutting down")
			return ctx.Err()
		}

		if time.Since(lastRecover) >= w.cfg.RecoverInterval {
			if _, err := w.Recover(ctx); err != nil {
				w.logger.Error().Err(err).Msg("failed to recover pending clearances")
			}
			lastRecover = time.Now()
		}

		item, ok := w.queue.Dequeue(ctx, w.cfg.IdleWait)
		w.metrics.SetQueueDepth(w.queue.Len())
		if !ok {
			continue
		}

		w.ProcessItem(ctx, item)
	}
}

// Recover enqueues PENDING records, oldest first. The queue skips records that
// are already waiting. It returns the number of newly scheduled records.
func (w *Worker) Recover(ctx context.Context) (int, error) {
	records, err := w.clearanceRepo.ListPending(ctx, usecase.RecoveryBatchSize)
	if err != nil {
		return 0, err
	}

	scheduled := 0
	for _, r := range records {
		if w.queue.Enqueue(domain.QueueItem{
			RecordID:   r.ID,
			Request:    r.Request(),
			Status:     domain.ClearanceStatusPending,
			EnqueuedAt: time.Now().UTC(),
		}) {
			scheduled++
		}
	}

	if scheduled > 0 {
		w.logger.Info().Int("count", scheduled).Msg("re-scheduled pending clearances")
	}
	w.metrics.SetQueueDepth(w.queue.Len())
	return scheduled, nil
}

// ProcessItem drives one request to a terminal status. It never panics and never
// returns an error: failures are logged and recorded against the item's record.
// A panic parks the record, so a crashing item is not re-scheduled forever.
func (w *Worker) ProcessItem(ctx context.Context, item domain.QueueItem) {
	start := time.Now()
	log := w.logger.With().Str("record_id", item.RecordID).Logger()

	ctx, span := tracer.Start(ctx, "clearance.process")
	span.SetAttributes(attribute.String("clearance.id", item.RecordID))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			w.metrics.WorkerPanic()
			span.SetStatus(codes.Error, "panic")
			log.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("panic while processing clearance")
			w.parkAfterPanic(context.WithoutCancel(ctx), item.RecordID, r, start)
		}
	}()

	if w.locker != nil {
		release, err := w.locker.Acquire(ctx, "clearance:"+item.RecordID)
		if err != nil {
			// Another replica holds the record; its own sweep or ours will pick it up.
			log.Warn().Err(err).Msg("clearance is locked elsewhere, skipping")
			return
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				log.Warn().Err(err).Msg("failed to release clearance lock")
			}
		}()
	}

	record, err := w.clearanceRepo.GetByID(ctx, item.RecordID)
	if errors.Is(err, domain.ErrClearanceNotFound) {
		log.Error().Msg("dead letter: queued clearance has no record")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to load clearance record")
		return
	}
	if record.Status != domain.ClearanceStatusPending {
		log.Debug().Str("status", string(record.Status)).Msg("clearance already resolved, skipping")
		return
	}

	outcome, attempts, err := w.clear(ctx, record)
	if err != nil {
		if ctx.Err() != nil {
			log.Warn().Err(err).Msg("shutdown interrupted clearance; it stays pending")
			return
		}

		span.RecordError(err)
		parked, parkErr := w.resolver.Park(ctx, outcomeOr(outcome, record), attempts, err)
		if errors.Is(parkErr, domain.ErrClearanceAlreadyResolved) {
			log.Info().Msg("clearance resolved concurrently, not parking")
			return
		}
		if parkErr != nil {
			log.Error().Err(parkErr).AnErr("cause", err).Msg("failed to park clearance")
			return
		}
		outcome = parked
	}

	elapsed := time.Since(start)
	w.metrics.ClearanceResolved(string(outcome.Status), elapsed)
	if outcome.SignatureSimilarity != nil {
		w.metrics.ObserveSignatureScore(*outcome.SignatureSimilarity)
	}
	if outcome.Status == domain.ClearanceStatusCleared && outcome.Amount != nil {
		w.metrics.TransferCompleted(outcome.Amount.InexactFloat64())
	}
	if outcome.Status.IsFinancialFailure() {
		w.metrics.TransferFailed(string(outcome.Status))
	}
	span.SetAttributes(attribute.String("clearance.status", string(outcome.Status)))

	log.Info().
		Str("status", string(outcome.Status)).
		Int("attempts", attempts).
		Dur("duration", elapsed).
		Msg("clearance processed")
}

// clear extracts, stores the OCR artifact and resolves. On error the returned
// record, when non-nil, carries whatever was extracted so a parked record keeps it.
func (w *Worker) clear(ctx context.Context, record *domain.ClearanceRecord) (*domain.ClearanceRecord, int, error) {
	fields, attempts, err := w.extract(ctx, record)
	if err != nil {
		return w.keepPartial(ctx, record, attempts, err), attempts, err
	}

	withFields := *record
	withFields.ApplyExtraction(fields)
	withFields.Attempts = attempts

	var outcome *domain.ClearanceRecord
	op := func() error {
		if withFields.OCRHandle == "" {
			handle, err := w.storeArtifact(ctx, &withFields, fields)
			if err != nil {
				return err
			}
			withFields.OCRHandle = handle
		}

		resolved, err := w.resolver.Resolve(ctx, &withFields, fields)
		if errors.Is(err, domain.ErrClearanceAlreadyResolved) {
			return backoff.Permanent(err)
		}
		if err != nil {
			return err
		}
		outcome = resolved
		return nil
	}

	notify := func(err error, next time.Duration) {
		w.logger.Warn().
			Err(err).
			Str("record_id", record.ID).
			Dur("retry_in", next).
			Msg("clearance resolution failed, retrying")
	}

	if err := backoff.RetryNotify(op, w.backoff(ctx), notify); err != nil {
		return &withFields, attempts, err
	}
	return outcome, attempts, nil
}

func (w *Worker) extract(ctx context.Context, record *domain.ClearanceRecord) (*domain.ExtractedFields, int, error) {
	ctx, span := tracer.Start(ctx, "document.extract")
	defer span.End()

	attempts := record.Attempts
	var fields *domain.ExtractedFields

	op := func() error {
		attempts++
		start := time.Now()

		f, err := w.extractor.Extract(ctx, record.ImageHandle)
		if err == nil {
			err = f.Validate()
			if err != nil {
				err = domain.NewIncompleteExtractionError(err, f)
			}
		}

		if err != nil {
			w.metrics.ExtractionAttempt("error", time.Since(start))
			var extractionErr *domain.ExtractionError
			if errors.As(err, &extractionErr) && !extractionErr.Retryable {
				return backoff.Permanent(err)
			}
			return err
		}

		w.metrics.ExtractionAttempt("ok", time.Since(start))
		fields = f
		return nil
	}

	notify := func(err error, next time.Duration) {
		w.logger.Warn().
			Err(err).
			Str("record_id", record.ID).
			Int("attempt", attempts).
			Dur("retry_in", next).
			Msg("extraction failed, retrying")
		if recErr := w.clearanceRepo.RecordAttempt(ctx, record.ID, attempts, err.Error(), time.Now().UTC()); recErr != nil {
			w.logger.Warn().Err(recErr).Str("record_id", record.ID).Msg("failed to record extraction attempt")
		}
	}

	if err := backoff.RetryNotify(op, w.backoff(ctx), notify); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, attempts, err
	}

	span.SetAttributes(attribute.Int("extraction.attempts", attempts))
	return fields, attempts, nil
}

// ocrArtifact is the audit bundle stored next to each record.
type ocrArtifact struct {
	RecordID    string                  `json:"record_id"`
	ImageHandle string                  `json:"image_handle"`
	Fields      *domain.ExtractedFields `json:"fields"`
	Raw         json.RawMessage         `json:"raw,omitempty"`
	ExtractedAt time.Time               `json:"extracted_at"`
}

func (w *Worker) storeArtifact(ctx context.Context, record *domain.ClearanceRecord, fields *domain.ExtractedFields) (string, error) {
	data, err := json.Marshal(ocrArtifact{
		RecordID:    record.ID,
		ImageHandle: record.ImageHandle,
		Fields:      fields,
		Raw:         fields.RawResponse,
		ExtractedAt: time.Now().UTC(),
	})
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("encode OCR artifact: %w", err))
	}

	key := usecase.OCRKeyPrefix + record.ID + ".json"
	handle, err := w.blobs.Put(ctx, key, data, "application/json")
	if errors.Is(err, domain.ErrBlobExists) {
		// Left behind by an earlier attempt on the same record.
		return w.blobs.HandleFor(key), nil
	}
	if err != nil {
		return "", fmt.Errorf("store OCR artifact: %w", err)
	}
	return handle, nil
}

// keepPartial returns a copy of record carrying the fields an extractor read
// before rejecting the document, with their OCR artifact stored, or nil when
// nothing was read.
func (w *Worker) keepPartial(ctx context.Context, record *domain.ClearanceRecord, attempts int, err error) *domain.ClearanceRecord {
	fields := domain.PartialFields(err)
	if fields == nil {
		return nil
	}

	partial := *record
	partial.ApplyExtraction(fields)
	partial.Attempts = attempts
	if partial.OCRHandle == "" {
		handle, storeErr := w.storeArtifact(ctx, &partial, fields)
		if storeErr != nil {
			w.logger.Warn().Err(storeErr).Str("record_id", record.ID).Msg("failed to store OCR artifact of rejected cheque")
		} else {
			partial.OCRHandle = handle
		}
	}
	return &partial
}

// parkAfterPanic marks the record EXTRACTION_FAILED with the panic as its reason.
func (w *Worker) parkAfterPanic(ctx context.Context, id string, cause any, start time.Time) {
	log := w.logger.With().Str("record_id", id).Logger()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("panic while parking clearance")
		}
	}()

	record, err := w.clearanceRepo.GetByID(ctx, id)
	if err != nil {
		log.Error().Err(err).Msg("failed to load clearance after panic")
		return
	}
	if record.Status != domain.ClearanceStatusPending {
		return
	}

	parked, err := w.resolver.Park(ctx, record, record.Attempts+1, fmt.Errorf("panic: %v", cause))
	if errors.Is(err, domain.ErrClearanceAlreadyResolved) {
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to park clearance after panic")
		return
	}
	w.metrics.ClearanceResolved(string(parked.Status), time.Since(start))
}

func (w *Worker) backoff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.cfg.InitialBackoff
	b.MaxInterval = w.cfg.MaxBackoff
	b.MaxElapsedTime = 0

	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(w.cfg.MaxAttempts-1)), ctx)
}

func outcomeOr(r, fallback *domain.ClearanceRecord) *domain.ClearanceRecord {
	if r != nil {
		return r
	}
	return fallback
}
