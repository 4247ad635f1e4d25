package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// Transient PostgreSQL error codes. Concurrent cheques against one source account
// contend on the same row lock, so these show up under load.
const (
	pgErrDeadlock             = "40P01"
	pgErrSerializationFailure = "40001"
	pgErrLockNotAvailable     = "55P03"
)

// RetrierConfig bounds how long a conflicting transaction is retried.
type RetrierConfig struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

// DefaultRetrierConfig suits short ledger transactions.
func DefaultRetrierConfig() RetrierConfig {
	return RetrierConfig{
		MaxRetries:      3,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     time.Second,
		MaxElapsedTime:  10 * time.Second,
	}
}

// Retrier implements usecase.Retrier for lock conflicts.
type Retrier struct {
	cfg    RetrierConfig
	logger zerolog.Logger
}

// NewRetrier creates a Retrier with DefaultRetrierConfig.
func NewRetrier(logger zerolog.Logger) *Retrier {
	return NewRetrierWithConfig(DefaultRetrierConfig(), logger)
}

// NewRetrierWithConfig creates a Retrier with explicit limits.
func NewRetrierWithConfig(cfg RetrierConfig, logger zerolog.Logger) *Retrier {
	return &Retrier{
		cfg:    cfg,
		logger: logger.With().Str("component", "retrier").Logger(),
	}
}

// Retry runs operation until it succeeds, fails with a non-conflict error or the
// retry budget is spent. The last error is returned unchanged.
func (r *Retrier) Retry(ctx context.Context, operation func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialInterval
	b.MaxInterval = r.cfg.MaxInterval
	b.MaxElapsedTime = r.cfg.MaxElapsedTime

	op := func() error {
		err := operation()
		if err != nil && !isRetryableError(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, next time.Duration) {
		r.logger.Warn().
			Err(err).
			Dur("retry_in", next).
			Msg("database conflict, retrying")
	}

	return backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(b, r.cfg.MaxRetries), ctx), notify)
}

func isRetryableError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgErrDeadlock, pgErrSerializationFailure, pgErrLockNotAvailable:
		return true
	default:
		return false
	}
}
