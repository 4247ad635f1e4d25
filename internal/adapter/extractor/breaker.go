// Package extractor holds decorators shared by document extractor backends.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/iho/chequer/internal/domain"
	"github.com/iho/chequer/internal/infrastructure/metrics"
	"github.com/iho/chequer/internal/usecase"
)

// BreakerConfig tunes the circuit breaker around an extractor.
type BreakerConfig struct {
	Name                string
	MaxRequests         uint32        // trial requests allowed while half-open
	Interval            time.Duration // closed-state counter reset period
	Timeout             time.Duration // open-state duration before probing
	ConsecutiveFailures uint32
}

// Breaker stops calling a failing extraction service for a while. Permanent
// extraction errors describe the document, not the service, and do not trip it.
type Breaker struct {
	next    usecase.Extractor
	cb      *gobreaker.CircuitBreaker
	metrics *metrics.Metrics
}

// NewBreaker wraps next with a circuit breaker. m may be nil.
func NewBreaker(next usecase.Extractor, cfg BreakerConfig, m *metrics.Metrics, logger zerolog.Logger) *Breaker {
	if cfg.Name == "" {
		cfg.Name = "extractor"
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	b := &Breaker{next: next, metrics: m}
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("extractor circuit breaker changed state")
			m.SetBreakerState(name, int(to))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !domain.IsRetryableExtraction(err)
		},
	})
	m.SetBreakerState(cfg.Name, int(gobreaker.StateClosed))
	return b
}

// Extract implements usecase.Extractor.
func (b *Breaker) Extract(ctx context.Context, imageHandle string) (*domain.ExtractedFields, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Extract(ctx, imageHandle)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, domain.NewTransientExtractionError(fmt.Errorf("extraction service unavailable: %w", err))
	}
	if err != nil {
		return nil, err
	}
	return result.(*domain.ExtractedFields), nil
}

// State reports the breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
