package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Clearance metrics
	ClearancesSubmitted prometheus.Counter
	ClearancesResolved  *prometheus.CounterVec
	ClearanceDuration   prometheus.Histogram
	QueueDepth          prometheus.Gauge
	WorkerPanics        prometheus.Counter

	// Extraction metrics
	ExtractionAttempts *prometheus.CounterVec
	ExtractionDuration prometheus.Histogram
	BreakerState       *prometheus.GaugeVec

	// Signature metrics
	SignatureScore prometheus.Histogram

	// Ledger metrics
	TransfersCompleted prometheus.Counter
	TransferAmount     prometheus.Histogram
	TransferErrors     *prometheus.CounterVec
	AccountsCreated    prometheus.Counter

	// Outbox metrics
	EventsPublished *prometheus.CounterVec

	// API metrics
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
	HTTPInFlight   prometheus.Gauge
	RateLimitHits  *prometheus.CounterVec
	IdempotentHits prometheus.Counter
}

// New creates all metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Clearance metrics
		ClearancesSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "chequer_clearances_submitted_total",
			Help: "Total number of clearance requests submitted",
		}),
		ClearancesResolved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chequer_clearances_resolved_total",
				Help: "Total number of clearance records resolved by terminal status",
			},
			[]string{"status"},
		),
		ClearanceDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "chequer_clearance_duration_seconds",
			Help:    "Time from dequeue to terminal status",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chequer_queue_depth",
			Help: "Number of clearance requests waiting in the intake queue",
		}),
		WorkerPanics: factory.NewCounter(prometheus.CounterOpts{
			Name: "chequer_worker_panics_total",
			Help: "Total number of recovered panics in the clearance worker",
		}),

		// Extraction metrics
		ExtractionAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chequer_extraction_attempts_total",
				Help: "Total document extraction attempts by outcome",
			},
			[]string{"outcome"},
		),
		ExtractionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "chequer_extraction_duration_seconds",
			Help:    "Duration of document extraction calls",
			Buckets: []float64{.25, .5, 1, 2, 4, 8, 16, 32},
		}),
		BreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chequer_circuit_breaker_state",
				Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"name"},
		),

		// Signature metrics
		SignatureScore: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "chequer_signature_similarity",
			Help:    "Signature similarity scores",
			Buckets: []float64{.1, .2, .3, .4, .5, .6, .7, .75, .8, .85, .9, .95, 1},
		}),

		// Ledger metrics
		TransfersCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "chequer_transfers_completed_total",
			Help: "Total number of ledger transfers committed",
		}),
		TransferAmount: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "chequer_transfer_amount",
			Help:    "Transfer amounts",
			Buckets: []float64{1, 10, 100, 1000, 10000, 100000, 1000000},
		}),
		TransferErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chequer_transfer_errors_total",
				Help: "Total number of transfer errors by type",
			},
			[]string{"error_type"},
		),
		AccountsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "chequer_accounts_created_total",
			Help: "Total number of accounts created",
		}),

		// Outbox metrics
		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chequer_events_published_total",
				Help: "Total outbox events published by result",
			},
			[]string{"event_type", "result"},
		),

		// API metrics
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chequer_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chequer_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chequer_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		}),
		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chequer_rate_limit_hits_total",
				Help: "Total rate limit hits",
			},
			[]string{"path"},
		),
		IdempotentHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "chequer_idempotent_replays_total",
			Help: "Total requests answered from the idempotency store",
		}),
	}
}

func (m *Metrics) ClearanceSubmitted() {
	if m == nil {
		return
	}
	m.ClearancesSubmitted.Inc()
}

func (m *Metrics) ClearanceResolved(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ClearancesResolved.WithLabelValues(status).Inc()
	m.ClearanceDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

func (m *Metrics) WorkerPanic() {
	if m == nil {
		return
	}
	m.WorkerPanics.Inc()
}

func (m *Metrics) ExtractionAttempt(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ExtractionAttempts.WithLabelValues(outcome).Inc()
	m.ExtractionDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(name).Set(float64(state))
}

func (m *Metrics) ObserveSignatureScore(score float64) {
	if m == nil {
		return
	}
	m.SignatureScore.Observe(score)
}

func (m *Metrics) TransferCompleted(amount float64) {
	if m == nil {
		return
	}
	m.TransfersCompleted.Inc()
	m.TransferAmount.Observe(amount)
}

func (m *Metrics) TransferFailed(errorType string) {
	if m == nil {
		return
	}
	m.TransferErrors.WithLabelValues(errorType).Inc()
}

func (m *Metrics) AccountCreated() {
	if m == nil {
		return
	}
	m.AccountsCreated.Inc()
}

func (m *Metrics) EventPublished(eventType string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.EventsPublished.WithLabelValues(eventType, result).Inc()
}

func (m *Metrics) RequestStarted() {
	if m == nil {
		return
	}
	m.HTTPInFlight.Inc()
}

func (m *Metrics) RequestFinished(method, path string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPInFlight.Dec()
	m.HTTPRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

func (m *Metrics) RateLimited(path string) {
	if m == nil {
		return
	}
	m.RateLimitHits.WithLabelValues(path).Inc()
}

func (m *Metrics) IdempotentReplay() {
	if m == nil {
		return
	}
	m.IdempotentHits.Inc()
}
