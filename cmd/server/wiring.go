package main

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/rs/zerolog"

	"github.com/iho/chequer/internal/adapter/extractor"
	"github.com/iho/chequer/internal/adapter/extractor/textract"
	"github.com/iho/chequer/internal/adapter/storage/memory"
	"github.com/iho/chequer/internal/adapter/storage/s3"
	"github.com/iho/chequer/internal/infrastructure/config"
	"github.com/iho/chequer/internal/infrastructure/eventpublisher"
	"github.com/iho/chequer/internal/infrastructure/metrics"
	"github.com/iho/chequer/internal/infrastructure/vision"
	"github.com/iho/chequer/internal/usecase"
)

func newBlobStore(ctx context.Context, cfg *config.Config) (usecase.BlobStore, error) {
	switch cfg.StorageBackend {
	case "memory":
		return memory.New(), nil
	case "s3":
		client, err := s3.NewClient(ctx, cfg.AWSRegion, cfg.S3Endpoint)
		if err != nil {
			return nil, err
		}
		return s3.New(client, cfg.S3Bucket), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func newExtractor(ctx context.Context, cfg *config.Config, blobs usecase.BlobStore) (usecase.Extractor, error) {
	switch cfg.ExtractorBackend {
	case "textract":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return textract.NewFromConfig(awsCfg, blobs), nil
	default:
		return nil, fmt.Errorf("unknown extractor backend %q", cfg.ExtractorBackend)
	}
}

func newBreaker(next usecase.Extractor, cfg *config.Config, m *metrics.Metrics, logger zerolog.Logger) *extractor.Breaker {
	return extractor.NewBreaker(next, extractor.BreakerConfig{
		Name:                "extractor-" + cfg.ExtractorBackend,
		MaxRequests:         cfg.BreakerMaxRequests,
		Interval:            cfg.BreakerInterval,
		Timeout:             cfg.BreakerTimeout,
		ConsecutiveFailures: cfg.BreakerConsecutiveFailures,
	}, m, logger)
}

func newEmbedder(cfg *config.Config) (usecase.Embedder, error) {
	switch cfg.EmbedderBackend {
	case "pixel":
		return vision.NewPixelEmbedder(cfg.SignatureSize), nil
	case "http":
		if cfg.EmbedderURL == "" {
			return nil, fmt.Errorf("EMBEDDER_URL is required for the http embedder")
		}
		return vision.NewHTTPEmbedder(cfg.EmbedderURL, cfg.SignatureSize, cfg.EmbedderTimeout), nil
	default:
		return nil, fmt.Errorf("unknown embedder backend %q", cfg.EmbedderBackend)
	}
}

// newEventPublisher relays outbox events to Kafka, or to the log when no
// brokers are configured. The returned func closes the sink.
func newEventPublisher(cfg *config.Config, outbox usecase.OutboxRepository, m *metrics.Metrics, logger zerolog.Logger) (*eventpublisher.EventPublisher, func() error) {
	var (
		sink    eventpublisher.Publisher
		closeFn = func() error { return nil }
	)

	if len(cfg.KafkaBrokers) > 0 {
		kafka := eventpublisher.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		sink, closeFn = kafka, kafka.Close
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing events to kafka")
	} else {
		sink = eventpublisher.NewLogPublisher(logger)
	}

	return eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: outbox,
		Publisher:  sink,
		Metrics:    m,
		Logger:     logger,
		BatchSize:  cfg.OutboxBatchSize,
		Interval:   cfg.OutboxInterval,
	}), closeFn
}
