package vision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/iho/chequer/internal/domain"
	"github.com/iho/chequer/internal/usecase"
)

var tracer = otel.Tracer("github.com/iho/chequer/internal/infrastructure/vision")

const embeddingCachePrefix = "embedding:"

// Verifier implements usecase.SignatureVerifier on top of a blob store and an
// embedder. Reference embeddings are cached when a cache is configured.
type Verifier struct {
	blobs    usecase.BlobStore
	embedder usecase.Embedder
	cache    usecase.Cache
	cacheTTL time.Duration
	logger   zerolog.Logger
}

// NewVerifier creates a Verifier. cache may be nil.
func NewVerifier(blobs usecase.BlobStore, embedder usecase.Embedder, cache usecase.Cache, cacheTTL time.Duration, logger zerolog.Logger) *Verifier {
	return &Verifier{
		blobs:    blobs,
		embedder: embedder,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// Similarity scores the signature inside box on the cheque against the reference
// signature image. Undecodable images yield domain.ErrInvalidImage.
func (v *Verifier) Similarity(ctx context.Context, referenceHandle, chequeHandle string, box domain.BoundingBox) (float64, error) {
	if err := box.Validate(); err != nil {
		return 0, err
	}

	reference, err := v.referenceEmbedding(ctx, referenceHandle)
	if err != nil {
		return 0, fmt.Errorf("reference signature: %w", err)
	}

	data, err := v.blobs.Get(ctx, chequeHandle)
	if err != nil {
		return 0, fmt.Errorf("load cheque image: %w", err)
	}
	cheque, err := Decode(data)
	if err != nil {
		return 0, err
	}
	crop, err := Crop(cheque, box)
	if err != nil {
		return 0, err
	}
	candidate, err := v.embed(ctx, crop, "cheque")
	if err != nil {
		return 0, err
	}

	score, err := Cosine(reference, candidate)
	if errors.Is(err, ErrDimensionMismatch) {
		// A stale cached vector from a different embedder size; drop it.
		v.evict(ctx, referenceHandle)
	}
	return score, err
}

func (v *Verifier) referenceEmbedding(ctx context.Context, handle string) ([]float64, error) {
	key := embeddingCachePrefix + handle

	if v.cache != nil {
		cached, err := v.cache.Get(ctx, key)
		switch {
		case err == nil:
			var vec []float64
			if jsonErr := json.Unmarshal(cached, &vec); jsonErr == nil {
				return vec, nil
			}
		case !errors.Is(err, domain.ErrCacheMiss):
			v.logger.Warn().Err(err).Str("handle", handle).Msg("embedding cache read failed")
		}
	}

	data, err := v.blobs.Get(ctx, handle)
	if err != nil {
		return nil, err
	}
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	vec, err := v.embed(ctx, img, "reference")
	if err != nil {
		return nil, err
	}

	if v.cache != nil {
		encoded, _ := json.Marshal(vec)
		if err := v.cache.Set(ctx, key, encoded, v.cacheTTL); err != nil {
			v.logger.Warn().Err(err).Str("handle", handle).Msg("embedding cache write failed")
		}
	}
	return vec, nil
}

func (v *Verifier) embed(ctx context.Context, img image.Image, kind string) ([]float64, error) {
	ctx, span := tracer.Start(ctx, "signature.embed")
	span.SetAttributes(attribute.String("signature.kind", kind))
	defer span.End()

	vec, err := v.embedder.Embed(ctx, img)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("embed %s signature: %w", kind, err)
	}
	return vec, nil
}

func (v *Verifier) evict(ctx context.Context, handle string) {
	if v.cache == nil {
		return
	}
	if err := v.cache.Delete(ctx, embeddingCachePrefix+handle); err != nil {
		v.logger.Warn().Err(err).Str("handle", handle).Msg("embedding cache evict failed")
	}
}
