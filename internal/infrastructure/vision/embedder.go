package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"time"
)

// PixelEmbedder embeds a signature as the ink density of its normalized pixels.
// It needs no model and is the default backend.
type PixelEmbedder struct {
	Size int
}

// NewPixelEmbedder creates a PixelEmbedder producing size*size vectors.
func NewPixelEmbedder(size int) *PixelEmbedder {
	if size <= 0 {
		size = DefaultSize
	}
	return &PixelEmbedder{Size: size}
}

// Embed implements usecase.Embedder.
func (e *PixelEmbedder) Embed(ctx context.Context, img image.Image) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	gray := Normalize(img, e.Size)
	vec := make([]float64, 0, e.Size*e.Size)
	for y := 0; y < e.Size; y++ {
		for x := 0; x < e.Size; x++ {
			// Ink is dark, so background pixels contribute nothing.
			vec = append(vec, 1-float64(gray.GrayAt(x, y).Y)/255)
		}
	}
	return vec, nil
}

// HTTPEmbedder delegates embedding to an external model service. The normalized
// image is posted as PNG and the service answers {"embedding": [...]}.
type HTTPEmbedder struct {
	url    string
	size   int
	client *http.Client
}

// NewHTTPEmbedder creates an HTTPEmbedder for the service at url.
func NewHTTPEmbedder(url string, size int, timeout time.Duration) *HTTPEmbedder {
	if size <= 0 {
		size = DefaultSize
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPEmbedder{
		url:    url,
		size:   size,
		client: &http.Client{Timeout: timeout},
	}
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed implements usecase.Embedder.
func (e *HTTPEmbedder) Embed(ctx context.Context, img image.Image) ([]float64, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, Normalize(img, e.size)); err != nil {
		return nil, fmt.Errorf("encode signature: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "image/png")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedding service returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode embedding: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, errors.New("embedding service returned an empty vector")
	}
	return out.Embedding, nil
}
