// Package memory is an in-process BlobStore for development and tests.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/iho/chequer/internal/domain"
)

const scheme = "mem://"

// Store keeps blobs in a map. Handles look like mem://<key>.
type Store struct {
	mu    sync.RWMutex
	blobs map[string]blob
}

type blob struct {
	data        []byte
	contentType string
}

// New creates an empty Store.
func New() *Store {
	return &Store{blobs: make(map[string]blob)}
}

// Put stores a copy of data under key.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blobs[key]; ok {
		return "", domain.ErrBlobExists
	}
	s.blobs[key] = blob{data: append([]byte(nil), data...), contentType: contentType}
	return s.HandleFor(key), nil
}

// Get returns the bytes behind handle.
func (s *Store) Get(ctx context.Context, handle string) ([]byte, error) {
	key, ok := strings.CutPrefix(handle, scheme)
	if !ok {
		return nil, domain.ErrBlobNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.blobs[key]
	if !ok {
		return nil, domain.ErrBlobNotFound
	}
	return append([]byte(nil), b.data...), nil
}

// Exists reports whether handle points at a stored blob.
func (s *Store) Exists(ctx context.Context, handle string) (bool, error) {
	key, ok := strings.CutPrefix(handle, scheme)
	if !ok {
		return false, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok = s.blobs[key]
	return ok, nil
}

// HandleFor returns the handle for key.
func (s *Store) HandleFor(key string) string {
	return scheme + key
}
