package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/chequer/internal/usecase/mocks"
)

func newIdempotency(store *mocks.MockIdempotencyStore) *IdempotencyMiddleware {
	return NewIdempotencyMiddleware(store, time.Hour, nil, zerolog.Nop())
}

func postWithKey(key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/clearances", bytes.NewBufferString(`{}`))
	req.Header.Set(IdempotencyKeyHeader, key)
	return req
}

func TestIdempotencyMiddleware_StoreErrorIs500(t *testing.T) {
	store := mocks.NewMockIdempotencyStore()
	store.CheckAndSetFunc = func(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
		return false, nil, context.DeadlineExceeded
	}

	called := false
	rr := httptest.NewRecorder()
	newIdempotency(store).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})).ServeHTTP(rr, postWithKey("key-err"))

	if called {
		t.Fatalf("handler should not be called when store errors")
	}
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
}

func TestIdempotencyMiddleware_ReplaysStoredResponse(t *testing.T) {
	store := mocks.NewMockIdempotencyStore()
	mw := newIdempotency(store)

	calls := 0
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"id":"rec-1","status":"PENDING"}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, postWithKey("key-1"))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, postWithKey("key-1"))

	if calls != 1 {
		t.Fatalf("expected handler to run once, ran %d times", calls)
	}
	if second.Code != http.StatusAccepted {
		t.Fatalf("expected replayed status 202, got %d", second.Code)
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("expected identical body, got %q vs %q", second.Body.String(), first.Body.String())
	}
	if second.Header().Get(IdempotencyReplayHeader) != "true" {
		t.Fatalf("expected replay header")
	}
	if second.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("expected content type to be replayed, got %q", second.Header().Get("Content-Type"))
	}
}

func TestIdempotencyMiddleware_InFlightIsConflict(t *testing.T) {
	store := mocks.NewMockIdempotencyStore()
	store.CheckAndSetFunc = func(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
		return true, []byte("processing"), nil
	}

	rr := httptest.NewRecorder()
	newIdempotency(store).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run while the first request is in flight")
	})).ServeHTTP(rr, postWithKey("key-busy"))

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestIdempotencyMiddleware_ReleasesKeyOnFailure(t *testing.T) {
	store := mocks.NewMockIdempotencyStore()
	mw := newIdempotency(store)

	status := http.StatusServiceUnavailable
	calls := 0
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(status)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), postWithKey("key-retry"))
	status = http.StatusAccepted
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, postWithKey("key-retry"))

	if calls != 2 {
		t.Fatalf("expected failed request to be retryable, handler ran %d times", calls)
	}
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected retry to succeed, got %d", rr.Code)
	}
}

func TestIdempotencyMiddleware_ScopesKeysByPath(t *testing.T) {
	store := mocks.NewMockIdempotencyStore()
	mw := newIdempotency(store)

	calls := 0
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), postWithKey("shared"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transfers", nil)
	req.Header.Set(IdempotencyKeyHeader, "shared")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if calls != 2 {
		t.Fatalf("expected same key on different paths to be independent, got %d calls", calls)
	}
}

func TestIdempotencyMiddleware_SkipsNonMutatingRequests(t *testing.T) {
	store := mocks.NewMockIdempotencyStore()
	store.CheckAndSetFunc = func(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
		t.Fatal("store must not be consulted for GET")
		return false, nil, nil
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil)
	req.Header.Set(IdempotencyKeyHeader, "key-get")

	called := false
	newIdempotency(store).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})).ServeHTTP(httptest.NewRecorder(), req)

	if !called {
		t.Fatalf("expected next handler to be called")
	}
}
