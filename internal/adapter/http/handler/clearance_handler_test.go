package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/chequer/internal/adapter/http/dto"
	"github.com/iho/chequer/internal/domain"
	"github.com/iho/chequer/internal/usecase"
)

type clearanceServiceStub struct {
	submitFn      func(ctx context.Context, input usecase.SubmitClearanceInput) (*domain.ClearanceRecord, error)
	submitImageFn func(ctx context.Context, input usecase.SubmitImageInput) (*domain.ClearanceRecord, error)
	resubmitFn    func(ctx context.Context, id, destination string) (*domain.ClearanceRecord, error)
	queue         []domain.QueueItem
	getFn         func(ctx context.Context, id string) (*domain.ClearanceRecord, error)
	listFn        func(ctx context.Context, input usecase.ListRecordsInput) ([]*domain.ClearanceRecord, error)
	clearedFn     func(ctx context.Context, limit, offset int) ([]*domain.ClearanceRecord, error)
	eventsFn      func(ctx context.Context, id string, limit, offset int) ([]*domain.OutboxEvent, error)
}

func (s *clearanceServiceStub) Submit(ctx context.Context, input usecase.SubmitClearanceInput) (*domain.ClearanceRecord, error) {
	return s.submitFn(ctx, input)
}

func (s *clearanceServiceStub) SubmitImage(ctx context.Context, input usecase.SubmitImageInput) (*domain.ClearanceRecord, error) {
	return s.submitImageFn(ctx, input)
}

func (s *clearanceServiceStub) Resubmit(ctx context.Context, id, destination string) (*domain.ClearanceRecord, error) {
	return s.resubmitFn(ctx, id, destination)
}

func (s *clearanceServiceStub) GetQueue() []domain.QueueItem {
	return s.queue
}

func (s *clearanceServiceStub) GetRecord(ctx context.Context, id string) (*domain.ClearanceRecord, error) {
	return s.getFn(ctx, id)
}

func (s *clearanceServiceStub) ListRecords(ctx context.Context, input usecase.ListRecordsInput) ([]*domain.ClearanceRecord, error) {
	return s.listFn(ctx, input)
}

func (s *clearanceServiceStub) ListCleared(ctx context.Context, limit, offset int) ([]*domain.ClearanceRecord, error) {
	return s.clearedFn(ctx, limit, offset)
}

func (s *clearanceServiceStub) ListEvents(ctx context.Context, id string, limit, offset int) ([]*domain.OutboxEvent, error) {
	return s.eventsFn(ctx, id, limit, offset)
}

func pendingRecord(id, handle string) *domain.ClearanceRecord {
	return &domain.ClearanceRecord{
		ID:          id,
		Status:      domain.ClearanceStatusPending,
		ImageHandle: handle,
		SubmittedAt: time.Now().UTC(),
	}
}

func TestClearanceHandler_Submit_Multipart(t *testing.T) {
	var captured usecase.SubmitImageInput
	handler := NewClearanceHandler(&clearanceServiceStub{
		submitImageFn: func(ctx context.Context, input usecase.SubmitImageInput) (*domain.ClearanceRecord, error) {
			captured = input
			return pendingRecord("rec-1", "mem://cheques/rec-1.png"), nil
		},
	}, 0)

	req := newMultipartRequest(t, "/clearances", map[string]string{"to_account_number": "2000"}, "image", "cheque.png", pngBytes)
	rec := httptest.NewRecorder()

	handler.Submit(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.DestinationAccountNumber != "2000" || captured.ContentType != "image/png" {
		t.Fatalf("unexpected input: %+v", captured)
	}

	var resp dto.SubmitClearanceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != "rec-1" || resp.Status != "PENDING" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestClearanceHandler_Submit_JSON(t *testing.T) {
	var captured usecase.SubmitClearanceInput
	handler := NewClearanceHandler(&clearanceServiceStub{
		submitFn: func(ctx context.Context, input usecase.SubmitClearanceInput) (*domain.ClearanceRecord, error) {
			captured = input
			return pendingRecord("rec-2", input.ImageHandle), nil
		},
	}, 0)

	body, _ := json.Marshal(dto.SubmitClearanceRequest{ImageHandle: "s3://cheques/a.png", ToAccountNumber: "2000"})
	req := httptest.NewRequest(http.MethodPost, "/clearances", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.Submit(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.ImageHandle != "s3://cheques/a.png" || captured.DestinationAccountNumber != "2000" {
		t.Fatalf("unexpected input: %+v", captured)
	}
}

func TestClearanceHandler_Submit_Rejected(t *testing.T) {
	handler := NewClearanceHandler(&clearanceServiceStub{
		submitFn: func(ctx context.Context, input usecase.SubmitClearanceInput) (*domain.ClearanceRecord, error) {
			return nil, domain.ErrBlobNotFound
		},
		submitImageFn: func(ctx context.Context, input usecase.SubmitImageInput) (*domain.ClearanceRecord, error) {
			return nil, domain.ErrInvalidImage
		},
	}, 0)

	tests := []struct {
		name string
		req  func() *http.Request
		want int
	}{
		{
			name: "missing image part",
			req: func() *http.Request {
				return newMultipartRequest(t, "/clearances", map[string]string{"to_account_number": "2000"}, "", "", nil)
			},
			want: http.StatusBadRequest,
		},
		{
			name: "undecodable image",
			req: func() *http.Request {
				return newMultipartRequest(t, "/clearances", map[string]string{"to_account_number": "2000"}, "image", "x.bin", []byte("garbage"))
			},
			want: http.StatusBadRequest,
		},
		{
			name: "json without handle",
			req: func() *http.Request {
				return httptest.NewRequest(http.MethodPost, "/clearances", bytes.NewBufferString(`{"to_account_number":"2000"}`))
			},
			want: http.StatusBadRequest,
		},
		{
			name: "unknown handle",
			req: func() *http.Request {
				return httptest.NewRequest(http.MethodPost, "/clearances", bytes.NewBufferString(`{"image_handle":"mem://nope","to_account_number":"2000"}`))
			},
			want: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.Submit(rec, tt.req())
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestClearanceHandler_Resubmit(t *testing.T) {
	var gotID, gotDest string
	handler := NewClearanceHandler(&clearanceServiceStub{
		resubmitFn: func(ctx context.Context, id, destination string) (*domain.ClearanceRecord, error) {
			gotID, gotDest = id, destination
			if id == "rec-cleared" {
				return nil, domain.ErrClearanceNotResubmittable
			}
			return pendingRecord("rec-new", "mem://cheques/a.png"), nil
		},
	}, 0)

	req := withURLParam(httptest.NewRequest(http.MethodPost, "/clearances/rec-1/resubmit", bytes.NewBufferString(`{"to_account_number":"3000"}`)), "id", "rec-1")
	rec := httptest.NewRecorder()
	handler.Resubmit(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if gotID != "rec-1" || gotDest != "3000" {
		t.Fatalf("unexpected call: id=%s dest=%s", gotID, gotDest)
	}

	// An empty body keeps the original destination.
	req = withURLParam(httptest.NewRequest(http.MethodPost, "/clearances/rec-1/resubmit", http.NoBody), "id", "rec-1")
	rec = httptest.NewRecorder()
	handler.Resubmit(rec, req)
	if rec.Code != http.StatusAccepted || gotDest != "" {
		t.Fatalf("expected 202 with empty destination, got %d dest=%q", rec.Code, gotDest)
	}

	req = withURLParam(httptest.NewRequest(http.MethodPost, "/clearances/rec-cleared/resubmit", http.NoBody), "id", "rec-cleared")
	rec = httptest.NewRecorder()
	handler.Resubmit(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestClearanceHandler_Queue(t *testing.T) {
	handler := NewClearanceHandler(&clearanceServiceStub{
		queue: []domain.QueueItem{
			{RecordID: "a", Status: domain.ClearanceStatusPending},
			{RecordID: "b", Status: domain.ClearanceStatusPending},
		},
	}, 0)

	rec := httptest.NewRecorder()
	handler.Queue(rec, httptest.NewRequest(http.MethodGet, "/clearances/queue", nil))

	var resp dto.QueueResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Total != 2 || resp.Items[0].ID != "a" || resp.Items[1].ID != "b" {
		t.Fatalf("unexpected queue: %+v", resp)
	}
}

func TestClearanceHandler_Get(t *testing.T) {
	amount := decimal.NewFromInt(400)
	handler := NewClearanceHandler(&clearanceServiceStub{
		getFn: func(ctx context.Context, id string) (*domain.ClearanceRecord, error) {
			if id != "rec-1" {
				return nil, domain.ErrClearanceNotFound
			}
			return &domain.ClearanceRecord{ID: id, Status: domain.ClearanceStatusCleared, Amount: &amount}, nil
		},
	}, 0)

	rec := httptest.NewRecorder()
	handler.Get(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/clearances/rec-1", nil), "id", "rec-1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp dto.ClearanceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "CLEARED" || resp.Amount == nil || *resp.Amount != "400" {
		t.Fatalf("unexpected record: %+v", resp)
	}

	rec = httptest.NewRecorder()
	handler.Get(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/clearances/missing", nil), "id", "missing"))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestClearanceHandler_List(t *testing.T) {
	var captured usecase.ListRecordsInput
	handler := NewClearanceHandler(&clearanceServiceStub{
		listFn: func(ctx context.Context, input usecase.ListRecordsInput) ([]*domain.ClearanceRecord, error) {
			captured = input
			return []*domain.ClearanceRecord{pendingRecord("rec-1", "h")}, nil
		},
	}, 0)

	rec := httptest.NewRecorder()
	handler.List(rec, httptest.NewRequest(http.MethodGet, "/clearances?status=SIGNATURE_MISMATCH&limit=5", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if captured.Status == nil || *captured.Status != domain.ClearanceStatusSignatureMismatch || captured.Limit != 5 {
		t.Fatalf("unexpected filter: %+v", captured)
	}

	rec = httptest.NewRecorder()
	handler.List(rec, httptest.NewRequest(http.MethodGet, "/clearances?status=BOUNCED", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rec.Code)
	}
}

func TestClearanceHandler_ClearedAndEvents(t *testing.T) {
	handler := NewClearanceHandler(&clearanceServiceStub{
		clearedFn: func(ctx context.Context, limit, offset int) ([]*domain.ClearanceRecord, error) {
			return []*domain.ClearanceRecord{{ID: "rec-1", Status: domain.ClearanceStatusCleared}}, nil
		},
		eventsFn: func(ctx context.Context, id string, limit, offset int) ([]*domain.OutboxEvent, error) {
			return []*domain.OutboxEvent{
				{ID: "evt-1", EventType: domain.EventTypeClearanceSubmitted, Payload: map[string]any{"clearance_id": id}},
			}, nil
		},
	}, 0)

	rec := httptest.NewRecorder()
	handler.Cleared(rec, httptest.NewRequest(http.MethodGet, "/clearances/cleared", nil))

	var cleared dto.ListClearancesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &cleared); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(cleared.Clearances) != 1 || cleared.Clearances[0].Status != "CLEARED" {
		t.Fatalf("unexpected cleared list: %+v", cleared)
	}

	rec = httptest.NewRecorder()
	handler.Events(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/clearances/rec-1/events", nil), "id", "rec-1"))

	var events []dto.EventResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(events) != 1 || events[0].Payload["clearance_id"] != "rec-1" {
		t.Fatalf("unexpected events: %+v", events)
	}
}
