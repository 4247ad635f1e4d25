package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/chequer/internal/adapter/http/dto"
	"github.com/iho/chequer/internal/domain"
	"github.com/iho/chequer/internal/usecase"
)

// ClearanceService defines the behavior needed by ClearanceHandler.
type ClearanceService interface {
	Submit(ctx context.Context, input usecase.SubmitClearanceInput) (*domain.ClearanceRecord, error)
	SubmitImage(ctx context.Context, input usecase.SubmitImageInput) (*domain.ClearanceRecord, error)
	Resubmit(ctx context.Context, id, destinationAccountNumber string) (*domain.ClearanceRecord, error)
	GetQueue() []domain.QueueItem
	GetRecord(ctx context.Context, id string) (*domain.ClearanceRecord, error)
	ListRecords(ctx context.Context, input usecase.ListRecordsInput) ([]*domain.ClearanceRecord, error)
	ListCleared(ctx context.Context, limit, offset int) ([]*domain.ClearanceRecord, error)
	ListEvents(ctx context.Context, id string, limit, offset int) ([]*domain.OutboxEvent, error)
}

// ClearanceHandler handles cheque submission and clearance queries.
type ClearanceHandler struct {
	clearanceUC    ClearanceService
	maxUploadBytes int64
}

// NewClearanceHandler creates a new ClearanceHandler.
func NewClearanceHandler(clearanceUC ClearanceService, maxUploadBytes int64) *ClearanceHandler {
	return &ClearanceHandler{clearanceUC: clearanceUC, maxUploadBytes: maxUploadBytes}
}

// Submit accepts a cheque for clearance. A multipart body carries the image
// itself in the "image" part; a JSON body references an already stored image.
// The response is 202 with the pending record's ID.
func (h *ClearanceHandler) Submit(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var (
		record *domain.ClearanceRecord
		err    error
	)

	if mediaType == "multipart/form-data" {
		if err := parseMultipart(w, r, h.maxUploadBytes); err != nil {
			if isTooLarge(err) {
				writeError(w, http.StatusRequestEntityTooLarge, "upload too large", err.Error())
				return
			}
			writeError(w, http.StatusBadRequest, "invalid multipart form", err.Error())
			return
		}

		image, contentType, ferr := readFormFile(r, "image")
		if ferr != nil {
			writeError(w, http.StatusBadRequest, "invalid image upload", ferr.Error())
			return
		}

		record, err = h.clearanceUC.SubmitImage(r.Context(), usecase.SubmitImageInput{
			Image:                    image,
			ContentType:              contentType,
			DestinationAccountNumber: r.FormValue("to_account_number"),
		})
	} else {
		var req dto.SubmitClearanceRequest
		if derr := json.NewDecoder(r.Body).Decode(&req); derr != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", derr.Error())
			return
		}
		if req.ImageHandle == "" {
			writeError(w, http.StatusBadRequest, "missing image_handle", "")
			return
		}

		record, err = h.clearanceUC.Submit(r.Context(), req.ToUseCaseInput())
	}

	if err != nil {
		writeError(w, mapDomainError(err), "failed to submit cheque", err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, dto.SubmitFromDomain(record))
}

// Resubmit creates a fresh request from a failed record.
func (h *ClearanceHandler) Resubmit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req dto.ResubmitClearanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	record, err := h.clearanceUC.Resubmit(r.Context(), id, req.ToAccountNumber)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to resubmit cheque", err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, dto.SubmitFromDomain(record))
}

// Queue returns the requests waiting for the worker, oldest first.
func (h *ClearanceHandler) Queue(w http.ResponseWriter, r *http.Request) {
	items := h.clearanceUC.GetQueue()
	writeJSON(w, http.StatusOK, dto.QueueResponse{
		Items: dto.QueueFromDomain(items),
		Total: len(items),
	})
}

// Get retrieves a clearance record by ID.
func (h *ClearanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing clearance ID", "")
		return
	}

	record, err := h.clearanceUC.GetRecord(r.Context(), id)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get clearance", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.ClearanceFromDomain(record))
}

// List lists clearance records, optionally filtered by ?status=.
func (h *ClearanceHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 20)
	offset := parseIntQuery(r, "offset", 0)

	input := usecase.ListRecordsInput{Limit: limit, Offset: offset}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.ClearanceStatus(raw)
		if !status.IsValid() {
			writeError(w, http.StatusBadRequest, "invalid status", raw)
			return
		}
		input.Status = &status
	}

	records, err := h.clearanceUC.ListRecords(r.Context(), input)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to list clearances", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.ListClearancesResponse{
		Clearances: dto.ClearancesFromDomain(records),
		Limit:      limit,
		Offset:     offset,
	})
}

// Cleared lists records whose funds have moved.
func (h *ClearanceHandler) Cleared(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 20)
	offset := parseIntQuery(r, "offset", 0)

	records, err := h.clearanceUC.ListCleared(r.Context(), limit, offset)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to list cleared cheques", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.ListClearancesResponse{
		Clearances: dto.ClearancesFromDomain(records),
		Limit:      limit,
		Offset:     offset,
	})
}

// Events returns the lifecycle events recorded for one clearance.
func (h *ClearanceHandler) Events(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	limit := parseIntQuery(r, "limit", 50)
	offset := parseIntQuery(r, "offset", 0)

	events, err := h.clearanceUC.ListEvents(r.Context(), id, limit, offset)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to list events", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.EventsFromDomain(events))
}
