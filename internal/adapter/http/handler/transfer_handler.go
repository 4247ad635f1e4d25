package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/iho/chequer/internal/adapter/http/dto"
	"github.com/iho/chequer/internal/domain"
)

// TransferService moves funds between two accounts.
type TransferService interface {
	Transfer(ctx context.Context, transfer domain.Transfer) (*domain.TransferResult, error)
}

// TransferHandler handles manual transfers.
type TransferHandler struct {
	ledger TransferService
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(ledger TransferService) *TransferHandler {
	return &TransferHandler{ledger: ledger}
}

// Create performs a transfer.
func (h *TransferHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	transfer, err := req.ToDomain()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount", err.Error())
		return
	}

	result, err := h.ledger.Transfer(r.Context(), transfer)
	if err != nil {
		writeError(w, mapDomainError(err), "transfer failed", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, dto.TransferFromDomain(result))
}
