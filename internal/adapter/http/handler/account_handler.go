package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/chequer/internal/adapter/http/dto"
	"github.com/iho/chequer/internal/domain"
	"github.com/iho/chequer/internal/usecase"
)

// AccountService defines the behavior needed by AccountHandler.
type AccountService interface {
	CreateAccount(ctx context.Context, input usecase.CreateAccountInput) (*domain.Account, error)
	GetAccountByNumber(ctx context.Context, number string) (*domain.Account, error)
	ListAccounts(ctx context.Context, input usecase.ListAccountsInput) ([]*domain.Account, error)
}

// AccountHandler handles account-related HTTP requests.
type AccountHandler struct {
	accountUC      AccountService
	maxUploadBytes int64
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountUC AccountService, maxUploadBytes int64) *AccountHandler {
	return &AccountHandler{accountUC: accountUC, maxUploadBytes: maxUploadBytes}
}

// Create opens an account from a multipart form carrying the holder's
// details and a reference signature image.
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := parseMultipart(w, r, h.maxUploadBytes); err != nil {
		if isTooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large", err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form", err.Error())
		return
	}

	signature, contentType, err := readFormFile(r, "signature")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid signature upload", err.Error())
		return
	}

	req := dto.CreateAccountRequest{
		AccountNumber:  r.FormValue("account_number"),
		RoutingCode:    r.FormValue("routing_code"),
		HolderName:     r.FormValue("holder_name"),
		Email:          r.FormValue("email"),
		Phone:          r.FormValue("phone"),
		OpeningBalance: r.FormValue("opening_balance"),
	}

	input, err := req.ToUseCaseInput(signature, contentType)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid opening balance", err.Error())
		return
	}

	account, err := h.accountUC.CreateAccount(r.Context(), input)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to create account", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, dto.AccountFromDomain(account))
}

// Get retrieves an account by account number.
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	if number == "" {
		writeError(w, http.StatusBadRequest, "missing account number", "")
		return
	}

	account, err := h.accountUC.GetAccountByNumber(r.Context(), number)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get account", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(account))
}

// List lists accounts.
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 20)
	offset := parseIntQuery(r, "offset", 0)

	accounts, err := h.accountUC.ListAccounts(r.Context(), usecase.ListAccountsInput{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list accounts", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.ListAccountsResponse{
		Accounts: dto.AccountsFromDomain(accounts),
		Limit:    limit,
		Offset:   offset,
	})
}
