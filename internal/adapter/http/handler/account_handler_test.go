package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/iho/chequer/internal/adapter/http/dto"
	"github.com/iho/chequer/internal/domain"
	"github.com/iho/chequer/internal/usecase"
)

type accountServiceStub struct {
	createFn func(ctx context.Context, input usecase.CreateAccountInput) (*domain.Account, error)
	getFn    func(ctx context.Context, number string) (*domain.Account, error)
	listFn   func(ctx context.Context, input usecase.ListAccountsInput) ([]*domain.Account, error)
}

func (s *accountServiceStub) CreateAccount(ctx context.Context, input usecase.CreateAccountInput) (*domain.Account, error) {
	return s.createFn(ctx, input)
}

func (s *accountServiceStub) GetAccountByNumber(ctx context.Context, number string) (*domain.Account, error) {
	return s.getFn(ctx, number)
}

func (s *accountServiceStub) ListAccounts(ctx context.Context, input usecase.ListAccountsInput) ([]*domain.Account, error) {
	return s.listFn(ctx, input)
}

func TestAccountHandler_Create_Success(t *testing.T) {
	var captured usecase.CreateAccountInput
	handler := NewAccountHandler(&accountServiceStub{
		createFn: func(ctx context.Context, input usecase.CreateAccountInput) (*domain.Account, error) {
			captured = input
			return &domain.Account{
				ID:            "acc-1",
				AccountNumber: input.AccountNumber,
				HolderName:    input.HolderName,
				Balance:       input.OpeningBalance,
			}, nil
		},
	}, 0)

	req := newMultipartRequest(t, "/accounts", map[string]string{
		"account_number":  "1000",
		"routing_code":    "HDFC0001",
		"holder_name":     "Alice",
		"opening_balance": "1000.00",
	}, "signature", "alice.png", pngBytes)
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.AccountNumber != "1000" || captured.HolderName != "Alice" || captured.RoutingCode != "HDFC0001" {
		t.Fatalf("expected input to match form, got %+v", captured)
	}
	if captured.SignatureContentType != "image/png" || len(captured.Signature) != len(pngBytes) {
		t.Fatalf("signature not passed through: %s (%d bytes)", captured.SignatureContentType, len(captured.Signature))
	}

	var resp dto.AccountResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != "acc-1" || resp.Balance != "1000" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestAccountHandler_Create_MissingSignature(t *testing.T) {
	handler := NewAccountHandler(&accountServiceStub{
		createFn: func(ctx context.Context, input usecase.CreateAccountInput) (*domain.Account, error) {
			t.Fatal("CreateAccount should not be called without a signature")
			return nil, nil
		},
	}, 0)

	req := newMultipartRequest(t, "/accounts", map[string]string{"account_number": "1000"}, "", "", nil)
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAccountHandler_Create_NotMultipart(t *testing.T) {
	handler := NewAccountHandler(&accountServiceStub{}, 0)

	req := httptest.NewRequest(http.MethodPost, "/accounts", nil)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAccountHandler_Create_ServiceErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"duplicate", domain.ErrAccountExists, http.StatusConflict},
		{"bad holder name", domain.ErrInvalidHolderName, http.StatusBadRequest},
		{"negative balance", domain.ErrNegativeBalance, http.StatusBadRequest},
		{"storage down", errors.New("db error"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewAccountHandler(&accountServiceStub{
				createFn: func(ctx context.Context, input usecase.CreateAccountInput) (*domain.Account, error) {
					return nil, tt.err
				},
			}, 0)

			req := newMultipartRequest(t, "/accounts", map[string]string{"account_number": "1000"}, "signature", "s.png", pngBytes)
			rec := httptest.NewRecorder()

			handler.Create(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestAccountHandler_Get(t *testing.T) {
	handler := NewAccountHandler(&accountServiceStub{
		getFn: func(ctx context.Context, number string) (*domain.Account, error) {
			if number != "1000" {
				return nil, domain.ErrAccountNotFound
			}
			return &domain.Account{ID: "acc-1", AccountNumber: number}, nil
		},
	}, 0)

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/accounts/1000", nil), "number", "1000")
	rec := httptest.NewRecorder()
	handler.Get(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	req = withURLParam(httptest.NewRequest(http.MethodGet, "/accounts/9999", nil), "number", "9999")
	rec = httptest.NewRecorder()
	handler.Get(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAccountHandler_List(t *testing.T) {
	var captured usecase.ListAccountsInput
	handler := NewAccountHandler(&accountServiceStub{
		listFn: func(ctx context.Context, input usecase.ListAccountsInput) ([]*domain.Account, error) {
			captured = input
			return []*domain.Account{{ID: "acc-1"}, {ID: "acc-2"}}, nil
		},
	}, 0)

	req := httptest.NewRequest(http.MethodGet, "/accounts?limit=2&offset=4", nil)
	rec := httptest.NewRecorder()

	handler.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if captured.Limit != 2 || captured.Offset != 4 {
		t.Fatalf("unexpected pagination: %+v", captured)
	}

	var resp dto.ListAccountsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(resp.Accounts))
	}
}
