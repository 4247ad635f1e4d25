package dto

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/iho/chequer/internal/domain"
	"github.com/iho/chequer/internal/usecase"
)

// CreateAccountRequest holds the form fields of an account opening request.
// The reference signature travels as the "signature" multipart file.
type CreateAccountRequest struct {
	AccountNumber  string `json:"account_number"`
	RoutingCode    string `json:"routing_code"`
	HolderName     string `json:"holder_name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	OpeningBalance string `json:"opening_balance"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateAccountRequest) ToUseCaseInput(signature []byte, contentType string) (usecase.CreateAccountInput, error) {
	balance := decimal.Zero
	if r.OpeningBalance != "" {
		parsed, err := decimal.NewFromString(r.OpeningBalance)
		if err != nil {
			return usecase.CreateAccountInput{}, fmt.Errorf("%w: opening_balance %q", domain.ErrInvalidAmount, r.OpeningBalance)
		}
		balance = parsed
	}

	return usecase.CreateAccountInput{
		AccountNumber:        r.AccountNumber,
		RoutingCode:          r.RoutingCode,
		HolderName:           r.HolderName,
		Email:                r.Email,
		Phone:                r.Phone,
		OpeningBalance:       balance,
		Signature:            signature,
		SignatureContentType: contentType,
	}, nil
}

// SubmitClearanceRequest submits a cheque image that is already in blob storage.
type SubmitClearanceRequest struct {
	ImageHandle     string `json:"image_handle"`
	ToAccountNumber string `json:"to_account_number"`
}

// ToUseCaseInput converts to use case input.
func (r *SubmitClearanceRequest) ToUseCaseInput() usecase.SubmitClearanceInput {
	return usecase.SubmitClearanceInput{
		ImageHandle:              r.ImageHandle,
		DestinationAccountNumber: r.ToAccountNumber,
	}
}

// ResubmitClearanceRequest optionally corrects the destination account.
type ResubmitClearanceRequest struct {
	ToAccountNumber string `json:"to_account_number,omitempty"`
}

// CreateTransferRequest represents a manual transfer between two accounts.
type CreateTransferRequest struct {
	FromAccountNumber string `json:"from_account_number"`
	ToAccountNumber   string `json:"to_account_number"`
	Amount            string `json:"amount"`
}

// ToDomain parses and validates the request.
func (r *CreateTransferRequest) ToDomain() (domain.Transfer, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return domain.Transfer{}, fmt.Errorf("%w: %q", domain.ErrInvalidAmount, r.Amount)
	}
	if err := domain.ValidateAmount(amount); err != nil {
		return domain.Transfer{}, err
	}

	return domain.Transfer{
		FromAccountNumber: domain.NormalizeAccountNumber(r.FromAccountNumber),
		ToAccountNumber:   domain.NormalizeAccountNumber(r.ToAccountNumber),
		Amount:            amount,
	}, nil
}
