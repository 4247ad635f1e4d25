package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Validation errors
var (
	ErrInvalidHolderName = errors.New("invalid account holder name")
	ErrInvalidEmail      = errors.New("invalid email format")
	ErrInvalidPhone      = errors.New("invalid phone number")
	ErrAmountTooLarge    = errors.New("amount exceeds maximum allowed")
	ErrAmountTooSmall    = errors.New("amount below minimum allowed")
	ErrInvalidChequeDate = errors.New("invalid cheque date")
)

// Validation constants
const (
	MaxHolderNameLength    = 255
	MaxAccountNumberLength = 34
	MaxTransferAmount      = "1000000000000" // 1 trillion
	MinTransferAmount      = "0.01"
)

var (
	emailRegex         = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phoneRegex         = regexp.MustCompile(`^\+?[0-9]{6,15}$`)
	accountNumberRegex = regexp.MustCompile(`^[A-Za-z0-9]+$`)
)

// NormalizeAccountNumber strips the separators OCR and humans put inside account numbers.
func NormalizeAccountNumber(number string) string {
	return strings.NewReplacer(" ", "", "-", "", "\t", "", "\n", "").Replace(strings.TrimSpace(number))
}

// ValidateAccountNumber validates an already normalized account number
func ValidateAccountNumber(number string) error {
	if number == "" {
		return fmt.Errorf("%w: account number cannot be empty", ErrInvalidAccountNumber)
	}
	if len(number) > MaxAccountNumberLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidAccountNumber, MaxAccountNumberLength)
	}
	if !accountNumberRegex.MatchString(number) {
		return fmt.Errorf("%w: must be alphanumeric", ErrInvalidAccountNumber)
	}
	return nil
}

// ValidateHolderName validates the account holder name
func ValidateHolderName(name string) error {
	name = strings.TrimSpace(name)

	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidHolderName)
	}

	if len(name) > MaxHolderNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidHolderName, MaxHolderNameLength)
	}

	return nil
}

// ValidateEmail validates email format
func ValidateEmail(email string) error {
	email = strings.TrimSpace(strings.ToLower(email))

	if !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}

	return nil
}

// ValidatePhone validates a phone number, ignoring spaces and dashes
func ValidatePhone(phone string) error {
	if !phoneRegex.MatchString(NormalizeAccountNumber(phone)) {
		return ErrInvalidPhone
	}
	return nil
}

// ValidateAmount validates transfer amount
func ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	minAmount, _ := decimal.NewFromString(MinTransferAmount)
	if amount.LessThan(minAmount) {
		return fmt.Errorf("%w: minimum amount is %s", ErrAmountTooSmall, MinTransferAmount)
	}

	maxAmount, _ := decimal.NewFromString(MaxTransferAmount)
	if amount.GreaterThan(maxAmount) {
		return fmt.Errorf("%w: maximum amount is %s", ErrAmountTooLarge, MaxTransferAmount)
	}

	return nil
}

var amountNoise = strings.NewReplacer(
	"Rs.", "", "Rs", "", "INR", "", "₹", "", "$", "",
	",", "", "/-", "", " ", "", "*", "",
)

// ParseChequeAmount parses the numeric amount written on a cheque, e.g. "₹ 1,250.50/-".
func ParseChequeAmount(raw string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimSuffix(strings.TrimSuffix(cleaned, "only"), "Only")
	cleaned = strings.TrimSuffix(amountNoise.Replace(cleaned), ".")

	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("%w: empty amount", ErrInvalidAmount)
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrInvalidAmount
	}

	return amount, nil
}

// Cheque dates are written day first.
var chequeDateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"02.01.2006",
	"02012006",
	"02/01/06",
	"2006-01-02",
}

// ParseChequeDate parses the date written on a cheque.
func ParseChequeDate(raw string) (time.Time, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	for _, layout := range chequeDateLayouts {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidChequeDate, raw)
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int, error) {
	const MaxPageSize = 1000
	const DefaultPageSize = 50

	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset, nil
}
