package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestValidateAccountNumber(t *testing.T) {
	t.Parallel()

	if err := ValidateAccountNumber("50100234567890"); err != nil {
		t.Fatalf("expected valid account number, got %v", err)
	}

	for _, bad := range []string{"", "1234 5678", "12-34", strings.Repeat("1", MaxAccountNumberLength+1)} {
		if err := ValidateAccountNumber(bad); !errors.Is(err, ErrInvalidAccountNumber) {
			t.Fatalf("expected ErrInvalidAccountNumber for %q, got %v", bad, err)
		}
	}
}

func TestNormalizeAccountNumber(t *testing.T) {
	t.Parallel()

	if got := NormalizeAccountNumber(" 5010 0234-5678 "); got != "501002345678" {
		t.Fatalf("unexpected normalized number %q", got)
	}
}

func TestValidateHolderName(t *testing.T) {
	t.Parallel()

	t.Run("valid name", func(t *testing.T) {
		if err := ValidateHolderName("Alice Example"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("empty name rejected", func(t *testing.T) {
		err := ValidateHolderName("   ")
		if !errors.Is(err, ErrInvalidHolderName) {
			t.Fatalf("expected ErrInvalidHolderName, got %v", err)
		}
	})

	t.Run("name too long", func(t *testing.T) {
		err := ValidateHolderName(strings.Repeat("a", MaxHolderNameLength+1))
		if !errors.Is(err, ErrInvalidHolderName) {
			t.Fatalf("expected ErrInvalidHolderName, got %v", err)
		}
	})
}

func TestValidateAmount(t *testing.T) {
	t.Parallel()

	valid := decimal.NewFromFloat(100.25)
	if err := ValidateAmount(valid); err != nil {
		t.Fatalf("expected valid amount, got %v", err)
	}

	if err := ValidateAmount(decimal.Zero); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero, got %v", err)
	}

	if err := ValidateAmount(decimal.NewFromFloat(0.001)); !errors.Is(err, ErrAmountTooSmall) {
		t.Fatalf("expected ErrAmountTooSmall, got %v", err)
	}

	huge := decimal.RequireFromString(MaxTransferAmount).Add(decimal.NewFromInt(1))
	if err := ValidateAmount(huge); !errors.Is(err, ErrAmountTooLarge) {
		t.Fatalf("expected ErrAmountTooLarge, got %v", err)
	}
}

func TestValidateEmailAndPhone(t *testing.T) {
	t.Parallel()

	if err := ValidateEmail("USER@example.com"); err != nil {
		t.Fatalf("expected valid email, got %v", err)
	}
	if err := ValidateEmail("invalid-email"); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}

	if err := ValidatePhone("+91 98765-43210"); err != nil {
		t.Fatalf("expected valid phone, got %v", err)
	}
	if err := ValidatePhone("call me"); !errors.Is(err, ErrInvalidPhone) {
		t.Fatalf("expected ErrInvalidPhone, got %v", err)
	}
}

func TestParseChequeAmount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want string
	}{
		{"400", "400"},
		{"1,250.50", "1250.5"},
		{"₹ 1,250.50/-", "1250.5"},
		{"Rs. 3,00,000/-", "300000"},
		{"INR 99.99", "99.99"},
		{"500 only", "500"},
		{"**750**", "750"},
	}

	for _, tt := range tests {
		got, err := ParseChequeAmount(tt.raw)
		if err != nil {
			t.Fatalf("ParseChequeAmount(%q) returned error: %v", tt.raw, err)
		}
		if !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Fatalf("ParseChequeAmount(%q) = %s, want %s", tt.raw, got, tt.want)
		}
	}

	for _, bad := range []string{"", "abc", "-100", "0"} {
		if _, err := ParseChequeAmount(bad); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("expected ErrInvalidAmount for %q, got %v", bad, err)
		}
	}
}

func TestParseChequeDate(t *testing.T) {
	t.Parallel()

	want := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	for _, raw := range []string{"01/03/2026", "1/3/2026", "01-03-2026", "01.03.2026", "01032026", "2026-03-01", " 01 / 03 / 2026 "} {
		got, err := ParseChequeDate(raw)
		if err != nil {
			t.Fatalf("ParseChequeDate(%q) returned error: %v", raw, err)
		}
		if !got.Equal(want) {
			t.Fatalf("ParseChequeDate(%q) = %s, want %s", raw, got, want)
		}
	}

	if _, err := ParseChequeDate("next tuesday"); !errors.Is(err, ErrInvalidChequeDate) {
		t.Fatalf("expected ErrInvalidChequeDate, got %v", err)
	}
}

func TestValidatePagination(t *testing.T) {
	t.Parallel()

	limit, offset, err := ValidatePagination(0, -5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if limit != 50 || offset != 0 {
		t.Fatalf("expected defaults 50/0, got %d/%d", limit, offset)
	}

	limit, _, _ = ValidatePagination(5000, 0)
	if limit != 1000 {
		t.Fatalf("expected limit capped at 1000, got %d", limit)
	}
}
