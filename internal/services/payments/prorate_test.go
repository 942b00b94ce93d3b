package payments

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestProrateExactSumAndCaps(t *testing.T) {
	remainders := []decimal.Decimal{dec("10.00"), dec("5.00"), dec("5.00")}

	shares, err := Prorate(dec("10.00"), remainders)
	if err != nil {
		t.Fatalf("Prorate: %v", err)
	}
	if !sum(shares).Equal(dec("10.00")) {
		t.Errorf("shares must sum to the paid amount, got %s", sum(shares))
	}
	for i, share := range shares {
		if share.GreaterThan(remainders[i]) {
			t.Errorf("share %d (%s) exceeds remainder %s", i, share, remainders[i])
		}
		if share.IsNegative() {
			t.Errorf("share %d is negative: %s", i, share)
		}
	}
	// 10 over 20 total splits proportionally: 5, 2.5, 2.5.
	if !shares[0].Equal(dec("5.00")) || !shares[1].Equal(dec("2.50")) || !shares[2].Equal(dec("2.50")) {
		t.Errorf("unexpected shares: %v", shares)
	}
}

func TestProrateRoundingLeftover(t *testing.T) {
	// 10 over three equal thirds cannot divide evenly in cents; the leftover
	// cent lands on the earliest item with headroom.
	remainders := []decimal.Decimal{dec("10.00"), dec("10.00"), dec("10.00")}

	shares, err := Prorate(dec("10.00"), remainders)
	if err != nil {
		t.Fatalf("Prorate: %v", err)
	}
	if !sum(shares).Equal(dec("10.00")) {
		t.Errorf("shares must sum to 10.00 exactly, got %s", sum(shares))
	}
	for i, share := range shares {
		if share.GreaterThan(remainders[i]) {
			t.Errorf("share %d exceeds its remainder: %s", i, share)
		}
	}
}

func TestProrateFullCoverage(t *testing.T) {
	remainders := []decimal.Decimal{dec("3.33"), dec("6.67")}

	shares, err := Prorate(dec("10.00"), remainders)
	if err != nil {
		t.Fatalf("Prorate: %v", err)
	}
	if !shares[0].Equal(dec("3.33")) || !shares[1].Equal(dec("6.67")) {
		t.Errorf("paying the exact total must cover every remainder: %v", shares)
	}
}

func TestProrateOverpayment(t *testing.T) {
	_, err := Prorate(dec("10.01"), []decimal.Decimal{dec("5.00"), dec("5.00")})
	if !errors.Is(err, ErrExceedsRemainder) {
		t.Errorf("expected ErrExceedsRemainder, got %v", err)
	}
}

func TestProrateSkipsCoveredItems(t *testing.T) {
	// An already-covered item has remainder zero and must receive nothing.
	remainders := []decimal.Decimal{dec("0"), dec("8.00")}

	shares, err := Prorate(dec("4.00"), remainders)
	if err != nil {
		t.Fatalf("Prorate: %v", err)
	}
	if !shares[0].IsZero() {
		t.Errorf("covered item must get zero, got %s", shares[0])
	}
	if !shares[1].Equal(dec("4.00")) {
		t.Errorf("expected 4.00, got %s", shares[1])
	}
}

func TestProrateRejectsBadInput(t *testing.T) {
	if _, err := Prorate(dec("0"), []decimal.Decimal{dec("5.00")}); err == nil {
		t.Error("expected error for zero amount")
	}
	if _, err := Prorate(dec("-1"), []decimal.Decimal{dec("5.00")}); err == nil {
		t.Error("expected error for negative amount")
	}
	if _, err := Prorate(dec("1"), []decimal.Decimal{dec("-5.00"), dec("10.00")}); err == nil {
		t.Error("expected error for negative remainder")
	}
}
