package payments

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrExceedsRemainder = errors.New("amount exceeds the uncovered remainder")

// Prorate distributes amount across the given uncovered remainders in
// proportion to their size, rounded to cents. Each share is capped at its
// remainder and the shares always sum to exactly amount; rounding leftovers
// go to the earliest items with headroom.
func Prorate(amount decimal.Decimal, remainders []decimal.Decimal) ([]decimal.Decimal, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("amount must be positive")
	}

	total := decimal.Zero
	for i, r := range remainders {
		if r.IsNegative() {
			return nil, fmt.Errorf("remainder %d is negative", i)
		}
		total = total.Add(r)
	}
	if amount.GreaterThan(total) {
		return nil, ErrExceedsRemainder
	}

	shares := make([]decimal.Decimal, len(remainders))
	allocated := decimal.Zero
	for i, r := range remainders {
		shares[i] = amount.Mul(r).Div(total).RoundDown(2)
		allocated = allocated.Add(shares[i])
	}

	leftover := amount.Sub(allocated)
	for i, r := range remainders {
		if leftover.IsZero() {
			break
		}
		headroom := r.Sub(shares[i])
		if !headroom.IsPositive() {
			continue
		}
		add := decimal.Min(headroom, leftover)
		shares[i] = shares[i].Add(add)
		leftover = leftover.Sub(add)
	}
	return shares, nil
}

func sum(values []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
