// Package core provides money parsing and handling utilities.
//
// Amounts are exact decimals so that running totals never drift.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// MaxIntegerDigits bounds amounts below one trillion.
	MaxIntegerDigits = 12
	// MaxFractionDigits is the finest unit an amount may carry.
	MaxFractionDigits = 2

	// minExponent keeps the fraction check cheap for inputs like 1e-4000000.
	minExponent = -18
)

// ValidateAmount rejects negative amounts, amounts of a trillion or more and
// amounts finer than a cent. The magnitude is judged from the digit count and
// exponent alone so that inputs like 1e4000000 are refused without being
// expanded.
func ValidateAmount(d decimal.Decimal) error {
	if d.IsNegative() {
		return fmt.Errorf("%w: %s is negative", ErrInvalidAmount, d.String())
	}
	if d.IsZero() {
		return nil
	}
	exp := int(d.Exponent())
	if d.NumDigits()+exp > MaxIntegerDigits {
		return fmt.Errorf("%w: must be less than 10^%d", ErrInvalidAmount, MaxIntegerDigits)
	}
	if exp < minExponent || !d.Equal(d.Truncate(MaxFractionDigits)) {
		return fmt.Errorf("%w: at most %d decimal places", ErrInvalidAmount, MaxFractionDigits)
	}
	return nil
}

// ParseAmount converts a decimal string to an amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and
// rejects negative values.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,34") -> 12.34, nil
//	ParseAmount("-1")    -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}
