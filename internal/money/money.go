// Package money converts between the wire representation of prices (decimal
// strings, rupees) and the stored representation (int64 minor units, paise).
// No floats anywhere in between.
package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrNegativeAmount = errors.New("amount must be > 0")
	ErrTooPrecise     = errors.New("amount has sub-paise precision")
)

var hundred = decimal.NewFromInt(100)

// Parse converts a decimal price string such as "150" or "150.50" into paise.
func Parse(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	minor := d.Mul(hundred)
	if !minor.IsInteger() {
		return 0, ErrTooPrecise
	}
	if !minor.IsPositive() {
		return 0, ErrNegativeAmount
	}
	return minor.IntPart(), nil
}

// Format renders paise back into a decimal rupee string ("15000" -> "150.00").
func Format(minor int64) string {
	return decimal.NewFromInt(minor).Div(hundred).StringFixed(2)
}
