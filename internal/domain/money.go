/**
 * @description
 * Amount conversion between the plain decimal numbers carried on the wire and
 * the int64 paise representation used everywhere inside the service.
 *
 * @dependencies
 * - github.com/shopspring/decimal: exact decimal arithmetic, so "12.34" maps
 *   to 1234 paise without float rounding.
 */

package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrAmountNotPositive = errors.New("amount must be greater than zero")
	ErrAmountPrecision   = errors.New("amount supports at most two decimal places")
)

// ParseAmount converts a decimal currency string (e.g. "250" or "99.95") into
// paise. Amounts must be positive and carry at most two decimal places.
func ParseAmount(value string) (int64, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, err
	}
	if d.Exponent() < -2 {
		return 0, ErrAmountPrecision
	}
	paise := d.Shift(2)
	if !paise.IsInteger() {
		return 0, ErrAmountPrecision
	}
	if !paise.IsPositive() {
		return 0, ErrAmountNotPositive
	}
	return paise.IntPart(), nil
}

// FormatAmount renders paise back into a plain decimal string for responses
// and notification messages.
func FormatAmount(paise int64) string {
	return decimal.New(paise, -2).String()
}
