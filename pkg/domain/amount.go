package domain

import (
	"math"

	"github.com/shopspring/decimal"

	dErrors "covenant/pkg/domain-errors"
)

// AmountPlaces is the fixed scale of every persisted amount.
const AmountPlaces = 8

// ParseAmount parses a decimal string and rejects negatives.
func ParseAmount(s, label string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, dErrors.New(dErrors.CodeValidation, label+" is required")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, dErrors.New(dErrors.CodeValidation, label+" must be a decimal number")
	}
	return d, ValidateAmount(d, label)
}

// AmountFromFloat converts a float, rejecting NaN, infinities and negatives.
func AmountFromFloat(f float64, label string) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, dErrors.New(dErrors.CodeValidation, label+" must be a finite number")
	}
	d := decimal.NewFromFloat(f)
	return d, ValidateAmount(d, label)
}

// ValidateAmount rejects negative amounts and amounts finer than AmountPlaces.
func ValidateAmount(d decimal.Decimal, label string) error {
	if d.IsNegative() {
		return dErrors.New(dErrors.CodeValidation, label+" cannot be negative")
	}
	if !d.Equal(d.Truncate(AmountPlaces)) {
		return dErrors.New(dErrors.CodeValidation, label+" has too many decimal places")
	}
	return nil
}

// RoundAmount truncates to persistence scale so split parts never
// exceed their whole.
func RoundAmount(d decimal.Decimal) decimal.Decimal {
	return d.RoundDown(AmountPlaces)
}
