// Package units converts between fixed-point ledger integers and exact decimal amounts.
package units

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// USDCDecimals is the decimal count of the principal asset observed on the ledger
const USDCDecimals int32 = 6

// ErrInvalidAmount is returned when an amount cannot be written to the ledger as-is
var ErrInvalidAmount = errors.New("invalid amount")

// MaxIntegerDigits bounds accepted amounts; 10^78 already exceeds a uint256 balance
const MaxIntegerDigits = 78

// maxExtraFractionDigits is how far past the asset's decimals an input may still be written,
// e.g. trailing zeros in "50.000000000"
const maxExtraFractionDigits = 18

// ToDecimal converts a base-unit integer to its decimal value. A nil raw value is zero.
func ToDecimal(raw *big.Int, decimals int32) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -decimals)
}

// ToBaseUnit converts a decimal amount to base units. It rejects negative values and values
// with more fractional digits than decimals supports; nothing is rounded.
func ToBaseUnit(value decimal.Decimal, decimals int32) (*big.Int, error) {
	if err := CheckRange(value, decimals); err != nil {
		return nil, err
	}
	if value.IsNegative() {
		return nil, fmt.Errorf("%w: %s is negative", ErrInvalidAmount, value)
	}

	shifted := value.Shift(decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidAmount, value, decimals)
	}

	return shifted.BigInt(), nil
}

// CheckRange rejects amounts whose exponent or magnitude is out of reach of any ledger
// balance. Comparing or rescaling a decimal costs time and memory proportional to its
// exponent, so this runs before any arithmetic on untrusted input. It inspects only the
// exponent and coefficient and never formats the value.
func CheckRange(value decimal.Decimal, decimals int32) error {
	exp := value.Exponent()
	if exp < -(decimals + maxExtraFractionDigits) {
		return fmt.Errorf("%w: exponent %d is below the smallest accepted scale", ErrInvalidAmount, exp)
	}
	// bit length * log10(2) is within one of the coefficient's digit count
	digits := int64(float64(value.Coefficient().BitLen()) * math.Log10(2))
	if int64(exp) > MaxIntegerDigits || digits+int64(exp) > MaxIntegerDigits {
		return fmt.Errorf("%w: amount exceeds %d integer digits", ErrInvalidAmount, MaxIntegerDigits)
	}
	return nil
}
