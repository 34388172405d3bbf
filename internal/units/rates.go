package units

import (
	"math/big"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// BasisPointsToPercent scales a ledger rate stored in basis points to a percentage
// (1234 -> 12.34). It is a display scaling only, not an asset conversion.
func BasisPointsToPercent(bp *big.Int) decimal.Decimal {
	if bp == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(bp, 0).Div(hundred)
}
