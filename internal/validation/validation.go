// Package validation checks request input before anything reaches the ledger.
package validation

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/jluxury929-hash/hyper/internal/apperror"
	"github.com/jluxury929-hash/hyper/internal/units"
)

// ParseAddress accepts a 20-byte hex account identifier with an optional 0x prefix.
// All-lowercase and all-uppercase forms are accepted as-is; a mixed-case address must carry
// a valid EIP-55 checksum.
func ParseAddress(raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return common.Address{}, apperror.Validation("valid address required")
	}
	if !common.IsHexAddress(raw) {
		logrus.WithField("address", raw).Debug("Rejected malformed address")
		return common.Address{}, apperror.Validation("valid address required: %q is not a 20-byte hex address", raw)
	}

	addr := common.HexToAddress(raw)
	body := strings.TrimPrefix(strings.TrimPrefix(raw, "0x"), "0X")
	if isMixedCase(body) && addr.Hex()[2:] != body {
		logrus.WithField("address", raw).Debug("Rejected address with bad checksum")
		return common.Address{}, apperror.Validation("valid address required: %q has an invalid checksum", raw)
	}

	return addr, nil
}

// DepositAmount validates a deposit and converts it to base units
func DepositAmount(amount decimal.Decimal, minimum decimal.Decimal, decimals int32) (*big.Int, error) {
	if err := checkRange(amount, decimals); err != nil {
		return nil, err
	}
	if amount.LessThan(minimum) {
		return nil, apperror.Validation("minimum deposit is %s", minimum)
	}
	return baseUnits(amount, decimals)
}

// WithdrawAmount validates an explicit withdrawal amount and converts it to base units.
// A missing amount means a full withdrawal and is resolved by the caller.
func WithdrawAmount(amount decimal.Decimal, decimals int32) (*big.Int, error) {
	if err := checkRange(amount, decimals); err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, apperror.Validation("withdraw amount must be positive")
	}
	return baseUnits(amount, decimals)
}

func checkRange(amount decimal.Decimal, decimals int32) error {
	if err := units.CheckRange(amount, decimals); err != nil {
		return &apperror.Error{Kind: apperror.KindValidation, Detail: err.Error(), Err: err}
	}
	return nil
}

func baseUnits(amount decimal.Decimal, decimals int32) (*big.Int, error) {
	raw, err := units.ToBaseUnit(amount, decimals)
	if err != nil {
		return nil, &apperror.Error{Kind: apperror.KindValidation, Detail: err.Error(), Err: err}
	}
	return raw, nil
}

func isMixedCase(s string) bool {
	return strings.ToLower(s) != s && strings.ToUpper(s) != s
}
