package units

import (
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDecimal(t *testing.T) {
	tests := []struct {
		name     string
		raw      *big.Int
		decimals int32
		want     string
	}{
		{name: "whole usdc", raw: big.NewInt(50_000_000), decimals: 6, want: "50"},
		{name: "fractional usdc", raw: big.NewInt(1_234_567), decimals: 6, want: "1.234567"},
		{name: "single base unit", raw: big.NewInt(1), decimals: 6, want: "0.000001"},
		{name: "zero decimals", raw: big.NewInt(42), decimals: 0, want: "42"},
		{name: "nil is zero", raw: nil, decimals: 6, want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToDecimal(tt.raw, tt.decimals)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s, want %s", got, tt.want)
		})
	}
}

func TestToBaseUnit(t *testing.T) {
	got, err := ToBaseUnit(decimal.NewFromInt(50), USDCDecimals)
	require.NoError(t, err)
	assert.Equal(t, "50000000", got.String())

	got, err = ToBaseUnit(decimal.RequireFromString("12.5"), USDCDecimals)
	require.NoError(t, err)
	assert.Equal(t, "12500000", got.String())

	got, err = ToBaseUnit(decimal.Zero, USDCDecimals)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Int64())
}

func TestToBaseUnit_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{name: "negative", value: "-1"},
		{name: "too precise", value: "50.0000001"},
		{name: "sub base unit", value: "0.0000005"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ToBaseUnit(decimal.RequireFromString(tt.value), USDCDecimals)
			assert.ErrorIs(t, err, ErrInvalidAmount)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	huge, ok := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)
	require.True(t, ok)

	raws := []*big.Int{
		big.NewInt(0),
		big.NewInt(1),
		big.NewInt(999_999),
		big.NewInt(50_000_000),
		big.NewInt(123_456_789_012),
		huge,
	}

	for _, decimals := range []int32{0, 2, 6, 18} {
		for _, raw := range raws {
			back, err := ToBaseUnit(ToDecimal(raw, decimals), decimals)
			require.NoError(t, err)
			assert.Equal(t, 0, raw.Cmp(back), "raw %s decimals %d came back as %s", raw, decimals, back)
		}
	}
}

func TestBasisPointsToPercent(t *testing.T) {
	assert.True(t, BasisPointsToPercent(big.NewInt(1234)).Equal(decimal.RequireFromString("12.34")))
	assert.True(t, BasisPointsToPercent(big.NewInt(5)).Equal(decimal.RequireFromString("0.05")))
	assert.True(t, BasisPointsToPercent(nil).IsZero())
}

func TestCheckRange(t *testing.T) {
	tests := []struct {
		name  string
		value decimal.Decimal
		valid bool
	}{
		{name: "whole amount", value: decimal.NewFromInt(50), valid: true},
		{name: "excess trailing zeros", value: decimal.RequireFromString("50." + strings.Repeat("0", 30)), valid: false},
		{name: "smallest accepted scale", value: decimal.New(5, -24), valid: true},
		{name: "tiny exponent", value: decimal.New(1, -300000000), valid: false},
		{name: "huge exponent", value: decimal.New(5, 300000000), valid: false},
		{name: "just past uint256", value: decimal.New(1, 79), valid: false},
		{name: "uint256 scale", value: decimal.New(1, 70), valid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckRange(tt.value, USDCDecimals)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidAmount)
		})
	}
}

func TestToBaseUnit_RejectsExtremeExponentsWithoutRescaling(t *testing.T) {
	for _, value := range []decimal.Decimal{decimal.New(1, -300000000), decimal.New(5, 300000000)} {
		start := time.Now()
		_, err := ToBaseUnit(value, USDCDecimals)
		assert.ErrorIs(t, err, ErrInvalidAmount)
		assert.Less(t, time.Since(start), time.Second)
	}
}
