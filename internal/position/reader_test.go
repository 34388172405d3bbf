package position

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jluxury929-hash/hyper/internal/apperror"
	"github.com/jluxury929-hash/hyper/internal/config"
	"github.com/jluxury929-hash/hyper/internal/ledger"
	"github.com/jluxury929-hash/hyper/internal/ledger/ledgertest"
)

const user = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

func testConfig() config.Config {
	return config.Config{StrategyCount: 8, AssetDecimals: 6}
}

func usdc(whole int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(whole), big.NewInt(1_000_000))
}

func populatedFake() *ledgertest.Fake {
	f := ledgertest.New()
	f.Stats = ledger.UserStats{
		Principal:      usdc(1000),
		CurrentRewards: big.NewInt(2_500_000),
		TotalEarned:    usdc(40),
		AverageAPY:     big.NewInt(1525),
		HourlyRate:     big.NewInt(500_000),
		DailyRate:      usdc(12),
	}
	f.Position = ledger.Position{
		Principal:      usdc(1000),
		AaveAmount:     usdc(400),
		UniswapLP:      usdc(100),
		CompoundAmount: usdc(100),
		CurveAmount:    usdc(150),
		YearnAmount:    usdc(150),
		StakingAmount:  usdc(100),
		LastUpdate:     big.NewInt(1_700_000_000),
		TotalRewards:   usdc(40),
		AIOptLevel:     3,
	}
	f.AverageYield = big.NewInt(1234)
	f.Model = ledger.AIModel{PredictionAccuracy: big.NewInt(95), LastUpdate: big.NewInt(1_700_000_100), Active: true}
	for i := range f.Strategies {
		f.Strategies[i].BaseAPY = big.NewInt(int64(500 + i*100))
		f.Strategies[i].BoostedAPY = big.NewInt(int64(750 + i*150))
		f.Strategies[i].TVL = usdc(int64(1000 * (i + 1)))
		f.Strategies[i].Active = i%2 == 0
		f.Strategies[i].Protocol = common.BigToAddress(big.NewInt(int64(i + 1)))
	}
	return f
}

func TestReadSnapshot_NormalizesEveryField(t *testing.T) {
	f := populatedFake()
	r := NewReader(f, testConfig())

	snap, err := r.ReadSnapshot(context.Background(), user)
	require.NoError(t, err)

	assert.Equal(t, common.HexToAddress(user), snap.Address)
	assert.Equal(t, "1000", snap.Stats.Principal.String())
	assert.Equal(t, "2.5", snap.Stats.CurrentRewards.String())
	assert.Equal(t, "15.25", snap.Stats.AverageAPY.String())
	assert.Equal(t, "0.5", snap.Stats.HourlyRate.String())
	assert.Equal(t, "12", snap.Stats.DailyRate.String())
	assert.Equal(t, "12.34", snap.AverageAPY.String())

	assert.Equal(t, "400", snap.Position.Aave.String())
	assert.Equal(t, "150", snap.Position.Yearn.String())
	assert.Equal(t, int64(1_700_000_000), snap.Position.LastUpdate)
	assert.Equal(t, uint8(3), snap.Position.AIOptLevel)

	assert.Equal(t, int64(95), snap.AIModel.Accuracy)
	assert.True(t, snap.AIModel.Active)

	require.Len(t, snap.Strategies, 8)
	for i, s := range snap.Strategies {
		assert.Equal(t, i, s.ID)
	}
	assert.Equal(t, "5", snap.Strategies[0].BaseAPY.String())
	assert.Equal(t, "7.5", snap.Strategies[0].BoostedAPY.String())
	assert.Equal(t, "8000", snap.Strategies[7].TVL.String())
	assert.False(t, snap.ReadAt.IsZero())

	assert.Equal(t, 8, f.Calls(ledgertest.MethodGetStrategy))
	assert.Equal(t, 0, f.WriteCalls())
}

func TestReadSnapshot_StrategyCountFromConfig(t *testing.T) {
	f := populatedFake()
	cfg := testConfig()
	cfg.StrategyCount = 3

	snap, err := NewReader(f, cfg).ReadSnapshot(context.Background(), user)
	require.NoError(t, err)
	assert.Len(t, snap.Strategies, 3)
	assert.Equal(t, 3, f.Calls(ledgertest.MethodGetStrategy))
}

func TestReadSnapshot_MalformedAddressMakesNoCalls(t *testing.T) {
	for _, addr := range []string{"", "0x123", "not-an-address", "0x5aaeb6053F3E94C9b9A09f33669435E7Ef1BeAed"} {
		f := populatedFake()
		_, err := NewReader(f, testConfig()).ReadSnapshot(context.Background(), addr)
		assert.True(t, apperror.Is(err, apperror.KindValidation), "address %q", addr)
		assert.Zero(t, f.TotalCalls(), "address %q", addr)
	}
}

func TestReadSnapshot_AnyFailureFailsWholeRead(t *testing.T) {
	methods := []string{
		ledgertest.MethodGetUserStats,
		ledgertest.MethodGetPosition,
		ledgertest.MethodGetAverageYield,
		ledgertest.MethodGetAIModel,
		ledgertest.MethodGetStrategy,
	}
	for _, method := range methods {
		t.Run(method, func(t *testing.T) {
			f := populatedFake()
			cause := errors.New("execution reverted")
			f.Errors[method] = cause

			snap, err := NewReader(f, testConfig()).ReadSnapshot(context.Background(), user)
			require.Error(t, err)
			assert.Equal(t, apperror.KindLedgerRead, apperror.KindOf(err))
			assert.ErrorIs(t, err, cause)
			assert.Empty(t, snap.Strategies)
		})
	}
}

func TestReadSnapshot_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewReader(populatedFake(), testConfig()).ReadSnapshot(ctx, user)
	assert.Equal(t, apperror.KindLedgerRead, apperror.KindOf(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadPrincipal(t *testing.T) {
	f := populatedFake()
	r := NewReader(f, testConfig())

	principal, err := r.ReadPrincipal(context.Background(), common.HexToAddress(user))
	require.NoError(t, err)
	assert.Equal(t, "1000000000", principal.String())

	f.Errors[ledgertest.MethodGetPosition] = errors.New("connection refused")
	_, err = r.ReadPrincipal(context.Background(), common.HexToAddress(user))
	assert.Equal(t, apperror.KindLedgerRead, apperror.KindOf(err))
}

func TestNormalizeAIModel(t *testing.T) {
	overflow := new(big.Int).Lsh(big.NewInt(1), 70)

	got := NormalizeAIModel(ledger.AIModel{PredictionAccuracy: big.NewInt(88), LastUpdate: overflow, Active: true})
	assert.Equal(t, int64(88), got.Accuracy)
	assert.Zero(t, got.LastUpdate)
	assert.True(t, got.Active)

	assert.Zero(t, NormalizeAIModel(ledger.AIModel{}).Accuracy)
}
