package prediction

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
	"github.com/jluxury929-hash/hyper/internal/position"
)

const user = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

func newClient(f *ledgertest.Fake) *Client {
	return NewClient(f, f, config.Config{AssetDecimals: 6, DefaultHorizonDays: 30})
}

func TestPredict_HorizonDefaults(t *testing.T) {
	tests := []struct {
		name    string
		days    int
		wantDay int
		wantSec int64
	}{
		{name: "omitted", days: 0, wantDay: 30, wantSec: 2_592_000},
		{name: "negative", days: -4, wantDay: 30, wantSec: 2_592_000},
		{name: "one day", days: 1, wantDay: 1, wantSec: 86_400},
		{name: "one year", days: 365, wantDay: 365, wantSec: 31_536_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := ledgertest.New()
			f.Prediction = big.NewInt(123_456_789)

			got, err := newClient(f).Predict(context.Background(), user, tt.days)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDay, got.HorizonDays)
			assert.Equal(t, tt.wantSec, got.HorizonSeconds)
			assert.Equal(t, "123.456789", got.PredictedReturns.String())

			horizons := f.Horizons()
			require.Len(t, horizons, 1)
			assert.Equal(t, tt.wantSec, horizons[0].Int64())
		})
	}
}

func TestPredict_ReportsModel(t *testing.T) {
	f := ledgertest.New()
	f.Model = ledger.AIModel{PredictionAccuracy: big.NewInt(92), LastUpdate: big.NewInt(1_700_000_000), Active: true}

	got, err := newClient(f).Predict(context.Background(), user, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(92), got.Model.Accuracy)
	assert.Equal(t, int64(1_700_000_000), got.Model.LastUpdate)
	assert.True(t, got.Model.Active)
	assert.Equal(t, common.HexToAddress(user), got.Address)
}

func TestPredict_Failures(t *testing.T) {
	f := ledgertest.New()
	_, err := newClient(f).Predict(context.Background(), "0xnope", 7)
	assert.True(t, apperror.Is(err, apperror.KindValidation))
	assert.Zero(t, f.TotalCalls())

	for _, method := range []string{ledgertest.MethodPredictReturns, ledgertest.MethodGetAIModel} {
		f := ledgertest.New()
		f.Errors[method] = errors.New("execution reverted")
		_, err := newClient(f).Predict(context.Background(), user, 7)
		assert.Equal(t, apperror.KindPrediction, apperror.KindOf(err), method)
	}
}

func TestOptimizedYield(t *testing.T) {
	f := ledgertest.New()
	f.OptimizedYield = big.NewInt(2150)
	c := newClient(f)

	apy, err := c.OptimizedYield(context.Background(), common.HexToAddress(user), "")
	require.NoError(t, err)
	assert.Equal(t, "21.5", apy.String())

	f.Errors[ledgertest.MethodOptimizeYield] = errors.New("boom")
	_, err = c.OptimizedYield(context.Background(), common.HexToAddress(user), "0xabc")
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.KindPrediction, appErr.Kind)
	assert.Equal(t, "0xabc", appErr.TxHash)
}

func TestPredict_HorizonTooLongIsRejected(t *testing.T) {
	f := ledgertest.New()
	c := newClient(f)

	_, err := c.Predict(context.Background(), user, int(MaxHorizonDays+1))
	assert.True(t, apperror.Is(err, apperror.KindValidation))
	assert.Zero(t, f.TotalCalls())

	got, err := c.Predict(context.Background(), user, int(MaxHorizonDays))
	require.NoError(t, err)
	assert.Equal(t, int64(MaxHorizonDays)*SecondsPerDay, got.HorizonSeconds)
	assert.Positive(t, got.HorizonSeconds)
}

func TestPredict_ModelMatchesSnapshotNormalization(t *testing.T) {
	f := ledgertest.New()
	f.Model = ledger.AIModel{PredictionAccuracy: new(big.Int).Lsh(big.NewInt(1), 80), LastUpdate: big.NewInt(5), Active: true}

	got, err := newClient(f).Predict(context.Background(), user, 7)
	require.NoError(t, err)
	assert.Equal(t, position.NormalizeAIModel(f.Model), got.Model)
	assert.Zero(t, got.Model.Accuracy)
}
