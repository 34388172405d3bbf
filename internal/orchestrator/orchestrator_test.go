package orchestrator

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jluxury929-hash/hyper/internal/apperror"
	"github.com/jluxury929-hash/hyper/internal/config"
	"github.com/jluxury929-hash/hyper/internal/ledger"
	"github.com/jluxury929-hash/hyper/internal/ledger/ledgertest"
	"github.com/jluxury929-hash/hyper/internal/model"
	"github.com/jluxury929-hash/hyper/internal/notify"
	"github.com/jluxury929-hash/hyper/internal/position"
	"github.com/jluxury929-hash/hyper/internal/prediction"
)

const user = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

type recordingSink struct {
	mu     sync.Mutex
	events []notify.Event
}

func (s *recordingSink) Add(ev notify.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func testConfig() config.Config {
	return config.Config{
		StrategyCount:  8,
		AssetDecimals:  6,
		MinDeposit:     decimal.NewFromInt(50),
		ConfirmTimeout: time.Second,
	}
}

func newOrchestrator(f *ledgertest.Fake, cfg config.Config) (*Orchestrator, *recordingSink) {
	sink := &recordingSink{}
	o := New(f, position.NewReader(f, cfg), prediction.NewClient(f, f, cfg), cfg).WithEvents(sink)
	return o, sink
}

func TestDeposit_BelowMinimumIsRejectedWithoutWrites(t *testing.T) {
	f := ledgertest.New()
	o, sink := newOrchestrator(f, testConfig())

	for _, amount := range []string{"49", "49.999999", "0", "-10"} {
		_, err := o.Deposit(context.Background(), user, decimal.RequireFromString(amount))
		assert.True(t, apperror.Is(err, apperror.KindValidation), "amount %s", amount)
	}

	assert.Zero(t, f.WriteCalls())
	assert.Zero(t, f.TotalCalls())
	assert.Empty(t, sink.events)
}

func TestDeposit_ConvertsToBaseUnits(t *testing.T) {
	f := ledgertest.New()
	f.Receipt = ledger.Receipt{BlockNumber: 1234, GasUsed: 98765, Succeeded: true}
	o, sink := newOrchestrator(f, testConfig())

	res, err := o.Deposit(context.Background(), user, decimal.NewFromInt(50))
	require.NoError(t, err)

	deposits := f.Deposits()
	require.Len(t, deposits, 1)
	assert.Equal(t, "50000000", deposits[0].String())

	assert.Equal(t, model.TxDeposit, res.Kind)
	assert.Equal(t, common.HexToAddress(user), res.Address)
	assert.NotEqual(t, common.Hash{}, res.TxHash)
	assert.Equal(t, uint64(1234), res.BlockNumber)
	assert.Equal(t, uint64(98765), res.GasUsed)
	assert.Equal(t, "50", res.Amount.String())
	assert.NotEmpty(t, res.ID)

	require.Len(t, sink.events, 1)
	assert.Equal(t, string(StateConfirmed), sink.events[0].State)
	assert.Equal(t, res.TxHash.Hex(), sink.events[0].TxHash)
	assert.Empty(t, sink.events[0].ErrorKind)
}

func TestDeposit_RejectsExcessPrecision(t *testing.T) {
	f := ledgertest.New()
	o, _ := newOrchestrator(f, testConfig())

	_, err := o.Deposit(context.Background(), user, decimal.RequireFromString("50.0000001"))
	assert.True(t, apperror.Is(err, apperror.KindValidation))
	assert.Zero(t, f.WriteCalls())
}

func TestWrites_MalformedAddressMakesNoCalls(t *testing.T) {
	f := ledgertest.New()
	o, _ := newOrchestrator(f, testConfig())
	ctx := context.Background()
	amount := decimal.NewFromInt(100)

	_, err := o.Deposit(ctx, "0x12", amount)
	assert.True(t, apperror.Is(err, apperror.KindValidation))
	_, err = o.Withdraw(ctx, "nope", nil)
	assert.True(t, apperror.Is(err, apperror.KindValidation))
	_, err = o.Rebalance(ctx, "")
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	assert.Zero(t, f.TotalCalls())
}

func TestWithdraw_FullReadsPrincipalAtSubmission(t *testing.T) {
	f := ledgertest.New()
	// The principal changes between reads; the withdrawal must use the read made for it.
	f.PositionFunc = func(call int) ledger.Position {
		return ledger.Position{Principal: big.NewInt(int64(call) * 1_000_000)}
	}
	o, _ := newOrchestrator(f, testConfig())

	_, err := position.NewReader(f, testConfig()).ReadPrincipal(context.Background(), common.HexToAddress(user))
	require.NoError(t, err)

	res, err := o.Withdraw(context.Background(), user, nil)
	require.NoError(t, err)

	withdrawals := f.Withdrawals()
	require.Len(t, withdrawals, 1)
	assert.Equal(t, "2000000", withdrawals[0].String())
	assert.Equal(t, "2", res.Amount.String())
	assert.Equal(t, 2, f.Calls(ledgertest.MethodGetPosition))
}

func TestWithdraw_ExplicitAmount(t *testing.T) {
	f := ledgertest.New()
	o, _ := newOrchestrator(f, testConfig())

	amount := decimal.RequireFromString("12.5")
	_, err := o.Withdraw(context.Background(), user, &amount)
	require.NoError(t, err)

	assert.Equal(t, "12500000", f.Withdrawals()[0].String())
	assert.Zero(t, f.Calls(ledgertest.MethodGetPosition))
}

func TestWithdraw_Rejections(t *testing.T) {
	f := ledgertest.New()
	o, _ := newOrchestrator(f, testConfig())
	ctx := context.Background()

	zero := decimal.Zero
	_, err := o.Withdraw(ctx, user, &zero)
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	negative := decimal.NewFromInt(-1)
	_, err = o.Withdraw(ctx, user, &negative)
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	f.Position = ledger.Position{Principal: big.NewInt(0)}
	_, err = o.Withdraw(ctx, user, nil)
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	assert.Zero(t, f.WriteCalls())
}

func TestWithdraw_PrincipalReadFailure(t *testing.T) {
	f := ledgertest.New()
	f.Errors[ledgertest.MethodGetPosition] = errors.New("connection refused")
	o, sink := newOrchestrator(f, testConfig())

	_, err := o.Withdraw(context.Background(), user, nil)
	assert.Equal(t, apperror.KindLedgerRead, apperror.KindOf(err))
	assert.Zero(t, f.WriteCalls())

	require.Len(t, sink.events, 1)
	ev := sink.events[0]
	assert.Equal(t, string(StateRejected), ev.State)
	assert.Equal(t, string(model.TxWithdraw), ev.Kind)
	assert.Equal(t, string(apperror.KindLedgerRead), ev.ErrorKind)
	assert.Empty(t, ev.TxHash)
	assert.Empty(t, ev.Amount)
}

func TestSubmissionFailureIsLedgerWriteError(t *testing.T) {
	f := ledgertest.New()
	f.Errors[ledgertest.MethodDeposit] = errors.New("insufficient funds for gas")
	o, sink := newOrchestrator(f, testConfig())

	_, err := o.Deposit(context.Background(), user, decimal.NewFromInt(100))
	assert.Equal(t, apperror.KindLedgerWrite, apperror.KindOf(err))
	assert.Zero(t, f.Calls(ledgertest.MethodWaitForConfirmation))

	require.Len(t, sink.events, 1)
	assert.Equal(t, string(StateFailed), sink.events[0].State)
	assert.Equal(t, string(apperror.KindLedgerWrite), sink.events[0].ErrorKind)
}

func TestConfirmationTimeoutIsDistinctFromWriteError(t *testing.T) {
	t.Run("timeout", func(t *testing.T) {
		f := ledgertest.New()
		f.BlockConfirmation = true
		cfg := testConfig()
		cfg.ConfirmTimeout = 50 * time.Millisecond
		o, sink := newOrchestrator(f, cfg)

		_, err := o.Deposit(context.Background(), user, decimal.NewFromInt(100))

		var appErr *apperror.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperror.KindTimeout, appErr.Kind)
		assert.NotEmpty(t, appErr.TxHash)
		assert.NotEqual(t, apperror.KindLedgerWrite, appErr.Kind)

		require.Len(t, sink.events, 1)
		assert.Equal(t, string(StateSubmitted), sink.events[0].State)
	})

	t.Run("caller abandons wait", func(t *testing.T) {
		f := ledgertest.New()
		f.BlockConfirmation = true
		o, _ := newOrchestrator(f, testConfig())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()

		_, err := o.Deposit(ctx, user, decimal.NewFromInt(100))
		assert.Equal(t, apperror.KindTimeout, apperror.KindOf(err))
	})

	t.Run("reverted", func(t *testing.T) {
		f := ledgertest.New()
		f.Receipt = ledger.Receipt{BlockNumber: 9, Succeeded: false}
		o, _ := newOrchestrator(f, testConfig())

		_, err := o.Deposit(context.Background(), user, decimal.NewFromInt(100))
		var appErr *apperror.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperror.KindLedgerWrite, appErr.Kind)
		assert.NotEmpty(t, appErr.TxHash)
		assert.ErrorIs(t, err, ErrReverted)
	})

	t.Run("receipt lookup error", func(t *testing.T) {
		f := ledgertest.New()
		f.Errors[ledgertest.MethodWaitForConfirmation] = errors.New("rpc unavailable")
		o, _ := newOrchestrator(f, testConfig())

		_, err := o.Deposit(context.Background(), user, decimal.NewFromInt(100))
		assert.Equal(t, apperror.KindLedgerWrite, apperror.KindOf(err))
	})
}

func TestRebalance(t *testing.T) {
	f := ledgertest.New()
	f.OptimizedYield = big.NewInt(1875)
	o, _ := newOrchestrator(f, testConfig())

	res, err := o.Rebalance(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, model.TxRebalance, res.Kind)
	assert.Equal(t, "18.75", res.NewAPY.String())
	assert.Equal(t, 1, f.Calls(ledgertest.MethodRebalance))
	assert.Equal(t, 1, f.Calls(ledgertest.MethodOptimizeYield))
}

func TestRebalance_OptimizerFailureAfterConfirmation(t *testing.T) {
	f := ledgertest.New()
	f.Errors[ledgertest.MethodOptimizeYield] = errors.New("execution reverted")
	o, sink := newOrchestrator(f, testConfig())

	_, err := o.Rebalance(context.Background(), user)
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.KindPrediction, appErr.Kind)
	assert.NotEmpty(t, appErr.TxHash)

	require.Len(t, sink.events, 1)
	assert.Equal(t, string(StateConfirmed), sink.events[0].State)
}

func TestStateTransitions(t *testing.T) {
	tx := newPending(model.TxDeposit, common.HexToAddress(user))
	now := time.Now()

	assert.Error(t, tx.moveTo(StateSubmitted, now))
	require.NoError(t, tx.moveTo(StateValidated, now))
	assert.Error(t, tx.moveTo(StateConfirmed, now))
	require.NoError(t, tx.moveTo(StateSubmitted, now))
	require.NoError(t, tx.moveTo(StateConfirmed, now))
	assert.Error(t, tx.moveTo(StateFailed, now))

	assert.Len(t, tx.History, 3)
	assert.True(t, StateConfirmed.Terminal())
	assert.True(t, StateRejected.Terminal())
	assert.False(t, StateSubmitted.Terminal())
	assert.True(t, CanTransition(StateNew, StateRejected))
	assert.False(t, CanTransition(StateValidated, StateRejected))
}
