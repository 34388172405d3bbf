// Package ledgertest provides an in-memory ledger.Client that records every call.
package ledgertest

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/jluxury929-hash/hyper/internal/ledger"
)

// Method names used for call counting and error injection
const (
	MethodGetUserStats        = "getUserStats"
	MethodGetPosition         = "positions"
	MethodGetAverageYield     = "getAverageAPY"
	MethodGetStrategy         = "strategies"
	MethodGetAIModel          = "userModels"
	MethodPredictReturns      = "predictReturns"
	MethodOptimizeYield       = "optimizeYield"
	MethodDeposit             = "deposit"
	MethodWithdraw            = "withdraw"
	MethodRebalance           = "autoRebalance"
	MethodWaitForConfirmation = "waitForConfirmation"
)

var writeMethods = []string{MethodDeposit, MethodWithdraw, MethodRebalance}

// Fake is a scripted ledger. Set its fields before use; it is safe for concurrent calls.
type Fake struct {
	mu sync.Mutex

	Stats          ledger.UserStats
	Position       ledger.Position
	AverageYield   *big.Int
	Strategies     []ledger.Strategy
	Model          ledger.AIModel
	Prediction     *big.Int
	OptimizedYield *big.Int

	// Errors forces a method to fail
	Errors map[string]error

	// PositionFunc, when set, answers GetPosition instead of Position
	PositionFunc func(call int) ledger.Position

	// Receipt is returned by WaitForConfirmation; TxHash is filled in when zero
	Receipt ledger.Receipt

	// BlockConfirmation makes WaitForConfirmation wait until ctx ends
	BlockConfirmation bool

	calls       map[string]int
	deposits    []*big.Int
	withdrawals []*big.Int
	horizons    []*big.Int
	nextNonce   uint64
}

var _ ledger.Client = (*Fake)(nil)

// New returns a Fake with a successful receipt and eight empty strategies
func New() *Fake {
	f := &Fake{
		AverageYield:   big.NewInt(0),
		Prediction:     big.NewInt(0),
		OptimizedYield: big.NewInt(0),
		Errors:         map[string]error{},
		Receipt:        ledger.Receipt{BlockNumber: 1, GasUsed: 21000, Succeeded: true},
	}
	for i := 0; i < 8; i++ {
		f.Strategies = append(f.Strategies, ledger.Strategy{
			Name:       fmt.Sprintf("strategy-%d", i),
			BaseAPY:    big.NewInt(0),
			BoostedAPY: big.NewInt(0),
			TVL:        big.NewInt(0),
		})
	}
	return f
}

// Calls returns how many times method was invoked
func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// TotalCalls returns the number of invocations across all methods
func (f *Fake) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

// WriteCalls returns the number of state-changing submissions
func (f *Fake) WriteCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, m := range writeMethods {
		total += f.calls[m]
	}
	return total
}

// Deposits returns the amounts submitted to Deposit
func (f *Fake) Deposits() []*big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*big.Int(nil), f.deposits...)
}

// Withdrawals returns the amounts submitted to Withdraw
func (f *Fake) Withdrawals() []*big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*big.Int(nil), f.withdrawals...)
}

// Horizons returns the horizons passed to PredictReturns
func (f *Fake) Horizons() []*big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*big.Int(nil), f.horizons...)
}

// record counts the call and returns the injected error for method, if any
func (f *Fake) record(method string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[method]++
	return f.calls[method], f.Errors[method]
}

func (f *Fake) GetUserStats(ctx context.Context, user common.Address) (ledger.UserStats, error) {
	if _, err := f.record(MethodGetUserStats); err != nil {
		return ledger.UserStats{}, err
	}
	return f.Stats, ctx.Err()
}

func (f *Fake) GetPosition(ctx context.Context, user common.Address) (ledger.Position, error) {
	n, err := f.record(MethodGetPosition)
	if err != nil {
		return ledger.Position{}, err
	}
	if f.PositionFunc != nil {
		return f.PositionFunc(n), nil
	}
	return f.Position, ctx.Err()
}

func (f *Fake) GetAverageYield(ctx context.Context) (*big.Int, error) {
	if _, err := f.record(MethodGetAverageYield); err != nil {
		return nil, err
	}
	return f.AverageYield, ctx.Err()
}

func (f *Fake) GetStrategy(ctx context.Context, index int) (ledger.Strategy, error) {
	if _, err := f.record(MethodGetStrategy); err != nil {
		return ledger.Strategy{}, err
	}
	if index < 0 || index >= len(f.Strategies) {
		return ledger.Strategy{}, fmt.Errorf("strategies: index %d out of range", index)
	}
	return f.Strategies[index], ctx.Err()
}

func (f *Fake) GetAIModel(ctx context.Context, user common.Address) (ledger.AIModel, error) {
	if _, err := f.record(MethodGetAIModel); err != nil {
		return ledger.AIModel{}, err
	}
	return f.Model, ctx.Err()
}

func (f *Fake) PredictReturns(ctx context.Context, user common.Address, horizonSeconds *big.Int) (*big.Int, error) {
	if _, err := f.record(MethodPredictReturns); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.horizons = append(f.horizons, new(big.Int).Set(horizonSeconds))
	f.mu.Unlock()
	return f.Prediction, ctx.Err()
}

func (f *Fake) OptimizeYield(ctx context.Context, user common.Address) (*big.Int, error) {
	if _, err := f.record(MethodOptimizeYield); err != nil {
		return nil, err
	}
	return f.OptimizedYield, ctx.Err()
}

func (f *Fake) Deposit(ctx context.Context, amount *big.Int) (common.Hash, error) {
	if _, err := f.record(MethodDeposit); err != nil {
		return common.Hash{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deposits = append(f.deposits, new(big.Int).Set(amount))
	return f.hash(), nil
}

func (f *Fake) Withdraw(ctx context.Context, amount *big.Int) (common.Hash, error) {
	if _, err := f.record(MethodWithdraw); err != nil {
		return common.Hash{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.withdrawals = append(f.withdrawals, new(big.Int).Set(amount))
	return f.hash(), nil
}

func (f *Fake) Rebalance(ctx context.Context) (common.Hash, error) {
	if _, err := f.record(MethodRebalance); err != nil {
		return common.Hash{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hash(), nil
}

func (f *Fake) WaitForConfirmation(ctx context.Context, txHash common.Hash) (ledger.Receipt, error) {
	if _, err := f.record(MethodWaitForConfirmation); err != nil {
		return ledger.Receipt{}, err
	}
	if f.BlockConfirmation {
		<-ctx.Done()
		return ledger.Receipt{}, ctx.Err()
	}
	receipt := f.Receipt
	if receipt.TxHash == (common.Hash{}) {
		receipt.TxHash = txHash
	}
	return receipt, nil
}

// hash derives a distinct transaction hash per submission; callers hold mu
func (f *Fake) hash() common.Hash {
	f.nextNonce++
	return common.BigToHash(new(big.Int).SetUint64(0xabc000 + f.nextNonce))
}
