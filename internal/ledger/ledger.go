// Package ledger is the typed boundary to the HyperEngine and AI Optimizer contracts.
// Values crossing it are raw fixed-point integers; normalization happens in the callers.
package ledger

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// UserStats mirrors HyperEngine.getUserStats
type UserStats struct {
	Principal      *big.Int
	CurrentRewards *big.Int
	TotalEarned    *big.Int
	AverageAPY     *big.Int // basis points
	HourlyRate     *big.Int
	DailyRate      *big.Int
}

// Position mirrors HyperEngine.positions
type Position struct {
	Principal      *big.Int
	AaveAmount     *big.Int
	UniswapLP      *big.Int
	CompoundAmount *big.Int
	CurveAmount    *big.Int
	YearnAmount    *big.Int
	StakingAmount  *big.Int
	LastUpdate     *big.Int
	TotalRewards   *big.Int
	AIOptLevel     uint8
}

// Strategy mirrors HyperEngine.strategies
type Strategy struct {
	Name       string
	Protocol   common.Address
	BaseAPY    *big.Int // basis points
	BoostedAPY *big.Int // basis points
	Active     bool
	TVL        *big.Int
}

// AIModel mirrors AIOptimizer.userModels
type AIModel struct {
	PredictionAccuracy *big.Int
	LastUpdate         *big.Int
	Active             bool
}

// Receipt is the confirmation record of an included transaction
type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
	Succeeded   bool
}

// Reader covers the read-only contract calls
type Reader interface {
	GetUserStats(ctx context.Context, user common.Address) (UserStats, error)
	GetPosition(ctx context.Context, user common.Address) (Position, error)
	GetAverageYield(ctx context.Context) (*big.Int, error)
	GetStrategy(ctx context.Context, index int) (Strategy, error)
	GetAIModel(ctx context.Context, user common.Address) (AIModel, error)
}

// Optimizer covers the AI Optimizer queries
type Optimizer interface {
	PredictReturns(ctx context.Context, user common.Address, horizonSeconds *big.Int) (*big.Int, error)
	OptimizeYield(ctx context.Context, user common.Address) (*big.Int, error)
}

// Writer covers state-changing calls. Submissions return once the transaction is broadcast;
// WaitForConfirmation blocks until it is included or ctx ends.
type Writer interface {
	Deposit(ctx context.Context, amount *big.Int) (common.Hash, error)
	Withdraw(ctx context.Context, amount *big.Int) (common.Hash, error)
	Rebalance(ctx context.Context) (common.Hash, error)
	WaitForConfirmation(ctx context.Context, txHash common.Hash) (Receipt, error)
}

// Client is the full collaborator surface. Implementations must be safe for concurrent use.
type Client interface {
	Reader
	Optimizer
	Writer
}
