// Package model defines the normalized position, strategy and reward structures served by
// the hyper engine backend.
package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Strategy is one protocol-specific allocation target from the ledger catalog.
// It is refetched on every request.
type Strategy struct {
	ID       int            `json:"id"`
	Name     string         `json:"name"`
	Protocol common.Address `json:"protocol"`

	// BaseAPY and BoostedAPY are percentages (ledger basis points / 100)
	BaseAPY    decimal.Decimal `json:"baseAPY"`
	BoostedAPY decimal.Decimal `json:"boostedAPY"`

	Active bool            `json:"active"`
	TVL    decimal.Decimal `json:"tvl"`
}

// Position is a user's allocation across protocol buckets, owned by the ledger
type Position struct {
	Principal    decimal.Decimal `json:"principal"`
	Aave         decimal.Decimal `json:"aave"`
	Uniswap      decimal.Decimal `json:"uniswap"`
	Compound     decimal.Decimal `json:"compound"`
	Curve        decimal.Decimal `json:"curve"`
	Yearn        decimal.Decimal `json:"yearn"`
	Staking      decimal.Decimal `json:"staking"`
	LastUpdate   int64           `json:"lastUpdate"`
	TotalRewards decimal.Decimal `json:"totalRewards"`
	AIOptLevel   uint8           `json:"aiOptLevel"`
}

// UserStats holds the per-user reward figures reported by the ledger
type UserStats struct {
	Principal      decimal.Decimal `json:"principal"`
	CurrentRewards decimal.Decimal `json:"currentRewards"`
	TotalEarned    decimal.Decimal `json:"totalEarned"`

	// AverageAPY is the user's own average rate as a percentage
	AverageAPY decimal.Decimal `json:"averageAPY"`

	HourlyRate decimal.Decimal `json:"hourlyRate"`
	DailyRate  decimal.Decimal `json:"dailyRate"`
}

// AIModel is the optimizer's metadata for a user
type AIModel struct {
	Accuracy   int64 `json:"accuracy"`
	LastUpdate int64 `json:"lastUpdate"`
	Active     bool  `json:"active"`
}

// UserSnapshot is one consistent read of everything the ledger knows about a user
type UserSnapshot struct {
	Address  common.Address `json:"address"`
	Stats    UserStats      `json:"stats"`
	Position Position       `json:"position"`

	// AverageAPY is the protocol-wide average rate as a percentage
	AverageAPY decimal.Decimal `json:"averageAPY"`

	AIModel    AIModel    `json:"aiModel"`
	Strategies []Strategy `json:"strategies"`
	ReadAt     time.Time  `json:"readAt"`
}

// StrategyView is a strategy as displayed, with its performance relative to the catalog
type StrategyView struct {
	Strategy

	// Boost is the spread between the boosted and base rates, in percentage points
	Boost decimal.Decimal `json:"boost"`

	// TVLShare is this strategy's fraction of the catalog's total value locked
	TVLShare decimal.Decimal `json:"tvlShare"`
}

// RewardSnapshot is derived from a UserSnapshot and never stored.
// Weekly and monthly projections are linear extrapolations of the daily rate (x7, x30);
// they do not compound.
type RewardSnapshot struct {
	Principal         decimal.Decimal `json:"principal"`
	CurrentRewards    decimal.Decimal `json:"currentRewards"`
	TotalEarned       decimal.Decimal `json:"totalEarned"`
	AverageAPY        decimal.Decimal `json:"averageAPY"`
	HourlyRate        decimal.Decimal `json:"hourlyRate"`
	DailyRate         decimal.Decimal `json:"dailyRate"`
	WeeklyProjection  decimal.Decimal `json:"weeklyProjection"`
	MonthlyProjection decimal.Decimal `json:"monthlyProjection"`

	// CatalogAPY is the TVL-weighted boosted rate of the active strategies
	CatalogAPY decimal.Decimal `json:"catalogAPY"`

	Position  Position       `json:"position"`
	AIModel    AIModel        `json:"aiModel"`
	Strategies []StrategyView `json:"strategies"`
}

// TxKind is the kind of state-changing ledger call
type TxKind string

// Transaction kinds
const (
	TxDeposit   TxKind = "deposit"
	TxWithdraw  TxKind = "withdraw"
	TxRebalance TxKind = "rebalance"
)

// TxResult reports a confirmed state-changing call
type TxResult struct {
	ID          string          `json:"id"`
	Kind        TxKind          `json:"kind"`
	Address     common.Address  `json:"address"`
	TxHash      common.Hash     `json:"transactionHash"`
	BlockNumber uint64          `json:"blockNumber"`
	GasUsed     uint64          `json:"gasUsed"`
	Amount      decimal.Decimal `json:"amount"`

	// NewAPY is the optimizer's post-rebalance rate as a percentage; rebalance only
	NewAPY decimal.Decimal `json:"newAPY"`
}
