// Package position reads a user's full position from the ledger and normalizes it into
// decimal amounts and percentages.
package position

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jluxury929-hash/hyper/internal/apperror"
	"github.com/jluxury929-hash/hyper/internal/config"
	"github.com/jluxury929-hash/hyper/internal/ledger"
	"github.com/jluxury929-hash/hyper/internal/model"
	"github.com/jluxury929-hash/hyper/internal/otel"
	"github.com/jluxury929-hash/hyper/internal/units"
	"github.com/jluxury929-hash/hyper/internal/validation"
)

// Reader assembles UserSnapshots. It holds no per-user state.
type Reader struct {
	client        ledger.Reader
	strategyCount int
	decimals      int32
	now           func() time.Time
}

// NewReader creates a Reader over client using the catalog size and asset decimals from cfg
func NewReader(client ledger.Reader, cfg config.Config) *Reader {
	count := cfg.StrategyCount
	if count <= 0 {
		count = 8
	}
	return &Reader{
		client:        client,
		strategyCount: count,
		decimals:      cfg.AssetDecimals,
		now:           time.Now,
	}
}

// ReadSnapshot reads stats, position, the protocol average rate, the AI model and every
// strategy for address concurrently. The first failing read cancels the others and the
// whole snapshot fails; there is no partial result.
func (r *Reader) ReadSnapshot(ctx context.Context, address string) (model.UserSnapshot, error) {
	addr, err := validation.ParseAddress(address)
	if err != nil {
		return model.UserSnapshot{}, err
	}

	ctx, span := otel.StartSpan(ctx, "position.ReadSnapshot", attribute.String("user", addr.Hex()))
	defer span.End()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		firstErr   error
		stats      ledger.UserStats
		pos        ledger.Position
		average    *big.Int
		aiModel    ledger.AIModel
		strategies = make([]ledger.Strategy, r.strategyCount)
	)

	run := func(name string, read func(ctx context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := read(ctx); err != nil {
				mu.Lock()
				defer mu.Unlock()
				if firstErr == nil {
					firstErr = fmt.Errorf("%s: %w", name, err)
					cancel()
				}
			}
		}()
	}

	run("user stats", func(ctx context.Context) (err error) {
		stats, err = r.client.GetUserStats(ctx, addr)
		return err
	})
	run("position", func(ctx context.Context) (err error) {
		pos, err = r.client.GetPosition(ctx, addr)
		return err
	})
	run("average yield", func(ctx context.Context) (err error) {
		average, err = r.client.GetAverageYield(ctx)
		return err
	})
	run("ai model", func(ctx context.Context) (err error) {
		aiModel, err = r.client.GetAIModel(ctx, addr)
		return err
	})
	for i := 0; i < r.strategyCount; i++ {
		i := i
		run(fmt.Sprintf("strategy %d", i), func(ctx context.Context) (err error) {
			strategies[i], err = r.client.GetStrategy(ctx, i)
			return err
		})
	}

	wg.Wait()

	if firstErr != nil {
		otel.RecordError(ctx, firstErr)
		logrus.WithFields(logrus.Fields{
			"user":  addr.Hex(),
			"error": firstErr,
		}).Warn("Position read failed")
		return model.UserSnapshot{}, apperror.LedgerRead(firstErr)
	}

	snapshot := model.UserSnapshot{
		Address:    addr,
		Stats:      r.normalizeStats(stats),
		Position:   r.normalizePosition(pos),
		AverageAPY: units.BasisPointsToPercent(average),
		AIModel:    NormalizeAIModel(aiModel),
		Strategies: make([]model.Strategy, 0, len(strategies)),
		ReadAt:     r.now().UTC(),
	}
	for i, s := range strategies {
		snapshot.Strategies = append(snapshot.Strategies, r.normalizeStrategy(i, s))
	}

	logrus.WithFields(logrus.Fields{
		"user":       addr.Hex(),
		"principal":  snapshot.Stats.Principal.String(),
		"strategies": len(snapshot.Strategies),
	}).Debug("Position snapshot read")

	return snapshot, nil
}

// ReadPrincipal reads the current principal of addr in base units
func (r *Reader) ReadPrincipal(ctx context.Context, addr common.Address) (*big.Int, error) {
	ctx, span := otel.StartSpan(ctx, "position.ReadPrincipal", attribute.String("user", addr.Hex()))
	defer span.End()

	pos, err := r.client.GetPosition(ctx, addr)
	if err != nil {
		otel.RecordError(ctx, err)
		return nil, apperror.LedgerRead(fmt.Errorf("position: %w", err))
	}
	if pos.Principal == nil {
		return new(big.Int), nil
	}
	return new(big.Int).Set(pos.Principal), nil
}

func (r *Reader) amount(raw *big.Int) decimal.Decimal {
	return units.ToDecimal(raw, r.decimals)
}

func (r *Reader) normalizeStats(s ledger.UserStats) model.UserStats {
	return model.UserStats{
		Principal:      r.amount(s.Principal),
		CurrentRewards: r.amount(s.CurrentRewards),
		TotalEarned:    r.amount(s.TotalEarned),
		AverageAPY:     units.BasisPointsToPercent(s.AverageAPY),
		HourlyRate:     r.amount(s.HourlyRate),
		DailyRate:      r.amount(s.DailyRate),
	}
}

func (r *Reader) normalizePosition(p ledger.Position) model.Position {
	return model.Position{
		Principal:    r.amount(p.Principal),
		Aave:         r.amount(p.AaveAmount),
		Uniswap:      r.amount(p.UniswapLP),
		Compound:     r.amount(p.CompoundAmount),
		Curve:        r.amount(p.CurveAmount),
		Yearn:        r.amount(p.YearnAmount),
		Staking:      r.amount(p.StakingAmount),
		LastUpdate:   int64OrZero(p.LastUpdate),
		TotalRewards: r.amount(p.TotalRewards),
		AIOptLevel:   p.AIOptLevel,
	}
}

func (r *Reader) normalizeStrategy(id int, s ledger.Strategy) model.Strategy {
	return model.Strategy{
		ID:         id,
		Name:       s.Name,
		Protocol:   s.Protocol,
		BaseAPY:    units.BasisPointsToPercent(s.BaseAPY),
		BoostedAPY: units.BasisPointsToPercent(s.BoostedAPY),
		Active:     s.Active,
		TVL:        r.amount(s.TVL),
	}
}

// NormalizeAIModel converts the optimizer's model record; out-of-range integers read as zero
func NormalizeAIModel(m ledger.AIModel) model.AIModel {
	return model.AIModel{
		Accuracy:   int64OrZero(m.PredictionAccuracy),
		LastUpdate: int64OrZero(m.LastUpdate),
		Active:     m.Active,
	}
}

func int64OrZero(v *big.Int) int64 {
	if v == nil || !v.IsInt64() {
		return 0
	}
	return v.Int64()
}
