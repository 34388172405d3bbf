// Package aggregate derives reward projections and strategy views from a position snapshot.
// Everything here is pure and exact: no I/O and no floating point.
package aggregate

import (
	"github.com/shopspring/decimal"

	"github.com/jluxury929-hash/hyper/internal/model"
)

var (
	daysPerWeek  = decimal.NewFromInt(7)
	daysPerMonth = decimal.NewFromInt(30)
)

// ComputeMetrics turns a snapshot into its reward view. Weekly and monthly projections are
// the daily rate times 7 and 30; they do not compound.
func ComputeMetrics(s model.UserSnapshot) model.RewardSnapshot {
	total := TotalTVL(s.Strategies)

	views := make([]model.StrategyView, 0, len(s.Strategies))
	for _, strategy := range s.Strategies {
		views = append(views, strategyView(strategy, total))
	}

	return model.RewardSnapshot{
		Principal:         s.Stats.Principal,
		CurrentRewards:    s.Stats.CurrentRewards,
		TotalEarned:       s.Stats.TotalEarned,
		AverageAPY:        s.AverageAPY,
		HourlyRate:        s.Stats.HourlyRate,
		DailyRate:         s.Stats.DailyRate,
		WeeklyProjection:  WeeklyProjection(s.Stats.DailyRate),
		MonthlyProjection: MonthlyProjection(s.Stats.DailyRate),
		CatalogAPY:        WeightedAPY(s.Strategies),
		Position:          s.Position,
		AIModel:           s.AIModel,
		Strategies:        views,
	}
}

// WeeklyProjection extrapolates a daily rate over 7 days
func WeeklyProjection(daily decimal.Decimal) decimal.Decimal {
	return daily.Mul(daysPerWeek)
}

// MonthlyProjection extrapolates a daily rate over 30 days
func MonthlyProjection(daily decimal.Decimal) decimal.Decimal {
	return daily.Mul(daysPerMonth)
}

// TotalTVL sums the value locked across the catalog
func TotalTVL(strategies []model.Strategy) decimal.Decimal {
	total := decimal.Zero
	for _, s := range strategies {
		total = total.Add(s.TVL)
	}
	return total
}

// ActiveStrategies returns the strategies currently accepting allocations, in catalog order
func ActiveStrategies(strategies []model.Strategy) []model.Strategy {
	active := make([]model.Strategy, 0, len(strategies))
	for _, s := range strategies {
		if s.Active {
			active = append(active, s)
		}
	}
	return active
}

// WeightedAPY is the TVL-weighted boosted rate of the active strategies. Strategies with
// no value locked carry no weight; zero is returned when nothing is weighted.
func WeightedAPY(strategies []model.Strategy) decimal.Decimal {
	totalTVL := decimal.Zero
	weighted := decimal.Zero

	for _, s := range ActiveStrategies(strategies) {
		if !s.TVL.IsPositive() {
			continue
		}
		totalTVL = totalTVL.Add(s.TVL)
		weighted = weighted.Add(s.BoostedAPY.Mul(s.TVL))
	}

	if totalTVL.IsZero() {
		return decimal.Zero
	}
	return weighted.Div(totalTVL)
}

func strategyView(s model.Strategy, totalTVL decimal.Decimal) model.StrategyView {
	share := decimal.Zero
	if totalTVL.IsPositive() {
		share = s.TVL.Div(totalTVL)
	}
	return model.StrategyView{
		Strategy: s,
		Boost:    s.BoostedAPY.Sub(s.BaseAPY),
		TVLShare: share,
	}
}
