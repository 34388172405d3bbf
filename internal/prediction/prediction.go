// Package prediction queries the AI optimizer for projected returns and optimized rates.
package prediction

import (
	"context"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jluxury929-hash/hyper/internal/apperror"
	"github.com/jluxury929-hash/hyper/internal/config"
	"github.com/jluxury929-hash/hyper/internal/ledger"
	"github.com/jluxury929-hash/hyper/internal/model"
	"github.com/jluxury929-hash/hyper/internal/otel"
	"github.com/jluxury929-hash/hyper/internal/position"
	"github.com/jluxury929-hash/hyper/internal/units"
	"github.com/jluxury929-hash/hyper/internal/validation"
)

// SecondsPerDay converts a horizon in days to the optimizer's seconds
const SecondsPerDay = 24 * 60 * 60

// DefaultHorizonDays is used when no positive horizon is given
const DefaultHorizonDays = 30

// MaxHorizonDays is the longest horizon whose length in seconds fits an int64
const MaxHorizonDays = math.MaxInt64 / SecondsPerDay

// Prediction is the optimizer's projected return for a horizon
type Prediction struct {
	Address          common.Address
	PredictedReturns decimal.Decimal
	HorizonDays      int
	HorizonSeconds   int64
	Model            model.AIModel
}

// Client wraps the optimizer calls. It keeps no local model and never falls back to one.
type Client struct {
	optimizer      ledger.Optimizer
	reader         ledger.Reader
	decimals       int32
	defaultHorizon int
}

// NewClient creates a prediction Client
func NewClient(optimizer ledger.Optimizer, reader ledger.Reader, cfg config.Config) *Client {
	horizon := cfg.DefaultHorizonDays
	if horizon <= 0 {
		horizon = DefaultHorizonDays
	}
	return &Client{
		optimizer:      optimizer,
		reader:         reader,
		decimals:       cfg.AssetDecimals,
		defaultHorizon: horizon,
	}
}

// HorizonSeconds returns the horizon in seconds, substituting the default for days <= 0
func (c *Client) HorizonSeconds(days int) (int, int64) {
	if days <= 0 {
		days = c.defaultHorizon
	}
	return days, int64(days) * SecondsPerDay
}

// Predict returns the projected returns for address over days. A non-positive horizon
// means the default of 30 days.
func (c *Client) Predict(ctx context.Context, address string, days int) (Prediction, error) {
	addr, err := validation.ParseAddress(address)
	if err != nil {
		return Prediction{}, err
	}

	if int64(days) > MaxHorizonDays {
		return Prediction{}, apperror.Validation("horizon of %d days is too long; the maximum is %d", days, int64(MaxHorizonDays))
	}
	days, seconds := c.HorizonSeconds(days)

	ctx, span := otel.StartSpan(ctx, "prediction.Predict",
		attribute.String("user", addr.Hex()),
		attribute.Int64("horizon_seconds", seconds),
	)
	defer span.End()

	raw, err := c.optimizer.PredictReturns(ctx, addr, big.NewInt(seconds))
	if err != nil {
		otel.RecordError(ctx, err)
		logrus.WithFields(logrus.Fields{"user": addr.Hex(), "error": err}).Warn("Prediction failed")
		return Prediction{}, apperror.Prediction("", err)
	}

	m, err := c.reader.GetAIModel(ctx, addr)
	if err != nil {
		otel.RecordError(ctx, err)
		return Prediction{}, apperror.Prediction("", err)
	}

	return Prediction{
		Address:          addr,
		PredictedReturns: units.ToDecimal(raw, c.decimals),
		HorizonDays:      days,
		HorizonSeconds:   seconds,
		Model:            position.NormalizeAIModel(m),
	}, nil
}

// OptimizedYield returns the optimizer's current rate for addr as a percentage.
// txHash ties a failure to the transaction that preceded the query, if any.
func (c *Client) OptimizedYield(ctx context.Context, addr common.Address, txHash string) (decimal.Decimal, error) {
	ctx, span := otel.StartSpan(ctx, "prediction.OptimizedYield", attribute.String("user", addr.Hex()))
	defer span.End()

	bp, err := c.optimizer.OptimizeYield(ctx, addr)
	if err != nil {
		otel.RecordError(ctx, err)
		return decimal.Zero, apperror.Prediction(txHash, err)
	}
	return units.BasisPointsToPercent(bp), nil
}
