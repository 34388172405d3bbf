package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jluxury929-hash/hyper/internal/circuitbreaker"
	"github.com/jluxury929-hash/hyper/internal/otel"
	"github.com/jluxury929-hash/hyper/internal/security"
)

// DefaultPollInterval is the default interval for polling transaction receipts
const DefaultPollInterval = 2 * time.Second

// Options configures an EVMClient
type Options struct {
	RPCURL      string
	HyperEngine common.Address
	AIOptimizer common.Address

	// ChainID 0 asks the node
	ChainID int64

	Signer *security.Signer

	// Transport-level retries for transient RPC failures
	RetryMax int

	PollInterval time.Duration

	// Breaker is optional; when set every contract call and broadcast goes through it
	Breaker *circuitbreaker.CircuitBreaker
}

// EVMClient talks to the HyperEngine and AI Optimizer contracts through go-ethereum.
// One instance is created at startup and shared by all requests.
type EVMClient struct {
	eth          *ethclient.Client
	engine       *bind.BoundContract
	optimizer    *bind.BoundContract
	auth         *bind.TransactOpts
	from         common.Address
	pollInterval time.Duration
	breaker      *circuitbreaker.CircuitBreaker
}

var _ Client = (*EVMClient)(nil)

// Dial connects to the ledger node and binds both contracts
func Dial(ctx context.Context, opts Options) (*EVMClient, error) {
	if opts.Signer == nil {
		return nil, errors.New("a transaction signer is required")
	}

	eth, err := dialRPC(ctx, opts.RPCURL, opts.RetryMax)
	if err != nil {
		return nil, err
	}

	chainID := big.NewInt(opts.ChainID)
	if opts.ChainID == 0 {
		chainID, err = eth.ChainID(ctx)
		if err != nil {
			eth.Close()
			return nil, fmt.Errorf("error querying chain id: %w", err)
		}
	}

	auth, err := opts.Signer.TransactOpts(chainID)
	if err != nil {
		eth.Close()
		return nil, err
	}

	engineABI, err := abi.JSON(strings.NewReader(HyperEngineABI))
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("error parsing HyperEngine ABI: %w", err)
	}
	optimizerABI, err := abi.JSON(strings.NewReader(AIOptimizerABI))
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("error parsing AIOptimizer ABI: %w", err)
	}

	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	logrus.WithFields(logrus.Fields{
		"chain_id":     chainID.String(),
		"hyper_engine": opts.HyperEngine.Hex(),
		"ai_optimizer": opts.AIOptimizer.Hex(),
		"signer":       opts.Signer.Address().Hex(),
	}).Info("Ledger client connected")

	return &EVMClient{
		eth:          eth,
		engine:       bind.NewBoundContract(opts.HyperEngine, engineABI, eth, eth, eth),
		optimizer:    bind.NewBoundContract(opts.AIOptimizer, optimizerABI, eth, eth, eth),
		auth:         auth,
		from:         opts.Signer.Address(),
		pollInterval: pollInterval,
		breaker:      opts.Breaker,
	}, nil
}

// Close releases the RPC connection
func (c *EVMClient) Close() {
	c.eth.Close()
}

// GetUserStats reads HyperEngine.getUserStats
func (c *EVMClient) GetUserStats(ctx context.Context, user common.Address) (UserStats, error) {
	values, err := c.call(ctx, c.engine, "getUserStats", user)
	if err != nil {
		return UserStats{}, err
	}

	out := newOutputs("getUserStats", values, 6)
	stats := UserStats{
		Principal:      out.bigInt(0),
		CurrentRewards: out.bigInt(1),
		TotalEarned:    out.bigInt(2),
		AverageAPY:     out.bigInt(3),
		HourlyRate:     out.bigInt(4),
		DailyRate:      out.bigInt(5),
	}
	return stats, out.err
}

// GetPosition reads HyperEngine.positions
func (c *EVMClient) GetPosition(ctx context.Context, user common.Address) (Position, error) {
	values, err := c.call(ctx, c.engine, "positions", user)
	if err != nil {
		return Position{}, err
	}

	out := newOutputs("positions", values, 10)
	position := Position{
		Principal:      out.bigInt(0),
		AaveAmount:     out.bigInt(1),
		UniswapLP:      out.bigInt(2),
		CompoundAmount: out.bigInt(3),
		CurveAmount:    out.bigInt(4),
		YearnAmount:    out.bigInt(5),
		StakingAmount:  out.bigInt(6),
		LastUpdate:     out.bigInt(7),
		TotalRewards:   out.bigInt(8),
		AIOptLevel:     out.u8(9),
	}
	return position, out.err
}

// GetAverageYield reads HyperEngine.getAverageAPY in basis points
func (c *EVMClient) GetAverageYield(ctx context.Context) (*big.Int, error) {
	values, err := c.call(ctx, c.engine, "getAverageAPY")
	if err != nil {
		return nil, err
	}
	out := newOutputs("getAverageAPY", values, 1)
	return out.bigInt(0), out.err
}

// GetStrategy reads HyperEngine.strategies(index)
func (c *EVMClient) GetStrategy(ctx context.Context, index int) (Strategy, error) {
	values, err := c.call(ctx, c.engine, "strategies", big.NewInt(int64(index)))
	if err != nil {
		return Strategy{}, err
	}

	out := newOutputs("strategies", values, 6)
	strategy := Strategy{
		Name:       out.str(0),
		Protocol:   out.address(1),
		BaseAPY:    out.bigInt(2),
		BoostedAPY: out.bigInt(3),
		Active:     out.boolean(4),
		TVL:        out.bigInt(5),
	}
	return strategy, out.err
}

// GetAIModel reads AIOptimizer.userModels
func (c *EVMClient) GetAIModel(ctx context.Context, user common.Address) (AIModel, error) {
	values, err := c.call(ctx, c.optimizer, "userModels", user)
	if err != nil {
		return AIModel{}, err
	}

	out := newOutputs("userModels", values, 3)
	model := AIModel{
		PredictionAccuracy: out.bigInt(0),
		LastUpdate:         out.bigInt(1),
		Active:             out.boolean(2),
	}
	return model, out.err
}

// PredictReturns reads AIOptimizer.predictReturns for a horizon in seconds
func (c *EVMClient) PredictReturns(ctx context.Context, user common.Address, horizonSeconds *big.Int) (*big.Int, error) {
	values, err := c.call(ctx, c.optimizer, "predictReturns", user, horizonSeconds)
	if err != nil {
		return nil, err
	}
	out := newOutputs("predictReturns", values, 1)
	return out.bigInt(0), out.err
}

// OptimizeYield evaluates AIOptimizer.optimizeYield as a static call and returns the
// optimized rate in basis points. No transaction is sent.
func (c *EVMClient) OptimizeYield(ctx context.Context, user common.Address) (*big.Int, error) {
	values, err := c.call(ctx, c.optimizer, "optimizeYield", user)
	if err != nil {
		return nil, err
	}
	out := newOutputs("optimizeYield", values, 1)
	return out.bigInt(0), out.err
}

// Deposit submits HyperEngine.deposit
func (c *EVMClient) Deposit(ctx context.Context, amount *big.Int) (common.Hash, error) {
	return c.transact(ctx, c.engine, "deposit", amount)
}

// Withdraw submits HyperEngine.withdraw
func (c *EVMClient) Withdraw(ctx context.Context, amount *big.Int) (common.Hash, error) {
	return c.transact(ctx, c.engine, "withdraw", amount)
}

// Rebalance submits HyperEngine.autoRebalance
func (c *EVMClient) Rebalance(ctx context.Context) (common.Hash, error) {
	return c.transact(ctx, c.engine, "autoRebalance")
}

// WaitForConfirmation polls for the receipt of txHash until it is available or ctx is done.
// A missing receipt is treated as pending.
func (c *EVMClient) WaitForConfirmation(ctx context.Context, txHash common.Hash) (Receipt, error) {
	ctx, span := otel.StartSpan(ctx, "ledger.WaitForConfirmation", attribute.String("tx_hash", txHash.Hex()))
	defer span.End()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.eth.TransactionReceipt(ctx, txHash)
		switch {
		case err == nil:
			return Receipt{
				TxHash:      receipt.TxHash,
				BlockNumber: receipt.BlockNumber.Uint64(),
				GasUsed:     receipt.GasUsed,
				Succeeded:   receipt.Status == types.ReceiptStatusSuccessful,
			}, nil
		case errors.Is(err, ethereum.NotFound):
			logrus.WithField("tx_hash", txHash.Hex()).Debug("Transaction pending")
		case ctx.Err() != nil:
		default:
			otel.RecordError(ctx, err)
			return Receipt{}, fmt.Errorf("error fetching receipt for %s: %w", txHash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			otel.RecordError(ctx, ctx.Err())
			return Receipt{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// call runs a read-only contract call and returns its unpacked outputs
func (c *EVMClient) call(ctx context.Context, contract *bind.BoundContract, method string, args ...interface{}) ([]interface{}, error) {
	ctx, span := otel.StartSpan(ctx, "ledger.call", attribute.String("method", method))
	defer span.End()

	var values []interface{}
	err := c.guard(func() error {
		return contract.Call(&bind.CallOpts{Context: ctx, From: c.from}, &values, method, args...)
	})
	if err != nil {
		otel.RecordError(ctx, err)
		logrus.WithFields(logrus.Fields{"method": method, "error": err}).Debug("Ledger call failed")
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return values, nil
}

// transact signs a contract call and broadcasts it, returning the transaction hash.
// A node answering "already known" means a transport retry re-sent a transaction that had
// already arrived, so the hash is still valid.
func (c *EVMClient) transact(ctx context.Context, contract *bind.BoundContract, method string, args ...interface{}) (common.Hash, error) {
	ctx, span := otel.StartSpan(ctx, "ledger.transact", attribute.String("method", method))
	defer span.End()

	opts := *c.auth
	opts.Context = ctx
	opts.NoSend = true

	var tx *types.Transaction
	err := c.guard(func() error {
		var err error
		tx, err = contract.Transact(&opts, method, args...)
		if err != nil {
			return err
		}
		if err := c.eth.SendTransaction(ctx, tx); err != nil && !isAlreadyKnown(err) {
			return err
		}
		return nil
	})
	if err != nil {
		otel.RecordError(ctx, err)
		return common.Hash{}, fmt.Errorf("%s: %w", method, err)
	}

	span.SetAttributes(attribute.String("tx_hash", tx.Hash().Hex()))
	logrus.WithFields(logrus.Fields{
		"method":  method,
		"tx_hash": tx.Hash().Hex(),
		"nonce":   tx.Nonce(),
	}).Info("Transaction broadcast")
	return tx.Hash(), nil
}

func (c *EVMClient) guard(fn func() error) error {
	if c.breaker == nil {
		return fn()
	}
	return c.breaker.Execute(fn)
}

func isAlreadyKnown(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already known") || strings.Contains(msg, "known transaction")
}
