// Package orchestrator drives deposits, withdrawals and rebalances through
// validate, submit, await confirmation and report.
package orchestrator

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jluxury929-hash/hyper/internal/apperror"
	"github.com/jluxury929-hash/hyper/internal/config"
	"github.com/jluxury929-hash/hyper/internal/ledger"
	"github.com/jluxury929-hash/hyper/internal/model"
	"github.com/jluxury929-hash/hyper/internal/notify"
	"github.com/jluxury929-hash/hyper/internal/otel"
	"github.com/jluxury929-hash/hyper/internal/units"
	"github.com/jluxury929-hash/hyper/internal/validation"
)

// DefaultConfirmTimeout bounds the wait for a receipt when the config sets none
const DefaultConfirmTimeout = 2 * time.Minute

// ErrReverted is the cause of a LedgerWriteError for a transaction mined with failed status
var ErrReverted = errors.New("transaction reverted")

// PrincipalReader reads a user's current principal in base units
type PrincipalReader interface {
	ReadPrincipal(ctx context.Context, addr common.Address) (*big.Int, error)
}

// YieldOptimizer reports the optimizer's rate after a rebalance
type YieldOptimizer interface {
	OptimizedYield(ctx context.Context, addr common.Address, txHash string) (decimal.Decimal, error)
}

// EventSink receives one event per finished submission
type EventSink interface {
	Add(ev notify.Event)
}

// Orchestrator runs state-changing requests. It retries nothing and keeps nothing between
// requests; concurrent writes for one address are sequenced by the ledger nonce.
type Orchestrator struct {
	writer    ledger.Writer
	principal PrincipalReader
	optimizer YieldOptimizer
	events    EventSink

	minDeposit     decimal.Decimal
	decimals       int32
	confirmTimeout time.Duration
	now            func() time.Time
}

// New creates an Orchestrator
func New(writer ledger.Writer, principal PrincipalReader, optimizer YieldOptimizer, cfg config.Config) *Orchestrator {
	timeout := cfg.ConfirmTimeout
	if timeout <= 0 {
		timeout = DefaultConfirmTimeout
	}
	return &Orchestrator{
		writer:         writer,
		principal:      principal,
		optimizer:      optimizer,
		minDeposit:     cfg.MinDeposit,
		decimals:       cfg.AssetDecimals,
		confirmTimeout: timeout,
		now:            time.Now,
	}
}

// WithEvents sends transaction outcomes to sink
func (o *Orchestrator) WithEvents(sink EventSink) *Orchestrator {
	o.events = sink
	return o
}

// Deposit moves amount of the principal asset into the engine for address
func (o *Orchestrator) Deposit(ctx context.Context, address string, amount decimal.Decimal) (model.TxResult, error) {
	ctx, span := otel.StartSpan(ctx, "orchestrator.Deposit", attribute.String("user", address))
	defer span.End()

	addr, err := validation.ParseAddress(address)
	if err != nil {
		return o.reject(newPending(model.TxDeposit, common.Address{}), err)
	}
	tx := newPending(model.TxDeposit, addr)

	raw, err := validation.DepositAmount(amount, o.minDeposit, o.decimals)
	if err != nil {
		return o.reject(tx, err)
	}
	tx.Amount = raw

	if _, err := o.run(ctx, tx, func(ctx context.Context) (common.Hash, error) {
		return o.writer.Deposit(ctx, raw)
	}); err != nil {
		return model.TxResult{}, err
	}
	return o.result(tx), nil
}

// Withdraw takes amount out of the engine for address. A nil amount withdraws the full
// principal as read immediately before submission. A failed principal read rejects the
// request and publishes a rejected event carrying the read error.
func (o *Orchestrator) Withdraw(ctx context.Context, address string, amount *decimal.Decimal) (model.TxResult, error) {
	ctx, span := otel.StartSpan(ctx, "orchestrator.Withdraw", attribute.String("user", address))
	defer span.End()

	addr, err := validation.ParseAddress(address)
	if err != nil {
		return o.reject(newPending(model.TxWithdraw, common.Address{}), err)
	}
	tx := newPending(model.TxWithdraw, addr)

	var raw *big.Int
	if amount != nil {
		raw, err = validation.WithdrawAmount(*amount, o.decimals)
		if err != nil {
			return o.reject(tx, err)
		}
	} else {
		raw, err = o.principal.ReadPrincipal(ctx, addr)
		if err != nil {
			o.logger(tx).WithField("error", err).Warn("Failed to read principal for full withdrawal")
			res, rejectErr := o.reject(tx, err)
			o.publish(tx, ledger.Receipt{}, rejectErr)
			return res, rejectErr
		}
		if raw.Sign() <= 0 {
			return o.reject(tx, apperror.Validation("no principal to withdraw"))
		}
	}
	tx.Amount = raw

	if _, err := o.run(ctx, tx, func(ctx context.Context) (common.Hash, error) {
		return o.writer.Withdraw(ctx, raw)
	}); err != nil {
		return model.TxResult{}, err
	}
	return o.result(tx), nil
}

// Rebalance asks the engine to reallocate and reports the optimizer's new rate for address
func (o *Orchestrator) Rebalance(ctx context.Context, address string) (model.TxResult, error) {
	ctx, span := otel.StartSpan(ctx, "orchestrator.Rebalance", attribute.String("user", address))
	defer span.End()

	addr, err := validation.ParseAddress(address)
	if err != nil {
		return o.reject(newPending(model.TxRebalance, common.Address{}), err)
	}
	tx := newPending(model.TxRebalance, addr)

	if _, err := o.run(ctx, tx, o.writer.Rebalance); err != nil {
		return model.TxResult{}, err
	}

	newAPY, err := o.optimizer.OptimizedYield(ctx, addr, tx.TxHash.Hex())
	if err != nil {
		o.logger(tx).WithField("error", err).Warn("Rebalance confirmed but optimizer query failed")
		return model.TxResult{}, err
	}

	res := o.result(tx)
	res.NewAPY = newAPY
	return res, nil
}

// run validates, submits and waits for tx. The wait is bounded by the confirm timeout;
// when it expires, or the caller goes away, the outcome is reported as unknown and the
// transaction stays submitted.
func (o *Orchestrator) run(ctx context.Context, tx *PendingTransaction, submit func(context.Context) (common.Hash, error)) (ledger.Receipt, error) {
	if err := o.advance(tx, StateValidated); err != nil {
		return ledger.Receipt{}, err
	}
	if err := o.advance(tx, StateSubmitted); err != nil {
		return ledger.Receipt{}, err
	}

	hash, err := submit(ctx)
	if err != nil {
		writeErr := apperror.LedgerWrite("", err)
		return ledger.Receipt{}, o.fail(ctx, tx, ledger.Receipt{}, writeErr)
	}
	tx.TxHash = hash
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("tx_hash", hash.Hex()))
	o.logger(tx).Info("Transaction submitted, awaiting confirmation")

	waitCtx, cancel := context.WithTimeout(ctx, o.confirmTimeout)
	defer cancel()

	receipt, err := o.writer.WaitForConfirmation(waitCtx, hash)
	switch {
	case err != nil && waitCtx.Err() != nil:
		timeoutErr := apperror.Timeout(hash.Hex(), err)
		otel.RecordError(ctx, timeoutErr)
		o.logger(tx).WithField("timeout", o.confirmTimeout.String()).Warn("Confirmation not received in time, outcome unknown")
		o.publish(tx, ledger.Receipt{}, timeoutErr)
		return ledger.Receipt{}, timeoutErr
	case err != nil:
		return ledger.Receipt{}, o.fail(ctx, tx, ledger.Receipt{}, apperror.LedgerWrite(hash.Hex(), err))
	case !receipt.Succeeded:
		return receipt, o.fail(ctx, tx, receipt, apperror.LedgerWrite(hash.Hex(), ErrReverted))
	}

	if err := o.advance(tx, StateConfirmed); err != nil {
		return receipt, err
	}
	tx.Receipt = receipt
	o.logger(tx).WithFields(logrus.Fields{
		"block":    receipt.BlockNumber,
		"gas_used": receipt.GasUsed,
	}).Info("Transaction confirmed")
	o.publish(tx, receipt, nil)
	return receipt, nil
}

func (o *Orchestrator) advance(tx *PendingTransaction, to State) error {
	if err := tx.moveTo(to, o.now()); err != nil {
		o.logger(tx).WithField("error", err).Error("Illegal transaction state change")
		return err
	}
	o.logger(tx).Debug("Transaction state changed")
	return nil
}

func (o *Orchestrator) reject(tx *PendingTransaction, err error) (model.TxResult, error) {
	if moveErr := tx.moveTo(StateRejected, o.now()); moveErr != nil {
		return model.TxResult{}, moveErr
	}
	o.logger(tx).WithField("reason", err.Error()).Info("Transaction rejected")
	return model.TxResult{}, err
}

func (o *Orchestrator) fail(ctx context.Context, tx *PendingTransaction, receipt ledger.Receipt, err error) error {
	if moveErr := o.advance(tx, StateFailed); moveErr != nil {
		return moveErr
	}
	otel.RecordError(ctx, err)
	o.logger(tx).WithField("error", err).Warn("Transaction failed")
	o.publish(tx, receipt, err)
	return err
}

func (o *Orchestrator) result(tx *PendingTransaction) model.TxResult {
	return model.TxResult{
		ID:          tx.ID,
		Kind:        tx.Kind,
		Address:     tx.Address,
		TxHash:      tx.TxHash,
		BlockNumber: tx.Receipt.BlockNumber,
		GasUsed:     tx.Receipt.GasUsed,
		Amount:      units.ToDecimal(tx.Amount, o.decimals),
	}
}

func (o *Orchestrator) publish(tx *PendingTransaction, receipt ledger.Receipt, err error) {
	if o.events == nil {
		return
	}
	ev := notify.Event{
		ID:          tx.ID,
		Kind:        string(tx.Kind),
		Address:     tx.Address.Hex(),
		State:       string(tx.State),
		BlockNumber: receipt.BlockNumber,
		GasUsed:     receipt.GasUsed,
		Timestamp:   o.now().UTC(),
	}
	if tx.TxHash != (common.Hash{}) {
		ev.TxHash = tx.TxHash.Hex()
	}
	if tx.Amount != nil {
		ev.Amount = units.ToDecimal(tx.Amount, o.decimals).String()
	}
	if err != nil {
		ev.ErrorKind = string(apperror.KindOf(err))
		ev.Error = err.Error()
	}
	o.events.Add(ev)
}

func (o *Orchestrator) logger(tx *PendingTransaction) *logrus.Entry {
	fields := logrus.Fields{
		"tx_id":   tx.ID,
		"kind":    tx.Kind,
		"address": tx.Address.Hex(),
		"state":   tx.State,
	}
	if tx.TxHash != (common.Hash{}) {
		fields["tx_hash"] = tx.TxHash.Hex()
	}
	return logrus.WithFields(fields)
}
