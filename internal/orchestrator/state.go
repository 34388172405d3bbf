package orchestrator

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/jluxury929-hash/hyper/internal/ledger"
	"github.com/jluxury929-hash/hyper/internal/model"
)

// State is the lifecycle position of a state-changing request
type State string

// Transaction states. A request starts in StateNew.
const (
	StateNew       State = "new"
	StateValidated State = "validated"
	StateSubmitted State = "submitted"
	StateConfirmed State = "confirmed"
	StateFailed    State = "failed"
	StateRejected  State = "rejected"
)

var transitions = map[State][]State{
	StateNew:       {StateValidated, StateRejected},
	StateValidated: {StateSubmitted},
	StateSubmitted: {StateConfirmed, StateFailed},
}

// Terminal reports whether no further transition is possible from s
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether from -> to is a legal step
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition records one state change
type Transition struct {
	From State
	To   State
	At   time.Time
}

// PendingTransaction tracks one deposit, withdraw or rebalance while its request is in
// flight. It is never persisted.
type PendingTransaction struct {
	ID      string
	Kind    model.TxKind
	Address common.Address

	// Amount in base units; nil for rebalance
	Amount *big.Int

	State   State
	TxHash  common.Hash
	Receipt ledger.Receipt
	History []Transition
}

func newPending(kind model.TxKind, addr common.Address) *PendingTransaction {
	return &PendingTransaction{
		ID:      uuid.NewString(),
		Kind:    kind,
		Address: addr,
		State:   StateNew,
	}
}

// moveTo advances the transaction, refusing any step not in the transition table
func (p *PendingTransaction) moveTo(to State, at time.Time) error {
	if !CanTransition(p.State, to) {
		return fmt.Errorf("illegal transaction state change %s -> %s for %s", p.State, to, p.ID)
	}
	p.History = append(p.History, Transition{From: p.State, To: to, At: at})
	p.State = to
	return nil
}
