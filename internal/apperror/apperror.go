// Package apperror defines the error taxonomy surfaced by the position, transaction and
// prediction paths. Every error carries a stable machine-readable kind and a human detail.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the stable, machine-readable class of an error
type Kind string

// Error kinds
const (
	KindValidation  Kind = "ValidationError"
	KindLedgerRead  Kind = "LedgerReadError"
	KindLedgerWrite Kind = "LedgerWriteError"
	KindTimeout     Kind = "TimeoutError"
	KindPrediction  Kind = "PredictionError"
	KindInternal    Kind = "InternalError"
)

// Error is a classified failure
type Error struct {
	Kind Kind

	// Detail is the human-readable message returned to callers
	Detail string

	// TxHash is set when a transaction was broadcast before the failure, so the caller can
	// track an outcome that is unknown or only partly reported
	TxHash string

	// Err is the underlying cause, if any
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Detail {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation reports malformed input. No collaborator call is made for these.
func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Detail: fmt.Sprintf(format, args...)}
}

// LedgerRead wraps a failed or rejected read against the ledger
func LedgerRead(err error) *Error {
	return &Error{Kind: KindLedgerRead, Detail: causeText(err), Err: err}
}

// LedgerWrite wraps a failed or reverted state-changing ledger call
func LedgerWrite(txHash string, err error) *Error {
	return &Error{Kind: KindLedgerWrite, Detail: causeText(err), TxHash: txHash, Err: err}
}

// Timeout reports that confirmation did not arrive in time. The outcome is unknown: the
// transaction may still be included later.
func Timeout(txHash string, err error) *Error {
	return &Error{
		Kind:   KindTimeout,
		Detail: "confirmation not received in time; transaction outcome unknown",
		TxHash: txHash,
		Err:    err,
	}
}

// Prediction wraps a failed call to the AI optimizer
func Prediction(txHash string, err error) *Error {
	return &Error{Kind: KindPrediction, Detail: causeText(err), TxHash: txHash, Err: err}
}

// KindOf returns the kind of err, or KindInternal for unclassified errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is classified as kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps a kind to the response status used by the REST surface
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func causeText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
