package app

import "errors"

// Saga error taxonomy. The API layer maps these with errors.Is; everything
// downstream of the ledger commit (publish, mirror) is absorbed and retried
// instead of surfacing here.
var (
	// ErrValidation covers malformed input, rejected before any side effect.
	ErrValidation = errors.New("invalid transfer request")

	// ErrBankNotLinked means the payer has no linked payment method. Nothing
	// has been persisted or published; the caller can retry after linking.
	ErrBankNotLinked = errors.New("user has not linked a bank account")

	// ErrBankLinkUnavailable means the oracle could not be asked at all.
	// This happens before the transaction id has any durable consequence, so
	// it is a plain request error.
	ErrBankLinkUnavailable = errors.New("bank link check unavailable")

	// ErrLedgerUnavailable means a ledger read failed before the saga had any
	// side effect. Nothing happened; the caller can simply retry.
	ErrLedgerUnavailable = errors.New("transaction store unavailable")

	// ErrOutcomeUnknown means the ledger write failed after a terminal
	// status was computed. The payment step may already have succeeded, so
	// the caller must be told the outcome is unknown, never FAILED.
	ErrOutcomeUnknown = errors.New("transaction outcome unknown")
)
