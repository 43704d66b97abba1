package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event channel addressing. The exchange carries every finalized transaction;
// ordering is guaranteed only among events sharing a partition key (the
// paying user).
const (
	TransactionsExchange      = "transactions"
	TransactionFinalizedKey   = "transaction.finalized"
	EventSchemaVersionCurrent = 1
)

// TransactionEvent is the wire representation of a finalized Transaction,
// enqueued exactly once per successful ledger write. Delivery downstream is
// at-least-once, so consumers must dedup on ID.
type TransactionEvent struct {
	SchemaVersion int       `json:"schemaVersion"`
	ID            uuid.UUID `json:"id"`
	FromUser      string    `json:"fromUser"`
	ToUser        string    `json:"toUser"`
	Amount        float64   `json:"amount"`
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewTransactionEvent builds the event for a finalized transaction.
func NewTransactionEvent(tx *Transaction) TransactionEvent {
	return TransactionEvent{
		SchemaVersion: EventSchemaVersionCurrent,
		ID:            tx.ID,
		FromUser:      tx.FromUser,
		ToUser:        tx.ToUser,
		Amount:        tx.Amount,
		Status:        tx.Status,
		Timestamp:     tx.Timestamp,
	}
}
