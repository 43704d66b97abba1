/**
 * @description
 * This file defines the core domain models for the transfer backend. These
 * structs represent the entities and data transfer objects (DTOs) shared by
 * the orchestrator, the account mirror, and the API layers.
 *
 * @notes
 * - The transaction `ID` is minted once at the start of a saga and reused
 *   verbatim across the ledger, the event channel, the mirror, and the
 *   notification log. It is the idempotency key for every downstream write.
 * - `PENDING` exists only in the orchestrator's working memory. The ledger
 *   persists terminal rows exclusively, so no half-committed state is ever
 *   visible to readers.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Transaction statuses. PENDING is transient and never written to the ledger.
const (
	StatusPending = "PENDING"
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// Transaction is the ledger record for one transfer attempt.
// It maps directly to the `transactions` table.
type Transaction struct {
	ID              uuid.UUID  `json:"id"`
	FromUser        string     `json:"fromUser"`
	ToUser          string     `json:"toUser"`
	Amount          float64    `json:"amount"`
	Status          string     `json:"status"`
	ClientReference *string    `json:"clientReference,omitempty"`
	Timestamp       time.Time  `json:"timestamp"`
	MirroredAt      *time.Time `json:"-"`
}

// TransferRequest is the DTO for incoming transfer API requests.
// ClientReference is an optional caller-supplied idempotency key; resubmitting
// the same reference returns the previously recorded transaction instead of
// minting a duplicate.
type TransferRequest struct {
	FromUser        string  `json:"fromUser"`
	ToUser          string  `json:"toUser"`
	Amount          float64 `json:"amount"`
	ClientReference string  `json:"clientReference,omitempty"`
}
