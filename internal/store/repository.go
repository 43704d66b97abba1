/**
 * @description
 * This file defines the data-access contracts for the transfer backend. By
 * defining interfaces, the saga, the outbox dispatcher, the reconciler, and
 * the notification consumer stay decoupled from the concrete stores
 * (PostgreSQL for the ledger/outbox/mirror, MongoDB for the notification
 * log), making each of them testable with fakes.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For transaction identifiers.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/paylink/fintech-backend/internal/domain"
)

var (
	ErrTransactionNotFound   = errors.New("transaction not found")
	ErrDuplicateReference    = errors.New("client reference already recorded")
	ErrDuplicateNotification = errors.New("notification already recorded")
)

// OutboxMessage is one pending event claimed from the event_outbox table.
type OutboxMessage struct {
	ID           int64
	Exchange     string
	RoutingKey   string
	PartitionKey string
	Payload      []byte
	Attempts     int
}

// Repository defines the ledger and outbox operations used by the
// transaction-service.
type Repository interface {
	// CreateTransactionWithOutboxEvent persists a finalized transaction and
	// enqueues its event in a single database transaction, so an event row
	// exists if and only if the ledger row committed. It returns the outbox
	// row id for the immediate-publish fast path.
	CreateTransactionWithOutboxEvent(ctx context.Context, tx *domain.Transaction, exchange, routingKey string, event domain.TransactionEvent) (int64, error)

	FindTransactionByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	FindTransactionByClientReference(ctx context.Context, reference string) (*domain.Transaction, error)
	FindTransactionsByParticipant(ctx context.Context, userID string) ([]domain.Transaction, error)

	// Mirror bookkeeping: mirrored_at records the mirror's ack so the
	// reconciler can re-forward rows the mirror missed.
	MarkTransactionMirrored(ctx context.Context, id uuid.UUID) error
	FindUnmirroredTransactions(ctx context.Context, olderThan time.Duration, limit int) ([]domain.Transaction, error)

	// Outbox lifecycle. Events sharing a partition key must reach the
	// channel in outbox-row order, so a row is only claimable once every
	// earlier row with its key has been published.
	ClaimOutboxMessages(ctx context.Context, limit int, staleAfterSeconds int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, id int64) error
	MarkOutboxFailed(ctx context.Context, id int64, retryAfterSeconds int, reason string) error

	// HasEarlierUnpublishedOutbox reports whether an unpublished outbox row
	// with the same partition key precedes the given row. The saga's
	// fast-path publish checks this so a fresh event cannot overtake an
	// older one still awaiting retry.
	HasEarlierUnpublishedOutbox(ctx context.Context, partitionKey string, beforeID int64) (bool, error)
}

// MirrorRepository defines the account-service's mirror store. Writes are
// idempotent on transaction id: the mirror is an append-only copy of
// ledger-committed rows, never ahead of the ledger.
type MirrorRepository interface {
	UpsertTransaction(ctx context.Context, tx *domain.Transaction) error
	FindTransactionsByParticipant(ctx context.Context, userID string) ([]domain.Transaction, error)
}

// NotificationRepository defines the notification-service's durable inbox.
type NotificationRepository interface {
	// HasRecordForTransaction reports whether a notification was already
	// logged for the given transaction id (the check-before-act dedup).
	HasRecordForTransaction(ctx context.Context, transactionID string) (bool, error)
	// CreateRecord appends a notification record. Inserting a duplicate
	// transaction id returns ErrDuplicateNotification.
	CreateRecord(ctx context.Context, record domain.NotificationRecord) error
	FindRecordsByEmail(ctx context.Context, email string) ([]domain.NotificationRecord, error)
}
