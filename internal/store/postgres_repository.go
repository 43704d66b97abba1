/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface: the durable transaction ledger plus the transactional event
 * outbox. The ledger insert and the outbox enqueue share one database
 * transaction, which is what guarantees exactly one enqueued event per
 * committed ledger row.
 *
 * @dependencies
 * - context, time, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paylink/fintech-backend/internal/domain"
)

const uniqueViolationCode = "23505"

// PostgresRepository is a concrete implementation of the Repository interface
// for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateTransactionWithOutboxEvent inserts the finalized ledger row and its
// outbox event atomically. The transaction must already carry a terminal
// status; PENDING rows are never persisted.
func (r *PostgresRepository) CreateTransactionWithOutboxEvent(
	ctx context.Context,
	tx *domain.Transaction,
	exchange string,
	routingKey string,
	event domain.TransactionEvent,
) (int64, error) {
	dbtx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer dbtx.Rollback(ctx)

	query := `
		INSERT INTO transactions (id, from_user, to_user, amount, status, client_reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := dbtx.Exec(ctx, query,
		tx.ID,
		tx.FromUser,
		tx.ToUser,
		tx.Amount,
		tx.Status,
		tx.ClientReference,
		tx.Timestamp,
	); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return 0, ErrDuplicateReference
		}
		return 0, err
	}

	blob, err := json.Marshal(event)
	if err != nil {
		return 0, err
	}

	var outboxID int64
	err = dbtx.QueryRow(ctx, `
		INSERT INTO event_outbox (exchange, routing_key, partition_key, payload)
		VALUES ($1, $2, $3, $4::jsonb)
		RETURNING id
	`, strings.TrimSpace(exchange), strings.TrimSpace(routingKey), tx.FromUser, string(blob)).Scan(&outboxID)
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue outbox event: %w", err)
	}

	if err := dbtx.Commit(ctx); err != nil {
		return 0, err
	}
	return outboxID, nil
}

// FindTransactionByID retrieves a single ledger row by its id.
func (r *PostgresRepository) FindTransactionByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `
		SELECT id, from_user, to_user, amount, status, client_reference, created_at, mirrored_at
		FROM transactions
		WHERE id = $1
	`
	return r.scanTransaction(r.db.QueryRow(ctx, query, id))
}

// FindTransactionByClientReference looks up a prior transaction by the
// caller-supplied idempotency key. The unique index keeps this at one row;
// the LIMIT and ordering make the read deterministic even without it.
func (r *PostgresRepository) FindTransactionByClientReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	query := `
		SELECT id, from_user, to_user, amount, status, client_reference, created_at, mirrored_at
		FROM transactions
		WHERE client_reference = $1
		ORDER BY created_at, id
		LIMIT 1
	`
	return r.scanTransaction(r.db.QueryRow(ctx, query, strings.TrimSpace(reference)))
}

// FindTransactionsByParticipant returns every transaction where the user is
// payer or payee, newest first.
func (r *PostgresRepository) FindTransactionsByParticipant(ctx context.Context, userID string) ([]domain.Transaction, error) {
	query := `
		SELECT id, from_user, to_user, amount, status, client_reference, created_at, mirrored_at
		FROM transactions
		WHERE from_user = $1 OR to_user = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// MarkTransactionMirrored records the mirror's ack for a ledger row.
func (r *PostgresRepository) MarkTransactionMirrored(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		UPDATE transactions
		SET mirrored_at = NOW()
		WHERE id = $1 AND mirrored_at IS NULL
	`, id)
	return err
}

// FindUnmirroredTransactions returns ledger rows the mirror has not
// acknowledged, oldest first, skipping rows younger than the grace period so
// the in-flight forward from the saga is not raced.
func (r *PostgresRepository) FindUnmirroredTransactions(ctx context.Context, olderThan time.Duration, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, from_user, to_user, amount, status, client_reference, created_at, mirrored_at
		FROM transactions
		WHERE mirrored_at IS NULL AND created_at < NOW() - ($1 * INTERVAL '1 second')
		ORDER BY created_at
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, int(olderThan.Seconds()), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// ClaimOutboxMessages atomically claims a batch of publishable outbox rows.
// Rows stuck in 'processing' longer than staleAfterSeconds are reclaimed, so
// a crashed dispatcher cannot strand events. A row whose partition key has an
// earlier unpublished row is skipped until that predecessor is published,
// which keeps a payer's events in outbox order across retries.
func (r *PostgresRepository) ClaimOutboxMessages(ctx context.Context, limit int, staleAfterSeconds int) ([]OutboxMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	if staleAfterSeconds <= 0 {
		staleAfterSeconds = 120
	}

	query := `
		WITH candidates AS (
			SELECT o.id
			FROM event_outbox AS o
			WHERE (
				(o.status = 'pending' AND o.next_attempt_at <= NOW())
				OR (o.status = 'processing' AND o.processing_started_at < NOW() - ($2 * INTERVAL '1 second'))
			)
			AND NOT EXISTS (
				SELECT 1
				FROM event_outbox AS p
				WHERE p.partition_key = o.partition_key
				  AND p.id < o.id
				  AND p.status <> 'published'
			)
			ORDER BY o.id
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE event_outbox AS o
		SET status = 'processing',
			processing_started_at = NOW(),
			attempts = o.attempts + 1
		FROM candidates
		WHERE o.id = candidates.id
		RETURNING o.id, o.exchange, o.routing_key, o.partition_key, o.payload::text, o.attempts
	`

	rows, err := r.db.Query(ctx, query, limit, staleAfterSeconds)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]OutboxMessage, 0, limit)
	for rows.Next() {
		var (
			msg         OutboxMessage
			payloadText string
		)
		if err := rows.Scan(&msg.ID, &msg.Exchange, &msg.RoutingKey, &msg.PartitionKey, &payloadText, &msg.Attempts); err != nil {
			return nil, err
		}
		msg.Payload = []byte(payloadText)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// HasEarlierUnpublishedOutbox reports whether an unpublished outbox row with
// the same partition key precedes the given row.
func (r *PostgresRepository) HasEarlierUnpublishedOutbox(ctx context.Context, partitionKey string, beforeID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM event_outbox
			WHERE partition_key = $1
			  AND id < $2
			  AND status <> 'published'
		)
	`, partitionKey, beforeID).Scan(&exists)
	return exists, err
}

// MarkOutboxPublished finalizes an outbox row after a successful publish.
func (r *PostgresRepository) MarkOutboxPublished(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE event_outbox
		SET status = 'published',
			published_at = NOW(),
			processing_started_at = NULL,
			last_error = NULL
		WHERE id = $1
	`, id)
	return err
}

// MarkOutboxFailed schedules a retry for a failed publish.
func (r *PostgresRepository) MarkOutboxFailed(ctx context.Context, id int64, retryAfterSeconds int, reason string) error {
	if retryAfterSeconds < 1 {
		retryAfterSeconds = 1
	}
	if len(reason) > 2000 {
		reason = reason[:2000]
	}
	_, err := r.db.Exec(ctx, `
		UPDATE event_outbox
		SET status = 'pending',
			next_attempt_at = NOW() + ($2 * INTERVAL '1 second'),
			processing_started_at = NULL,
			last_error = $3
		WHERE id = $1
	`, id, retryAfterSeconds, reason)
	return err
}

func (r *PostgresRepository) scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var tx domain.Transaction
	err := row.Scan(
		&tx.ID,
		&tx.FromUser,
		&tx.ToUser,
		&tx.Amount,
		&tx.Status,
		&tx.ClientReference,
		&tx.Timestamp,
		&tx.MirroredAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &tx, nil
}

func collectTransactions(rows pgx.Rows) ([]domain.Transaction, error) {
	transactions := make([]domain.Transaction, 0)
	for rows.Next() {
		var tx domain.Transaction
		if err := rows.Scan(
			&tx.ID,
			&tx.FromUser,
			&tx.ToUser,
			&tx.Amount,
			&tx.Status,
			&tx.ClientReference,
			&tx.Timestamp,
			&tx.MirroredAt,
		); err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}
