/**
 * @description
 * PostgreSQL implementation of the `MirrorRepository` interface used by the
 * account-service. The mirror holds a denormalized copy of ledger-committed
 * transactions for read scaling; writes are idempotent on transaction id so
 * reconciler re-forwards and duplicate deliveries are harmless.
 */

package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paylink/fintech-backend/internal/domain"
)

// PostgresMirrorRepository is the account-service's mirror store.
type PostgresMirrorRepository struct {
	db *pgxpool.Pool
}

// NewPostgresMirrorRepository creates a new instance of PostgresMirrorRepository.
func NewPostgresMirrorRepository(db *pgxpool.Pool) *PostgresMirrorRepository {
	return &PostgresMirrorRepository{db: db}
}

// UpsertTransaction stores a copy of a finalized transaction. A row that
// already exists is left untouched; transactions are terminal and never
// mutated after the ledger commit.
func (r *PostgresMirrorRepository) UpsertTransaction(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO account_transactions (id, from_user, to_user, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query,
		tx.ID,
		tx.FromUser,
		tx.ToUser,
		tx.Amount,
		tx.Status,
		tx.Timestamp,
	)
	return err
}

// FindTransactionsByParticipant returns mirrored transactions where the user
// is payer or payee, newest first.
func (r *PostgresMirrorRepository) FindTransactionsByParticipant(ctx context.Context, userID string) ([]domain.Transaction, error) {
	query := `
		SELECT id, from_user, to_user, amount, status, NULL::text, created_at, NULL::timestamptz
		FROM account_transactions
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
