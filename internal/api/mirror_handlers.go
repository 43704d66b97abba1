/**
 * @description
 * HTTP handlers for the account-service: the internal mirror-write endpoint
 * the orchestrator (and its reconciler) forwards finalized transactions to,
 * and the public participant query backed by the mirrored copy.
 */

package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/paylink/fintech-backend/internal/domain"
	"github.com/paylink/fintech-backend/internal/store"
)

// AccountHandlers holds the mirror repository used by the account-service.
type AccountHandlers struct {
	mirror store.MirrorRepository
}

// NewAccountHandlers creates a new instance of AccountHandlers.
func NewAccountHandlers(mirror store.MirrorRepository) *AccountHandlers {
	return &AccountHandlers{mirror: mirror}
}

// RecordTransactionHandler handles POST /internal/transactions. The write is
// idempotent on transaction id, so duplicate forwards (saga retry plus
// reconciler sweep) collapse into one row.
func (h *AccountHandlers) RecordTransactionHandler(w http.ResponseWriter, r *http.Request) {
	var tx domain.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Invalid request body"})
		return
	}
	if tx.ID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "transaction id is required"})
		return
	}
	if tx.Status != domain.StatusSuccess && tx.Status != domain.StatusFailed {
		// The mirror only ever sees ledger-committed rows, which are terminal.
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "transaction status must be terminal"})
		return
	}

	if err := h.mirror.UpsertTransaction(r.Context(), &tx); err != nil {
		log.Printf("level=error component=api endpoint=record_mirror msg=\"mirror write failed\" transaction_id=%s err=%v", tx.ID, err)
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "failed to store transaction"})
		return
	}

	writeJSON(w, http.StatusCreated, messageResponse{Message: "Transaction stored in account service", TransactionID: tx.ID.String()})
}

// ListMirroredTransactionsHandler handles GET /transactions/{userID} from
// the mirrored copy.
func (h *AccountHandlers) ListMirroredTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "user id is required"})
		return
	}

	transactions, err := h.mirror.FindTransactionsByParticipant(r.Context(), userID)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_mirrored msg=\"mirror query failed\" user_id=%s err=%v", userID, err)
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "failed to fetch transactions"})
		return
	}

	writeJSON(w, http.StatusOK, transactions)
}
