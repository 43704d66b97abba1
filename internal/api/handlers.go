/**
 * @description
 * This file contains the HTTP handlers for the transaction-service's API
 * endpoints. Handlers parse incoming requests, call the saga service, and
 * map the saga's error taxonomy onto HTTP statuses. The one subtle mapping
 * is the unknown-outcome case: a ledger failure after the payment step must
 * reach the caller as "outcome unknown", never as FAILED or a bare 500.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: For URL parameter extraction.
 * - internal/app, internal/domain: For service logic and models.
 */

package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/paylink/fintech-backend/internal/app"
	"github.com/paylink/fintech-backend/internal/domain"
)

// TransferService is the saga surface the handlers depend on.
type TransferService interface {
	SubmitTransfer(ctx context.Context, req domain.TransferRequest) (*domain.Transaction, error)
	GetTransactionsForUser(ctx context.Context, userID string) ([]domain.Transaction, error)
}

// TransactionHandlers holds the application service that handlers will use.
type TransactionHandlers struct {
	service TransferService
}

// NewTransactionHandlers creates a new instance of TransactionHandlers.
func NewTransactionHandlers(service TransferService) *TransactionHandlers {
	return &TransactionHandlers{service: service}
}

type messageResponse struct {
	Message       string `json:"message"`
	TransactionID string `json:"transactionId,omitempty"`
}

// SubmitTransferHandler handles POST /transactions. The saga always reaches
// a terminal status, so both SUCCESS and FAILED come back as 202: the
// request was processed either way.
func (h *TransactionHandlers) SubmitTransferHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=submit_transfer outcome=reject reason=invalid_json err=%v", err)
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Invalid request body"})
		return
	}

	tx, err := h.service.SubmitTransfer(r.Context(), req)
	if err != nil {
		h.writeSagaError(w, tx, err)
		return
	}

	log.Printf("level=info component=api endpoint=submit_transfer outcome=accepted transaction_id=%s status=%s from_user=%s amount=%v", tx.ID, tx.Status, tx.FromUser, tx.Amount)
	writeJSON(w, http.StatusAccepted, messageResponse{
		Message:       "Transaction " + tx.Status,
		TransactionID: tx.ID.String(),
	})
}

// ListTransactionsHandler handles GET /transactions/{userID}: every ledger
// row where the user is payer or payee.
func (h *TransactionHandlers) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "user id is required"})
		return
	}

	transactions, err := h.service.GetTransactionsForUser(r.Context(), userID)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_transactions msg=\"ledger query failed\" user_id=%s err=%v", userID, err)
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "failed to fetch transactions"})
		return
	}

	writeJSON(w, http.StatusOK, transactions)
}

func (h *TransactionHandlers) writeSagaError(w http.ResponseWriter, tx *domain.Transaction, err error) {
	switch {
	case errors.Is(err, app.ErrBankNotLinked):
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "User has not linked a bank account"})
	case errors.Is(err, app.ErrValidation):
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: err.Error()})
	case errors.Is(err, app.ErrBankLinkUnavailable):
		writeJSON(w, http.StatusBadGateway, messageResponse{Message: "bank link check unavailable"})
	case errors.Is(err, app.ErrLedgerUnavailable):
		// Pre-check read failure: nothing happened, safe to retry.
		writeJSON(w, http.StatusServiceUnavailable, messageResponse{Message: "transaction store unavailable"})
	case errors.Is(err, app.ErrOutcomeUnknown):
		// The payment step may have succeeded; the caller must not read
		// this as FAILED. Include the id when one was minted so support
		// can reconcile.
		resp := messageResponse{Message: "transaction outcome unknown"}
		if tx != nil {
			resp.TransactionID = tx.ID.String()
		}
		writeJSON(w, http.StatusInternalServerError, resp)
	default:
		log.Printf("level=error component=api endpoint=submit_transfer msg=\"unexpected saga error\" err=%v", err)
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "Internal Server Error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("level=error component=api msg=\"response encode failed\" err=%v", err)
	}
}
