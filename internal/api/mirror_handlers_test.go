package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/paylink/fintech-backend/internal/domain"
)

type mirrorRepoStub struct {
	upserts []domain.Transaction
	err     error
	list    []domain.Transaction
}

func (s *mirrorRepoStub) UpsertTransaction(ctx context.Context, tx *domain.Transaction) error {
	if s.err != nil {
		return s.err
	}
	s.upserts = append(s.upserts, *tx)
	return nil
}

func (s *mirrorRepoStub) FindTransactionsByParticipant(ctx context.Context, userID string) ([]domain.Transaction, error) {
	return s.list, s.err
}

const testInternalKey = "secret-key"

func postMirror(t *testing.T, handler http.Handler, tx domain.Transaction, apiKey string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(tx)
	if err != nil {
		t.Fatalf("marshal transaction: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/internal/transactions", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-Internal-API-Key", apiKey)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func terminalTransaction() domain.Transaction {
	return domain.Transaction{
		ID:        uuid.New(),
		FromUser:  "alice",
		ToUser:    "bob",
		Amount:    12.5,
		Status:    domain.StatusSuccess,
		Timestamp: time.Now().UTC(),
	}
}

func TestRecordTransactionHandlerStoresCopy(t *testing.T) {
	repo := &mirrorRepoStub{}
	router := AccountRoutes(NewAccountHandlers(repo), testInternalKey)

	tx := terminalTransaction()
	rec := postMirror(t, router, tx, testInternalKey)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if len(repo.upserts) != 1 || repo.upserts[0].ID != tx.ID {
		t.Errorf("transaction was not stored: %+v", repo.upserts)
	}
}

func TestRecordTransactionHandlerRejectsMissingKey(t *testing.T) {
	router := AccountRoutes(NewAccountHandlers(&mirrorRepoStub{}), testInternalKey)

	rec := postMirror(t, router, terminalTransaction(), "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without the internal key, got %d", rec.Code)
	}

	rec = postMirror(t, router, terminalTransaction(), "wrong-key")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with a wrong key, got %d", rec.Code)
	}
}

func TestRecordTransactionHandlerRejectsNonTerminalStatus(t *testing.T) {
	repo := &mirrorRepoStub{}
	router := AccountRoutes(NewAccountHandlers(repo), testInternalKey)

	tx := terminalTransaction()
	tx.Status = domain.StatusPending
	rec := postMirror(t, router, tx, testInternalKey)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a PENDING transaction, got %d", rec.Code)
	}
	if len(repo.upserts) != 0 {
		t.Error("a non-terminal transaction must not be stored")
	}
}

func TestRecordTransactionHandlerRejectsMissingID(t *testing.T) {
	router := AccountRoutes(NewAccountHandlers(&mirrorRepoStub{}), testInternalKey)

	tx := terminalTransaction()
	tx.ID = uuid.Nil
	rec := postMirror(t, router, tx, testInternalKey)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without an id, got %d", rec.Code)
	}
}

func TestListMirroredTransactionsHandler(t *testing.T) {
	list := []domain.Transaction{terminalTransaction()}
	router := AccountRoutes(NewAccountHandlers(&mirrorRepoStub{list: list}), testInternalKey)

	// The read side needs no internal key.
	req := httptest.NewRequest(http.MethodGet, "/transactions/alice", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got []domain.Transaction
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 1 || got[0].ID != list[0].ID {
		t.Errorf("unexpected payload: %+v", got)
	}
}
