package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/paylink/fintech-backend/internal/domain"
	"github.com/paylink/fintech-backend/internal/store"
)

type reconcilerRepoStub struct {
	store.Repository

	pending  []domain.Transaction
	findErr  error
	mirrored []uuid.UUID
}

func (s *reconcilerRepoStub) FindUnmirroredTransactions(ctx context.Context, olderThan time.Duration, limit int) ([]domain.Transaction, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.pending, nil
}

func (s *reconcilerRepoStub) MarkTransactionMirrored(ctx context.Context, id uuid.UUID) error {
	s.mirrored = append(s.mirrored, id)
	return nil
}

// selectiveMirror rejects one transaction id and accepts the rest.
type selectiveMirror struct {
	rejectID uuid.UUID
	received []uuid.UUID
}

func (m *selectiveMirror) RecordTransaction(ctx context.Context, tx domain.Transaction) error {
	if tx.ID == m.rejectID {
		return errors.New("mirror refused")
	}
	m.received = append(m.received, tx.ID)
	return nil
}

func TestSweepOnceReforwardsPendingRows(t *testing.T) {
	a := domain.Transaction{ID: uuid.New(), FromUser: "alice", ToUser: "bob", Status: domain.StatusSuccess}
	b := domain.Transaction{ID: uuid.New(), FromUser: "carol", ToUser: "dave", Status: domain.StatusFailed}
	repo := &reconcilerRepoStub{pending: []domain.Transaction{a, b}}
	mirror := &selectiveMirror{}

	reconciler := NewMirrorReconciler(repo, mirror, "@every 1m")
	if err := reconciler.SweepOnce(context.Background()); err != nil {
		t.Fatalf("SweepOnce returned error: %v", err)
	}

	if len(mirror.received) != 2 {
		t.Fatalf("expected both rows re-forwarded, got %v", mirror.received)
	}
	if len(repo.mirrored) != 2 {
		t.Fatalf("expected both rows acked, got %v", repo.mirrored)
	}
}

func TestSweepOnceSkipsRowsTheMirrorRefuses(t *testing.T) {
	a := domain.Transaction{ID: uuid.New(), Status: domain.StatusSuccess}
	b := domain.Transaction{ID: uuid.New(), Status: domain.StatusSuccess}
	repo := &reconcilerRepoStub{pending: []domain.Transaction{a, b}}
	mirror := &selectiveMirror{rejectID: a.ID}

	reconciler := NewMirrorReconciler(repo, mirror, "@every 1m")
	if err := reconciler.SweepOnce(context.Background()); err != nil {
		t.Fatalf("SweepOnce returned error: %v", err)
	}

	// The refused row stays unmirrored for the next sweep.
	if len(repo.mirrored) != 1 || repo.mirrored[0] != b.ID {
		t.Errorf("expected only %s acked, got %v", b.ID, repo.mirrored)
	}
}

func TestSweepOnceSurfacesLookupFailure(t *testing.T) {
	repo := &reconcilerRepoStub{findErr: errors.New("db down")}
	reconciler := NewMirrorReconciler(repo, &selectiveMirror{}, "@every 1m")

	if err := reconciler.SweepOnce(context.Background()); err == nil {
		t.Fatal("expected the lookup failure to surface")
	}
}
