/**
 * @description
 * Mirror reconciliation job. The saga's mirror forward is best-effort; this
 * cron job sweeps the ledger for rows the mirror never acknowledged and
 * re-forwards them, bounding the mirror's lag without putting the mirror on
 * the saga's critical path. Re-forwards are safe because mirror writes are
 * idempotent on transaction id.
 */

package app

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/paylink/fintech-backend/internal/store"
)

const (
	reconcileBatchSize = 100
	reconcileGrace     = 30 * time.Second
	reconcileTimeout   = 30 * time.Second
)

// MirrorReconciler re-forwards unmirrored ledger rows on a schedule.
type MirrorReconciler struct {
	repo     store.Repository
	mirror   AccountMirror
	cron     *cron.Cron
	schedule string
}

// NewMirrorReconciler creates a reconciler. The schedule is a standard cron
// expression (e.g. "@every 1m").
func NewMirrorReconciler(repo store.Repository, mirror AccountMirror, schedule string) *MirrorReconciler {
	return &MirrorReconciler{
		repo:     repo,
		mirror:   mirror,
		cron:     cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		schedule: schedule,
	}
}

// Start registers the sweep and starts the scheduler.
func (r *MirrorReconciler) Start() {
	if _, err := r.cron.AddFunc(r.schedule, r.runSweep); err != nil {
		log.Printf("level=error component=mirror_reconciler msg=\"failed to schedule sweep\" schedule=%q err=%v", r.schedule, err)
		return
	}
	log.Printf("level=info component=mirror_reconciler msg=\"scheduled mirror sweep\" schedule=%q", r.schedule)
	r.cron.Start()
}

// Stop gracefully stops the scheduler and returns a context that is done
// once running jobs finish.
func (r *MirrorReconciler) Stop() context.Context {
	return r.cron.Stop()
}

func (r *MirrorReconciler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
	defer cancel()

	if err := r.SweepOnce(ctx); err != nil {
		log.Printf("level=warn component=mirror_reconciler msg=\"sweep failed\" err=%v", err)
	}
}

// SweepOnce re-forwards one batch of unmirrored transactions.
func (r *MirrorReconciler) SweepOnce(ctx context.Context) error {
	pending, err := r.repo.FindUnmirroredTransactions(ctx, reconcileGrace, reconcileBatchSize)
	if err != nil {
		return err
	}

	for _, tx := range pending {
		if err := r.mirror.RecordTransaction(ctx, tx); err != nil {
			// Leave the row unmirrored; the next sweep retries it.
			log.Printf("level=warn component=mirror_reconciler msg=\"re-forward failed\" transaction_id=%s err=%v", tx.ID, err)
			continue
		}
		if err := r.repo.MarkTransactionMirrored(ctx, tx.ID); err != nil {
			log.Printf("level=warn component=mirror_reconciler msg=\"mirror ack bookkeeping failed\" transaction_id=%s err=%v", tx.ID, err)
		}
	}
	return nil
}
