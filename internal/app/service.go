/**
 * @description
 * This file contains the core business logic for the transaction-service:
 * the transfer orchestration saga. The `Service` struct coordinates the
 * bank-link oracle, the payment simulator, the Postgres ledger (with its
 * transactional event outbox), the event channel, and the account mirror.
 *
 * Key properties:
 * - Every saga reaches a terminal status (SUCCESS/FAILED); simulator
 *   failures are absorbed into FAILED, never escalated to the caller.
 * - The transaction id is minted once and reused verbatim by every
 *   downstream write and event; it is the idempotency key for all of them.
 * - The ledger write and the event enqueue commit together; publish and
 *   mirror failures are logged and retried asynchronously, never rolled
 *   back and never surfaced.
 *
 * @dependencies
 * - context, errors, fmt, log, math, time: Standard Go libraries.
 * - github.com/google/uuid: For transaction id generation.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/bankclient, pkg/paymentsim: For external service payloads.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paylink/fintech-backend/internal/domain"
	"github.com/paylink/fintech-backend/internal/store"
	"github.com/paylink/fintech-backend/pkg/bankclient"
	"github.com/paylink/fintech-backend/pkg/paymentsim"
)

const (
	oracleTimeout    = 5 * time.Second
	simulatorTimeout = 10 * time.Second
	ledgerTimeout    = 5 * time.Second
	publishTimeout   = 5 * time.Second
	mirrorTimeout    = 5 * time.Second
)

// BankLinkOracle answers whether a payer has a linked payment method.
type BankLinkOracle interface {
	CheckLink(ctx context.Context, userID string) (*bankclient.LinkStatus, error)
}

// PaymentSimulator authorizes transfer parameters, returning a token on
// approval.
type PaymentSimulator interface {
	SimulatePayment(ctx context.Context, params paymentsim.PaymentParams) (*paymentsim.AuthorizationResult, error)
}

// AccountMirror receives a copy of each finalized transaction.
type AccountMirror interface {
	RecordTransaction(ctx context.Context, tx domain.Transaction) error
}

// EventPublisher appends an event to the partitioned channel.
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey, partitionKey string, body interface{}) error
}

// Service provides the transfer orchestration logic. All dependencies are
// injected; the clients are process-wide singletons established at startup
// and shared by every concurrent saga.
type Service struct {
	repo      store.Repository
	oracle    BankLinkOracle
	simulator PaymentSimulator
	mirror    AccountMirror
	publisher EventPublisher
}

// NewService creates a new transaction service instance.
func NewService(repo store.Repository, oracle BankLinkOracle, simulator PaymentSimulator, mirror AccountMirror, publisher EventPublisher) *Service {
	return &Service{
		repo:      repo,
		oracle:    oracle,
		simulator: simulator,
		mirror:    mirror,
		publisher: publisher,
	}
}

// SubmitTransfer runs the transfer saga and returns the finalized
// transaction. The returned status is terminal; "accepted and recorded", not
// "money moved synchronously".
func (s *Service) SubmitTransfer(ctx context.Context, req domain.TransferRequest) (*domain.Transaction, error) {
	// 1. Validate inputs before any side effect.
	if err := validateTransferRequest(&req); err != nil {
		return nil, err
	}

	// 2. Optional client idempotency key: resubmitting the same reference
	// returns the prior result instead of minting a duplicate.
	if req.ClientReference != "" {
		prior, err := s.repo.FindTransactionByClientReference(ctx, req.ClientReference)
		if err == nil {
			log.Printf("level=info component=saga msg=\"duplicate submission; returning prior transaction\" client_reference=%s transaction_id=%s", req.ClientReference, prior.ID)
			return prior, nil
		}
		if !errors.Is(err, store.ErrTransactionNotFound) {
			// Nothing durable exists yet, so this is a retryable read
			// failure, not an unknown outcome.
			return nil, fmt.Errorf("%w: idempotency lookup failed: %v", ErrLedgerUnavailable, err)
		}
	}

	// 3. Precondition: the payer must have a linked payment method. Nothing
	// durable has happened yet, so oracle failures surface to the caller.
	oracleCtx, cancelOracle := context.WithTimeout(ctx, oracleTimeout)
	defer cancelOracle()
	link, err := s.oracle.CheckLink(oracleCtx, req.FromUser)
	if err != nil {
		log.Printf("level=warn component=saga msg=\"bank link check failed\" from_user=%s err=%v", req.FromUser, err)
		return nil, fmt.Errorf("%w: %v", ErrBankLinkUnavailable, err)
	}
	if !link.Linked {
		return nil, ErrBankNotLinked
	}

	// 4. Mint the id and build the transaction in memory. PENDING never
	// leaves this function; the ledger only sees terminal rows. From here
	// the saga runs to a terminal status even if the caller disconnects.
	ctx = context.WithoutCancel(ctx)

	tx := &domain.Transaction{
		ID:        uuid.New(),
		FromUser:  req.FromUser,
		ToUser:    req.ToUser,
		Amount:    req.Amount,
		Status:    domain.StatusPending,
		Timestamp: time.Now().UTC(),
	}
	if req.ClientReference != "" {
		ref := req.ClientReference
		tx.ClientReference = &ref
	}

	// 5. Ask the payment simulator. Any failure mode of this call, from a
	// decline to a timeout, is absorbed into FAILED: "we tried and it
	// didn't work" is a terminal outcome, not a request error.
	simCtx, cancelSim := context.WithTimeout(ctx, simulatorTimeout)
	defer cancelSim()
	result, err := s.simulator.SimulatePayment(simCtx, paymentsim.PaymentParams{
		FromUser:  req.FromUser,
		ToUser:    req.ToUser,
		Amount:    req.Amount,
		AccountID: link.AccountID,
	})
	switch {
	case err != nil:
		log.Printf("level=warn component=saga msg=\"payment simulation failed\" transaction_id=%s err=%v", tx.ID, err)
		tx.Status = domain.StatusFailed
	case result.Approved && result.Token != "":
		tx.Status = domain.StatusSuccess
	default:
		tx.Status = domain.StatusFailed
	}

	// 6. Persist the finalized transaction and enqueue its event in one
	// database transaction. If this fails the true outcome is unknown: the
	// payment step may have succeeded, so the caller must not be told FAILED.
	event := domain.NewTransactionEvent(tx)
	ledgerCtx, cancelLedger := context.WithTimeout(ctx, ledgerTimeout)
	defer cancelLedger()
	outboxID, err := s.repo.CreateTransactionWithOutboxEvent(ledgerCtx, tx, domain.TransactionsExchange, domain.TransactionFinalizedKey, event)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateReference) && req.ClientReference != "" {
			// A concurrent retry with the same reference won the race.
			if prior, lookupErr := s.repo.FindTransactionByClientReference(ctx, req.ClientReference); lookupErr == nil {
				return prior, nil
			}
		}
		log.Printf("level=error component=saga msg=\"ledger write failed\" transaction_id=%s err=%v", tx.ID, err)
		// The minted id rides along with the error so callers can quote it
		// when reconciling the unknown outcome.
		return tx, fmt.Errorf("%w: %v", ErrOutcomeUnknown, err)
	}

	// 7. Fast-path publish. Failure is not an error for the caller: the
	// event is durably enqueued and the outbox dispatcher will retry it.
	s.publishFinalizedEvent(ctx, outboxID, event)

	// 8. Forward to the account mirror, best-effort. The reconciler
	// re-forwards anything missed, so a mirror outage costs lag, not data.
	s.forwardToMirror(ctx, tx)

	return tx, nil
}

// GetTransactionsForUser returns ledger rows where the user is payer or payee.
func (s *Service) GetTransactionsForUser(ctx context.Context, userID string) ([]domain.Transaction, error) {
	return s.repo.FindTransactionsByParticipant(ctx, userID)
}

func (s *Service) publishFinalizedEvent(ctx context.Context, outboxID int64, event domain.TransactionEvent) {
	// The fast path must not overtake an older event for the same payer
	// still waiting in the outbox; publishing now would break per-key order
	// on the channel. The dispatcher drains both in ledger order instead.
	blocked, err := s.repo.HasEarlierUnpublishedOutbox(ctx, event.FromUser, outboxID)
	if err != nil {
		log.Printf("level=warn component=saga msg=\"pending-event check failed; leaving publish to dispatcher\" transaction_id=%s outbox_id=%d err=%v", event.ID, outboxID, err)
		return
	}
	if blocked {
		log.Printf("level=info component=saga msg=\"earlier event pending for payer; deferring publish to dispatcher\" transaction_id=%s outbox_id=%d from_user=%s", event.ID, outboxID, event.FromUser)
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := s.publisher.Publish(pubCtx, domain.TransactionsExchange, domain.TransactionFinalizedKey, event.FromUser, event); err != nil {
		log.Printf("level=warn component=saga msg=\"event publish failed; outbox will retry\" transaction_id=%s outbox_id=%d err=%v", event.ID, outboxID, err)
		return
	}
	if err := s.repo.MarkOutboxPublished(ctx, outboxID); err != nil {
		// Worst case the dispatcher republishes; delivery is at-least-once.
		log.Printf("level=warn component=saga msg=\"outbox mark published failed\" transaction_id=%s outbox_id=%d err=%v", event.ID, outboxID, err)
	}
}

func (s *Service) forwardToMirror(ctx context.Context, tx *domain.Transaction) {
	mirCtx, cancel := context.WithTimeout(ctx, mirrorTimeout)
	defer cancel()

	if err := s.mirror.RecordTransaction(mirCtx, *tx); err != nil {
		log.Printf("level=warn component=saga msg=\"mirror forward failed; reconciler will retry\" transaction_id=%s err=%v", tx.ID, err)
		return
	}
	if err := s.repo.MarkTransactionMirrored(ctx, tx.ID); err != nil {
		log.Printf("level=warn component=saga msg=\"mirror ack bookkeeping failed\" transaction_id=%s err=%v", tx.ID, err)
	}
}

func validateTransferRequest(req *domain.TransferRequest) error {
	req.FromUser = strings.TrimSpace(req.FromUser)
	req.ToUser = strings.TrimSpace(req.ToUser)
	req.ClientReference = strings.TrimSpace(req.ClientReference)

	if req.FromUser == "" || req.ToUser == "" {
		return fmt.Errorf("%w: fromUser and toUser are required", ErrValidation)
	}
	if req.FromUser == req.ToUser {
		return fmt.Errorf("%w: fromUser and toUser must be distinct", ErrValidation)
	}
	if math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) {
		return fmt.Errorf("%w: amount must be a finite number", ErrValidation)
	}
	if req.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	return nil
}
