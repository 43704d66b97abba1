package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/paylink/fintech-backend/internal/domain"
	"github.com/paylink/fintech-backend/internal/store"
	"github.com/paylink/fintech-backend/pkg/mailer"
)

const (
	notificationHandlerTimeout = 15 * time.Second
	dedupCacheTTL              = 24 * time.Hour
)

// TransactionEventConsumer turns finalized-transaction events into emails
// and notification log entries. Delivery from the channel is at-least-once,
// so the handler is idempotent per event id: the durable check against the
// notification store decides whether to send, and a Redis SETNX fast path
// (when configured) merely short-circuits known duplicates.
type TransactionEventConsumer struct {
	records     store.NotificationRepository
	mail        mailer.Mailer
	dedupCache  *redis.Client
	dedupPrefix string
}

func NewTransactionEventConsumer(records store.NotificationRepository, mail mailer.Mailer) *TransactionEventConsumer {
	return &TransactionEventConsumer{
		records:     records,
		mail:        mail,
		dedupPrefix: "paylink:notified",
	}
}

// SetDedupCache wires the optional Redis fast path. Correctness never
// depends on it; a missing or failing cache just means the Mongo lookup
// does all the work.
func (c *TransactionEventConsumer) SetDedupCache(client *redis.Client) {
	c.dedupCache = client
}

// HandleMessage processes one delivery. Returning true acknowledges the
// message; returning false requeues it for redelivery.
func (c *TransactionEventConsumer) HandleMessage(body []byte) bool {
	var event domain.TransactionEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("level=warn component=notification_consumer msg=\"malformed event; dropping\" err=%v", err)
		return true
	}

	if event.SchemaVersion > domain.EventSchemaVersionCurrent {
		// Unknown future schema: requeueing would wedge the partition, so
		// log loudly and drop.
		log.Printf("level=error component=notification_consumer msg=\"unsupported event schema; dropping\" schema_version=%d transaction_id=%s", event.SchemaVersion, event.ID)
		return true
	}

	if event.ID == uuid.Nil || event.FromUser == "" {
		log.Printf("level=warn component=notification_consumer msg=\"event missing id or payer; dropping\" payload=%s", string(body))
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), notificationHandlerTimeout)
	defer cancel()

	if err := c.processEvent(ctx, event); err != nil {
		log.Printf("level=warn component=notification_consumer msg=\"processing failed; will redeliver\" transaction_id=%s err=%v", event.ID, err)
		return false
	}
	return true
}

func (c *TransactionEventConsumer) processEvent(ctx context.Context, event domain.TransactionEvent) error {
	transactionID := event.ID.String()

	if c.alreadyNotified(ctx, transactionID) {
		return nil
	}

	// Durable check-before-act: one record per transaction id, ever.
	exists, err := c.records.HasRecordForTransaction(ctx, transactionID)
	if err != nil {
		return fmt.Errorf("dedup lookup: %w", err)
	}
	if exists {
		c.cacheNotified(ctx, transactionID)
		return nil
	}

	message := renderNotification(event)
	if err := c.mail.Send(ctx, event.FromUser, "Transaction Notification", message); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}

	record := domain.NotificationRecord{
		TransactionID: transactionID,
		Email:         event.FromUser,
		Message:       message,
		ReceivedAt:    time.Now().UTC(),
	}
	if err := c.records.CreateRecord(ctx, record); err != nil {
		if errors.Is(err, store.ErrDuplicateNotification) {
			// A concurrent redelivery logged it first; that is success.
			c.cacheNotified(ctx, transactionID)
			return nil
		}
		return fmt.Errorf("append notification record: %w", err)
	}

	c.cacheNotified(ctx, transactionID)
	return nil
}

func (c *TransactionEventConsumer) alreadyNotified(ctx context.Context, transactionID string) bool {
	if c.dedupCache == nil {
		return false
	}
	exists, err := c.dedupCache.Exists(ctx, c.dedupKey(transactionID)).Result()
	if err != nil {
		log.Printf("level=warn component=notification_consumer msg=\"dedup cache read failed; falling back to store\" transaction_id=%s err=%v", transactionID, err)
		return false
	}
	return exists > 0
}

func (c *TransactionEventConsumer) cacheNotified(ctx context.Context, transactionID string) {
	if c.dedupCache == nil {
		return
	}
	if err := c.dedupCache.SetNX(ctx, c.dedupKey(transactionID), "1", dedupCacheTTL).Err(); err != nil {
		log.Printf("level=warn component=notification_consumer msg=\"dedup cache write failed\" transaction_id=%s err=%v", transactionID, err)
	}
}

func (c *TransactionEventConsumer) dedupKey(transactionID string) string {
	return c.dedupPrefix + ":" + transactionID
}

func renderNotification(event domain.TransactionEvent) string {
	amount := strconv.FormatFloat(event.Amount, 'f', -1, 64)
	return fmt.Sprintf("Transaction of $%s to %s is %s", amount, event.ToUser, event.Status)
}
