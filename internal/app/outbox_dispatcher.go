package app

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/paylink/fintech-backend/internal/store"
)

const (
	defaultBatchSize       = 50
	defaultPollInterval    = 1200 * time.Millisecond
	defaultStaleProcessing = 2 * time.Minute
)

// OutboxDispatcher drains the event_outbox table: events whose fast-path
// publish failed (or never happened because the process crashed between the
// ledger commit and the publish) are retried with exponential backoff until
// the channel acknowledges them. Combined with the transactional enqueue
// this gives at-least-once delivery for every committed ledger row.
type OutboxDispatcher struct {
	repo                store.Repository
	publisher           EventPublisher
	batchSize           int
	pollInterval        time.Duration
	staleProcessingTime time.Duration
}

// NewOutboxDispatcher creates a dispatcher. The publisher is injected so the
// loop is testable and shares the process-wide producer connection.
func NewOutboxDispatcher(repo store.Repository, publisher EventPublisher) *OutboxDispatcher {
	return &OutboxDispatcher{
		repo:                repo,
		publisher:           publisher,
		batchSize:           defaultBatchSize,
		pollInterval:        defaultPollInterval,
		staleProcessingTime: defaultStaleProcessing,
	}
}

// Run polls until the context is cancelled.
func (d *OutboxDispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.flushOnce(ctx); err != nil {
				log.Printf("level=warn component=outbox_dispatcher msg=\"flush failed\" err=%v", err)
			}
		}
	}
}

func (d *OutboxDispatcher) flushOnce(ctx context.Context) error {
	staleAfterSeconds := int(d.staleProcessingTime.Seconds())
	messages, err := d.repo.ClaimOutboxMessages(ctx, d.batchSize, staleAfterSeconds)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}

	// Once a publish fails, later messages for the same partition key are
	// held back in this pass; publishing them would reorder the key's events
	// on the channel.
	held := make(map[string]struct{})
	for _, message := range messages {
		if _, waiting := held[message.PartitionKey]; waiting {
			if markErr := d.repo.MarkOutboxFailed(ctx, message.ID, retryDelaySeconds(message.Attempts), "held behind earlier unpublished event for partition key"); markErr != nil {
				log.Printf("level=warn component=outbox_dispatcher msg=\"mark held errored\" outbox_id=%d err=%v", message.ID, markErr)
			}
			continue
		}
		if err := d.publishMessage(ctx, message); err != nil {
			held[message.PartitionKey] = struct{}{}
			retryAfter := retryDelaySeconds(message.Attempts)
			if markErr := d.repo.MarkOutboxFailed(ctx, message.ID, retryAfter, err.Error()); markErr != nil {
				log.Printf("level=warn component=outbox_dispatcher msg=\"mark failed errored\" outbox_id=%d err=%v", message.ID, markErr)
			}
			continue
		}
		if err := d.repo.MarkOutboxPublished(ctx, message.ID); err != nil {
			log.Printf("level=warn component=outbox_dispatcher msg=\"mark published errored\" outbox_id=%d err=%v", message.ID, err)
		}
	}
	return nil
}

func (d *OutboxDispatcher) publishMessage(ctx context.Context, message store.OutboxMessage) error {
	var payload interface{}
	if err := json.Unmarshal(message.Payload, &payload); err != nil {
		return err
	}
	return d.publisher.Publish(ctx, message.Exchange, message.RoutingKey, message.PartitionKey, payload)
}

func retryDelaySeconds(attempt int) int {
	if attempt < 1 {
		return 1
	}
	delay := 1 << minInt(attempt, 8)
	if delay > 300 {
		return 300
	}
	return delay
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
