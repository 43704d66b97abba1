package app

import (
	"context"
	"errors"
	"testing"

	"github.com/paylink/fintech-backend/internal/store"
)

type outboxRepoStub struct {
	store.Repository

	claimable []store.OutboxMessage
	claimErr  error

	published []int64
	failed    []int64
	delays    []int
	reasons   []string
}

func (s *outboxRepoStub) ClaimOutboxMessages(ctx context.Context, limit int, staleAfterSeconds int) ([]store.OutboxMessage, error) {
	if s.claimErr != nil {
		return nil, s.claimErr
	}
	batch := s.claimable
	s.claimable = nil
	return batch, nil
}

func (s *outboxRepoStub) MarkOutboxPublished(ctx context.Context, id int64) error {
	s.published = append(s.published, id)
	return nil
}

func (s *outboxRepoStub) MarkOutboxFailed(ctx context.Context, id int64, retryAfterSeconds int, reason string) error {
	s.failed = append(s.failed, id)
	s.delays = append(s.delays, retryAfterSeconds)
	s.reasons = append(s.reasons, reason)
	return nil
}

// failingPublisher rejects a chosen partition key and accepts everything else.
type failingPublisher struct {
	rejectPartition string
	partitions      []string
}

func (p *failingPublisher) Publish(ctx context.Context, exchange, routingKey, partitionKey string, body interface{}) error {
	if partitionKey == p.rejectPartition {
		return errors.New("publish refused")
	}
	p.partitions = append(p.partitions, partitionKey)
	return nil
}

func outboxMessage(id int64, partitionKey string, attempts int) store.OutboxMessage {
	return store.OutboxMessage{
		ID:           id,
		Exchange:     "transactions",
		RoutingKey:   "transaction.finalized",
		PartitionKey: partitionKey,
		Payload:      []byte(`{"id":"00000000-0000-0000-0000-000000000001","status":"SUCCESS"}`),
		Attempts:     attempts,
	}
}

func TestFlushOncePublishesClaimedBatch(t *testing.T) {
	repo := &outboxRepoStub{claimable: []store.OutboxMessage{
		outboxMessage(1, "alice", 1),
		outboxMessage(2, "bob", 1),
	}}
	publisher := &failingPublisher{}
	dispatcher := NewOutboxDispatcher(repo, publisher)

	if err := dispatcher.flushOnce(context.Background()); err != nil {
		t.Fatalf("flushOnce returned error: %v", err)
	}

	if len(repo.published) != 2 {
		t.Fatalf("expected 2 published marks, got %v", repo.published)
	}
	if len(publisher.partitions) != 2 || publisher.partitions[0] != "alice" {
		t.Errorf("partition keys were not forwarded: %v", publisher.partitions)
	}
}

func TestFlushOnceSchedulesRetryOnPublishFailure(t *testing.T) {
	repo := &outboxRepoStub{claimable: []store.OutboxMessage{
		outboxMessage(1, "alice", 3),
		outboxMessage(2, "bob", 1),
	}}
	publisher := &failingPublisher{rejectPartition: "alice"}
	dispatcher := NewOutboxDispatcher(repo, publisher)

	if err := dispatcher.flushOnce(context.Background()); err != nil {
		t.Fatalf("flushOnce returned error: %v", err)
	}

	if len(repo.failed) != 1 || repo.failed[0] != 1 {
		t.Fatalf("expected message 1 marked failed, got %v", repo.failed)
	}
	if repo.delays[0] != retryDelaySeconds(3) {
		t.Errorf("retry delay %d does not follow the backoff schedule", repo.delays[0])
	}
	if repo.reasons[0] == "" {
		t.Error("the failure reason should be recorded")
	}

	// The healthy message in the same batch still goes through.
	if len(repo.published) != 1 || repo.published[0] != 2 {
		t.Errorf("expected message 2 published, got %v", repo.published)
	}
}

// onceFailPublisher fails only the first publish for a chosen partition key
// and would happily accept any later one, modelling a transient broker error.
type onceFailPublisher struct {
	failKey    string
	failedOnce bool
	partitions []string
}

func (p *onceFailPublisher) Publish(ctx context.Context, exchange, routingKey, partitionKey string, body interface{}) error {
	if partitionKey == p.failKey && !p.failedOnce {
		p.failedOnce = true
		return errors.New("publish refused")
	}
	p.partitions = append(p.partitions, partitionKey)
	return nil
}

func TestFlushOnceHoldsSameKeyBehindFailure(t *testing.T) {
	repo := &outboxRepoStub{claimable: []store.OutboxMessage{
		outboxMessage(1, "alice", 1),
		outboxMessage(2, "alice", 1),
		outboxMessage(3, "bob", 1),
	}}
	publisher := &onceFailPublisher{failKey: "alice"}
	dispatcher := NewOutboxDispatcher(repo, publisher)

	if err := dispatcher.flushOnce(context.Background()); err != nil {
		t.Fatalf("flushOnce returned error: %v", err)
	}

	// Message 2 shares alice's key with the failed message 1 and must wait
	// for it, even though the broker would now accept it; delivering it
	// first would reorder alice's events.
	if len(repo.failed) != 2 || repo.failed[0] != 1 || repo.failed[1] != 2 {
		t.Fatalf("expected messages 1 and 2 deferred in order, got %v", repo.failed)
	}
	for _, partition := range publisher.partitions {
		if partition == "alice" {
			t.Fatal("no alice event may reach the channel in this pass")
		}
	}

	// Other keys are unaffected.
	if len(repo.published) != 1 || repo.published[0] != 3 {
		t.Errorf("expected message 3 published, got %v", repo.published)
	}
}

func TestFlushOnceMarksUnparseablePayloadFailed(t *testing.T) {
	bad := outboxMessage(7, "alice", 1)
	bad.Payload = []byte("{broken")
	repo := &outboxRepoStub{claimable: []store.OutboxMessage{bad}}
	dispatcher := NewOutboxDispatcher(repo, &failingPublisher{})

	if err := dispatcher.flushOnce(context.Background()); err != nil {
		t.Fatalf("flushOnce returned error: %v", err)
	}
	if len(repo.failed) != 1 || repo.failed[0] != 7 {
		t.Errorf("expected the unparseable message marked failed, got %v", repo.failed)
	}
}

func TestRetryDelaySeconds(t *testing.T) {
	cases := []struct {
		attempt int
		want    int
	}{
		{0, 1},
		{1, 2},
		{2, 4},
		{5, 32},
		{8, 256},
		{9, 256},
		{50, 256},
	}
	for _, tc := range cases {
		if got := retryDelaySeconds(tc.attempt); got != tc.want {
			t.Errorf("retryDelaySeconds(%d) = %d, want %d", tc.attempt, got, tc.want)
		}
	}
}
