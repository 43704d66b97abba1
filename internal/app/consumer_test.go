package app

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/paylink/fintech-backend/internal/domain"
	"github.com/paylink/fintech-backend/internal/store"
)

type notificationRepoStub struct {
	store.NotificationRepository

	records   map[string]domain.NotificationRecord
	hasErr    error
	createErr error
}

func newNotificationRepoStub() *notificationRepoStub {
	return &notificationRepoStub{records: make(map[string]domain.NotificationRecord)}
}

func (s *notificationRepoStub) HasRecordForTransaction(ctx context.Context, transactionID string) (bool, error) {
	if s.hasErr != nil {
		return false, s.hasErr
	}
	_, ok := s.records[transactionID]
	return ok, nil
}

func (s *notificationRepoStub) CreateRecord(ctx context.Context, record domain.NotificationRecord) error {
	if s.createErr != nil {
		return s.createErr
	}
	if _, ok := s.records[record.TransactionID]; ok {
		return store.ErrDuplicateNotification
	}
	s.records[record.TransactionID] = record
	return nil
}

type mailerStub struct {
	err   error
	sends []string
	last  string
}

func (m *mailerStub) Send(ctx context.Context, to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sends = append(m.sends, to)
	m.last = body
	return nil
}

func finalizedEventBody(t *testing.T, status string) ([]byte, domain.TransactionEvent) {
	t.Helper()
	event := domain.TransactionEvent{
		SchemaVersion: domain.EventSchemaVersionCurrent,
		ID:            uuid.New(),
		FromUser:      "alice@example.com",
		ToUser:        "bob@example.com",
		Amount:        99.9,
		Status:        status,
		Timestamp:     time.Now().UTC(),
	}
	body, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return body, event
}

func TestHandleMessageSendsOnce(t *testing.T) {
	records := newNotificationRepoStub()
	mail := &mailerStub{}
	consumer := NewTransactionEventConsumer(records, mail)

	body, event := finalizedEventBody(t, domain.StatusSuccess)

	if !consumer.HandleMessage(body) {
		t.Fatal("first delivery should ack")
	}
	if len(mail.sends) != 1 || mail.sends[0] != event.FromUser {
		t.Fatalf("expected one mail to the payer, got %v", mail.sends)
	}
	if !strings.Contains(mail.last, "bob@example.com") || !strings.Contains(mail.last, domain.StatusSuccess) {
		t.Errorf("notification body missing payee or status: %q", mail.last)
	}

	record, ok := records.records[event.ID.String()]
	if !ok {
		t.Fatal("notification record was not persisted")
	}
	if record.Email != event.FromUser {
		t.Errorf("record addressed to %s, want %s", record.Email, event.FromUser)
	}
}

func TestHandleMessageRedeliveryIsIdempotent(t *testing.T) {
	records := newNotificationRepoStub()
	mail := &mailerStub{}
	consumer := NewTransactionEventConsumer(records, mail)

	body, _ := finalizedEventBody(t, domain.StatusFailed)

	if !consumer.HandleMessage(body) {
		t.Fatal("first delivery should ack")
	}
	if !consumer.HandleMessage(body) {
		t.Fatal("redelivery should ack")
	}

	if len(mail.sends) != 1 {
		t.Fatalf("redelivery must not send again, got %d sends", len(mail.sends))
	}
	if len(records.records) != 1 {
		t.Fatalf("redelivery must not add a record, got %d", len(records.records))
	}
}

func TestHandleMessageMalformedIsDropped(t *testing.T) {
	records := newNotificationRepoStub()
	mail := &mailerStub{}
	consumer := NewTransactionEventConsumer(records, mail)

	if !consumer.HandleMessage([]byte("{not json")) {
		t.Fatal("malformed payloads must be acked, not requeued")
	}
	if len(mail.sends) != 0 || len(records.records) != 0 {
		t.Error("malformed payloads must have no side effects")
	}
}

func TestHandleMessageFutureSchemaIsDropped(t *testing.T) {
	records := newNotificationRepoStub()
	mail := &mailerStub{}
	consumer := NewTransactionEventConsumer(records, mail)

	body, _ := finalizedEventBody(t, domain.StatusSuccess)
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		t.Fatal(err)
	}
	raw["schemaVersion"] = domain.EventSchemaVersionCurrent + 1
	body, _ = json.Marshal(raw)

	if !consumer.HandleMessage(body) {
		t.Fatal("a future schema version must be dropped, not requeued")
	}
	if len(mail.sends) != 0 {
		t.Error("no notification may be sent for an unknown schema")
	}
}

func TestHandleMessageMissingIDIsDropped(t *testing.T) {
	records := newNotificationRepoStub()
	mail := &mailerStub{}
	consumer := NewTransactionEventConsumer(records, mail)

	body := []byte(`{"schemaVersion":1,"fromUser":"alice@example.com","status":"SUCCESS"}`)
	if !consumer.HandleMessage(body) {
		t.Fatal("an event without an id must be dropped")
	}
	if len(mail.sends) != 0 {
		t.Error("no notification may be sent without an event id")
	}
}

func TestHandleMessageMailerFailureRequeues(t *testing.T) {
	records := newNotificationRepoStub()
	mail := &mailerStub{err: errors.New("smtp down")}
	consumer := NewTransactionEventConsumer(records, mail)

	body, _ := finalizedEventBody(t, domain.StatusSuccess)
	if consumer.HandleMessage(body) {
		t.Fatal("a failed send must nack for redelivery")
	}
	if len(records.records) != 0 {
		t.Error("no record may be written when the send failed")
	}

	// The redelivery succeeds once the mailer recovers.
	mail.err = nil
	if !consumer.HandleMessage(body) {
		t.Fatal("redelivery after recovery should ack")
	}
	if len(mail.sends) != 1 || len(records.records) != 1 {
		t.Errorf("expected exactly one send and one record, got %d/%d", len(mail.sends), len(records.records))
	}
}

func TestHandleMessageConcurrentDuplicateInsertIsSuccess(t *testing.T) {
	records := newNotificationRepoStub()
	records.createErr = store.ErrDuplicateNotification
	mail := &mailerStub{}
	consumer := NewTransactionEventConsumer(records, mail)

	body, _ := finalizedEventBody(t, domain.StatusSuccess)
	if !consumer.HandleMessage(body) {
		t.Fatal("a concurrent duplicate insert must be treated as success")
	}
}

func TestHandleMessageStoreFailureRequeues(t *testing.T) {
	records := newNotificationRepoStub()
	records.hasErr = errors.New("mongo unavailable")
	mail := &mailerStub{}
	consumer := NewTransactionEventConsumer(records, mail)

	body, _ := finalizedEventBody(t, domain.StatusSuccess)
	if consumer.HandleMessage(body) {
		t.Fatal("a dedup lookup failure must nack for redelivery")
	}
	if len(mail.sends) != 0 {
		t.Error("no send may happen when the dedup state is unknown")
	}
}

func TestRenderNotification(t *testing.T) {
	_, event := finalizedEventBody(t, domain.StatusSuccess)
	event.Amount = 25

	got := renderNotification(event)
	want := "Transaction of $25 to bob@example.com is SUCCESS"
	if got != want {
		t.Errorf("renderNotification = %q, want %q", got, want)
	}
}
