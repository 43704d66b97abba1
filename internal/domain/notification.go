package domain

import "time"

// NotificationRecord is the notification log entry owned by the
// notification-service. Exactly one record exists per transaction id; the
// unique index on TransactionID is what makes redelivered events harmless.
type NotificationRecord struct {
	TransactionID string    `json:"transactionId" bson:"transaction_id"`
	Email         string    `json:"email" bson:"email"`
	Message       string    `json:"message" bson:"message"`
	ReceivedAt    time.Time `json:"receivedAt" bson:"received_at"`
}
