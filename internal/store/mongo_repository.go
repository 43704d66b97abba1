/**
 * @description
 * MongoDB implementation of the `NotificationRepository` interface. The
 * notification-service owns this store; the unique index on transaction_id
 * is the durable inbox that makes the at-least-once event channel safe (a
 * redelivered event can never produce a second record).
 *
 * @dependencies
 * - go.mongodb.org/mongo-driver: The official MongoDB driver.
 * - internal/domain: For the NotificationRecord model.
 */

package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/paylink/fintech-backend/internal/domain"
)

// MongoNotificationRepository stores notification records in MongoDB.
type MongoNotificationRepository struct {
	collection *mongo.Collection
}

// NewMongoNotificationRepository creates the repository and ensures the
// unique index on transaction_id exists.
func NewMongoNotificationRepository(ctx context.Context, db *mongo.Database) (*MongoNotificationRepository, error) {
	collection := db.Collection("notifications")

	indexCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := collection.Indexes().CreateOne(indexCtx, mongo.IndexModel{
		Keys:    bson.D{{Key: "transaction_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, err
	}

	return &MongoNotificationRepository{collection: collection}, nil
}

// HasRecordForTransaction reports whether a record already exists for the
// given transaction id.
func (r *MongoNotificationRepository) HasRecordForTransaction(ctx context.Context, transactionID string) (bool, error) {
	err := r.collection.FindOne(ctx, bson.M{"transaction_id": transactionID}).Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CreateRecord appends a notification record. A duplicate transaction id is
// reported as ErrDuplicateNotification so callers can treat it as success.
func (r *MongoNotificationRepository) CreateRecord(ctx context.Context, record domain.NotificationRecord) error {
	_, err := r.collection.InsertOne(ctx, record)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateNotification
		}
		return err
	}
	return nil
}

// FindRecordsByEmail returns every notification logged for a recipient,
// newest first.
func (r *MongoNotificationRepository) FindRecordsByEmail(ctx context.Context, email string) ([]domain.NotificationRecord, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "received_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"email": email}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	records := make([]domain.NotificationRecord, 0)
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}
