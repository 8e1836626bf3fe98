package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ragstack/creditledger/internal/payment/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoRepo struct {
	coll *mongo.Collection
}

func ProvideMongo(db *mongo.Database) domain.Repository {
	return &mongoRepo{coll: db.Collection("payments")}
}

// EnsureMongoPaymentIndexes creates the order correlation index.
func EnsureMongoPaymentIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("payments").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "order_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "idempotency_key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	return err
}

func (r *mongoRepo) Insert(ctx context.Context, payment *domain.Payment) error {
	_, err := r.coll.InsertOne(ctx, payment)
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrSettlementConflict
	}
	return err
}

func (r *mongoRepo) FindByOrderID(ctx context.Context, orderID string) (*domain.Payment, error) {
	var p domain.Payment
	err := r.coll.FindOne(ctx, bson.M{"order_id": orderID}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *mongoRepo) MarkCompleted(ctx context.Context, orderID, paymentID, signature string, at time.Time) (bool, error) {
	result, err := r.coll.UpdateOne(ctx,
		bson.M{"order_id": orderID, "status": domain.StatusPending},
		bson.M{"$set": bson.M{
			"status":       domain.StatusCompleted,
			"payment_id":   paymentID,
			"signature":    signature,
			"completed_at": at,
		}},
	)
	if err != nil {
		return false, err
	}
	return result.ModifiedCount > 0, nil
}

func (r *mongoRepo) RevertToPending(ctx context.Context, orderID string) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"order_id": orderID, "status": domain.StatusCompleted},
		bson.M{
			"$set":   bson.M{"status": domain.StatusPending},
			"$unset": bson.M{"completed_at": ""},
		},
	)
	return err
}

func (r *mongoRepo) MarkFailed(ctx context.Context, orderID, errMsg string, at time.Time) (bool, error) {
	result, err := r.coll.UpdateOne(ctx,
		bson.M{"order_id": orderID, "status": domain.StatusPending},
		bson.M{"$set": bson.M{
			"status":        domain.StatusFailed,
			"error_message": errMsg,
			"completed_at":  at,
		}},
	)
	if err != nil {
		return false, err
	}
	return result.ModifiedCount > 0, nil
}

func (r *mongoRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Payment, error) {
	if limit <= 0 {
		limit = 50
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	cursor, err := r.coll.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var payments []domain.Payment
	if err := cursor.All(ctx, &payments); err != nil {
		return nil, err
	}
	return payments, nil
}
