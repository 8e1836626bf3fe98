package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ragstack/creditledger/internal/wallet/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoRepo struct {
	coll *mongo.Collection
}

func ProvideMongo(db *mongo.Database) domain.Repository {
	return &mongoRepo{coll: db.Collection("wallets")}
}

func (r *mongoRepo) GetOrCreate(ctx context.Context, userID, email string) (*domain.Wallet, error) {
	now := time.Now().UTC()
	var w domain.Wallet
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": userID},
		bson.M{"$setOnInsert": bson.M{
			"email":                   email,
			"credits_remaining":       int64(0),
			"total_credits_purchased": int64(0),
			"is_suspended":            false,
			"created_at":              now,
			"updated_at":              now,
		}},
		options.FindOneAndUpdate().
			SetUpsert(true).
			SetReturnDocument(options.After),
	).Decode(&w)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *mongoRepo) Find(ctx context.Context, userID string) (*domain.Wallet, error) {
	var w domain.Wallet
	err := r.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&w)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// Debit uses a filtered findAndModify so the balance floor and suspension
// check happen inside the storage engine.
func (r *mongoRepo) Debit(ctx context.Context, userID string, units int64) (int64, error) {
	var w domain.Wallet
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{
			"_id":               userID,
			"credits_remaining": bson.M{"$gte": units},
			"is_suspended":      false,
		},
		bson.M{
			"$inc": bson.M{"credits_remaining": -units},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&w)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, domain.ErrConditionalUpdateFailed
	}
	if err != nil {
		return 0, err
	}
	return w.CreditsRemainingUnits, nil
}

func (r *mongoRepo) Credit(ctx context.Context, userID string, units int64, countPurchased bool) (int64, error) {
	inc := bson.M{"credits_remaining": units}
	if countPurchased {
		inc["total_credits_purchased"] = units
	}
	var w domain.Wallet
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": userID},
		bson.M{
			"$inc": inc,
			"$set": bson.M{"updated_at": time.Now().UTC()},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&w)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, domain.ErrNoBillingAccount
	}
	if err != nil {
		return 0, err
	}
	return w.CreditsRemainingUnits, nil
}

func (r *mongoRepo) SetSuspended(ctx context.Context, userID string, suspended bool) error {
	result, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{
			"is_suspended": suspended,
			"updated_at":   time.Now().UTC(),
		}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return domain.ErrNoBillingAccount
	}
	return nil
}
