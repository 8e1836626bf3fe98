package repository

import (
	"context"

	"github.com/ragstack/creditledger/internal/audit/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoRepo struct {
	coll *mongo.Collection
}

func ProvideMongo(db *mongo.Database) domain.Repository {
	return &mongoRepo{coll: db.Collection("audit_logs")}
}

func (r *mongoRepo) Insert(ctx context.Context, entry *domain.Entry) error {
	_, err := r.coll.InsertOne(ctx, entry)
	return err
}

func (r *mongoRepo) List(ctx context.Context, filter domain.ListFilter) ([]domain.Entry, error) {
	query := bson.M{}
	if filter.ActorID != "" {
		query["actor_id"] = filter.ActorID
	}
	if filter.Action != "" {
		query["action"] = filter.Action
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(filter.Offset)).
		SetLimit(int64(limit))

	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []domain.Entry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
