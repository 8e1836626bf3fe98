package repository

import (
	"context"
	"time"

	"github.com/ragstack/creditledger/internal/usage/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoRepo struct {
	coll *mongo.Collection
}

func ProvideMongo(db *mongo.Database) domain.Repository {
	return &mongoRepo{coll: db.Collection("usage_logs")}
}

// EnsureMongoUsageIndexes creates the lookup indexes the aggregates depend on.
func EnsureMongoUsageIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("usage_logs").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
	})
	return err
}

func (r *mongoRepo) Insert(ctx context.Context, entry *domain.LogEntry) error {
	_, err := r.coll.InsertOne(ctx, entry)
	return err
}

func (r *mongoRepo) SumCreditUnitsSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	cursor, err := r.coll.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"user_id":    userID,
			"created_at": bson.M{"$gte": since},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":          nil,
			"credit_units": bson.M{"$sum": "$credit_units"},
		}}},
	})
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		CreditUnits int64 `bson:"credit_units"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].CreditUnits, nil
}

func (r *mongoRepo) List(ctx context.Context, userID string, filter domain.ListFilter) ([]domain.LogEntry, error) {
	query := bson.M{"user_id": userID}
	if filter.AgentID != "" {
		query["agent_id"] = filter.AgentID
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

	var entries []domain.LogEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *mongoRepo) Aggregate(ctx context.Context, userID string, since time.Time) (domain.SummaryRow, error) {
	cursor, err := r.coll.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"user_id":    userID,
			"created_at": bson.M{"$gte": since},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":          nil,
			"queries":      bson.M{"$sum": 1},
			"tokens":       bson.M{"$sum": "$total_tokens"},
			"credit_units": bson.M{"$sum": "$credit_units"},
		}}},
	})
	if err != nil {
		return domain.SummaryRow{}, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Queries     int64 `bson:"queries"`
		Tokens      int64 `bson:"tokens"`
		CreditUnits int64 `bson:"credit_units"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return domain.SummaryRow{}, err
	}
	if len(rows) == 0 {
		return domain.SummaryRow{}, nil
	}
	return domain.SummaryRow{
		Queries:     rows[0].Queries,
		Tokens:      rows[0].Tokens,
		CreditUnits: rows[0].CreditUnits,
	}, nil
}

func (r *mongoRepo) AggregateDaily(ctx context.Context, userID string, since time.Time) ([]domain.DailyRow, error) {
	cursor, err := r.coll.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"user_id":    userID,
			"created_at": bson.M{"$gte": since},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{"$dateToString": bson.M{
				"format": "%Y-%m-%d",
				"date":   "$created_at",
			}},
			"queries":      bson.M{"$sum": 1},
			"tokens":       bson.M{"$sum": "$total_tokens"},
			"credit_units": bson.M{"$sum": "$credit_units"},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var raw []struct {
		Date        string `bson:"_id"`
		Queries     int64  `bson:"queries"`
		Tokens      int64  `bson:"tokens"`
		CreditUnits int64  `bson:"credit_units"`
	}
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, err
	}
	rows := make([]domain.DailyRow, 0, len(raw))
	for _, r := range raw {
		rows = append(rows, domain.DailyRow{
			Date:        r.Date,
			Queries:     r.Queries,
			Tokens:      r.Tokens,
			CreditUnits: r.CreditUnits,
		})
	}
	return rows, nil
}

func (r *mongoRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.coll.DeleteMany(ctx, bson.M{"created_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}
