package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ragstack/creditledger/internal/settings/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/datatypes"
)

type mongoRepo struct {
	settings *mongo.Collection
	plans    *mongo.Collection
}

// ProvideMongo returns the document-store adapter.
func ProvideMongo(db *mongo.Database) domain.Repository {
	return &mongoRepo{
		settings: db.Collection("billing_settings"),
		plans:    db.Collection("subscription_plans"),
	}
}

// Credits are persisted as strings; the driver has no decimal mapping and
// strings survive round-trips exactly.
type settingDoc struct {
	Key         string    `bson:"_id"`
	Value       string    `bson:"value"`
	Description string    `bson:"description"`
	UpdatedAt   time.Time `bson:"updated_at"`
	UpdatedBy   string    `bson:"updated_by"`
}

type planDoc struct {
	ID           string    `bson:"_id"`
	Name         string    `bson:"name"`
	Description  string    `bson:"description"`
	AmountMinor  int64     `bson:"amount_minor"`
	BaseCredits  string    `bson:"base_credits"`
	BonusCredits string    `bson:"bonus_credits"`
	IsActive     bool      `bson:"is_active"`
	SortOrder    int       `bson:"sort_order"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func (r *mongoRepo) GetSetting(ctx context.Context, key string) (*domain.BillingSetting, error) {
	var doc settingDoc
	err := r.settings.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	setting := settingFromDoc(doc)
	return &setting, nil
}

func (r *mongoRepo) UpsertSetting(ctx context.Context, setting *domain.BillingSetting) error {
	_, err := r.settings.UpdateOne(ctx,
		bson.M{"_id": setting.Key},
		bson.M{"$set": bson.M{
			"value":       string(setting.Value),
			"description": setting.Description,
			"updated_at":  setting.UpdatedAt,
			"updated_by":  setting.UpdatedBy,
		}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *mongoRepo) ListSettings(ctx context.Context) ([]domain.BillingSetting, error) {
	cur, err := r.settings.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []settingDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	settings := make([]domain.BillingSetting, 0, len(docs))
	for _, doc := range docs {
		settings = append(settings, settingFromDoc(doc))
	}
	return settings, nil
}

func (r *mongoRepo) GetPlan(ctx context.Context, id string) (*domain.SubscriptionPlan, error) {
	var doc planDoc
	err := r.plans.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	plan, err := planFromDoc(doc)
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *mongoRepo) ListPlans(ctx context.Context, activeOnly bool) ([]domain.SubscriptionPlan, error) {
	filter := bson.M{}
	if activeOnly {
		filter["is_active"] = true
	}
	cur, err := r.plans.Find(ctx, filter, options.Find().SetSort(bson.D{
		{Key: "sort_order", Value: 1},
		{Key: "_id", Value: 1},
	}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []planDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	plans := make([]domain.SubscriptionPlan, 0, len(docs))
	for _, doc := range docs {
		plan, err := planFromDoc(doc)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

func (r *mongoRepo) UpsertPlan(ctx context.Context, plan *domain.SubscriptionPlan) error {
	_, err := r.plans.UpdateOne(ctx,
		bson.M{"_id": plan.ID},
		bson.M{"$set": bson.M{
			"name":          plan.Name,
			"description":   plan.Description,
			"amount_minor":  plan.AmountMinor,
			"base_credits":  plan.BaseCredits.String(),
			"bonus_credits": plan.BonusCredits.String(),
			"is_active":     plan.IsActive,
			"sort_order":    plan.SortOrder,
			"updated_at":    plan.UpdatedAt,
		}, "$setOnInsert": bson.M{
			"created_at": plan.CreatedAt,
		}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *mongoRepo) SeedPlans(ctx context.Context, plans []domain.SubscriptionPlan) error {
	for _, plan := range plans {
		_, err := r.plans.UpdateOne(ctx,
			bson.M{"_id": plan.ID},
			bson.M{"$setOnInsert": docFromPlan(plan)},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func settingFromDoc(doc settingDoc) domain.BillingSetting {
	return domain.BillingSetting{
		Key:         doc.Key,
		Value:       datatypes.JSON(doc.Value),
		Description: doc.Description,
		UpdatedAt:   doc.UpdatedAt,
		UpdatedBy:   doc.UpdatedBy,
	}
}

func planFromDoc(doc planDoc) (domain.SubscriptionPlan, error) {
	base, err := decimal.NewFromString(doc.BaseCredits)
	if err != nil {
		return domain.SubscriptionPlan{}, err
	}
	bonus := decimal.Zero
	if doc.BonusCredits != "" {
		bonus, err = decimal.NewFromString(doc.BonusCredits)
		if err != nil {
			return domain.SubscriptionPlan{}, err
		}
	}
	return domain.SubscriptionPlan{
		ID:           doc.ID,
		Name:         doc.Name,
		Description:  doc.Description,
		AmountMinor:  doc.AmountMinor,
		BaseCredits:  base,
		BonusCredits: bonus,
		IsActive:     doc.IsActive,
		SortOrder:    doc.SortOrder,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}, nil
}

func docFromPlan(plan domain.SubscriptionPlan) planDoc {
	return planDoc{
		ID:           plan.ID,
		Name:         plan.Name,
		Description:  plan.Description,
		AmountMinor:  plan.AmountMinor,
		BaseCredits:  plan.BaseCredits.String(),
		BonusCredits: plan.BonusCredits.String(),
		IsActive:     plan.IsActive,
		SortOrder:    plan.SortOrder,
		CreatedAt:    plan.CreatedAt,
		UpdatedAt:    plan.UpdatedAt,
	}
}
