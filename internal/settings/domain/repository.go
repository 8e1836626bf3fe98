package domain

import "context"

// Repository is the storage contract for settings and plans. Exactly one
// concrete implementation is active per deployment.
type Repository interface {
	GetSetting(ctx context.Context, key string) (*BillingSetting, error)
	UpsertSetting(ctx context.Context, setting *BillingSetting) error
	ListSettings(ctx context.Context) ([]BillingSetting, error)

	GetPlan(ctx context.Context, id string) (*SubscriptionPlan, error)
	ListPlans(ctx context.Context, activeOnly bool) ([]SubscriptionPlan, error)
	UpsertPlan(ctx context.Context, plan *SubscriptionPlan) error
	SeedPlans(ctx context.Context, plans []SubscriptionPlan) error
}
