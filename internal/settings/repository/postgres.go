package repository

import (
	"context"

	"github.com/ragstack/creditledger/internal/settings/domain"
	"gorm.io/gorm"
)

type gormRepo struct {
	db *gorm.DB
}

// ProvideGorm returns the relational adapter.
func ProvideGorm(db *gorm.DB) domain.Repository {
	return &gormRepo{db: db}
}

func (r *gormRepo) GetSetting(ctx context.Context, key string) (*domain.BillingSetting, error) {
	var setting domain.BillingSetting
	err := r.db.WithContext(ctx).Raw(
		`SELECT key, value, description, updated_at, updated_by
		 FROM billing_settings WHERE key = ?`,
		key,
	).Scan(&setting).Error
	if err != nil {
		return nil, err
	}
	if setting.Key == "" {
		return nil, nil
	}
	return &setting, nil
}

func (r *gormRepo) UpsertSetting(ctx context.Context, setting *domain.BillingSetting) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO billing_settings (key, value, description, updated_at, updated_by)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (key) DO UPDATE
		 SET value = excluded.value,
		     description = excluded.description,
		     updated_at = excluded.updated_at,
		     updated_by = excluded.updated_by`,
		setting.Key,
		setting.Value,
		setting.Description,
		setting.UpdatedAt,
		setting.UpdatedBy,
	).Error
}

func (r *gormRepo) ListSettings(ctx context.Context) ([]domain.BillingSetting, error) {
	var settings []domain.BillingSetting
	err := r.db.WithContext(ctx).
		Model(&domain.BillingSetting{}).
		Order("key asc").
		Find(&settings).Error
	if err != nil {
		return nil, err
	}
	return settings, nil
}

func (r *gormRepo) GetPlan(ctx context.Context, id string) (*domain.SubscriptionPlan, error) {
	var plan domain.SubscriptionPlan
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, name, description, amount_minor, base_credits, bonus_credits,
		        is_active, sort_order, created_at, updated_at
		 FROM subscription_plans WHERE id = ?`,
		id,
	).Scan(&plan).Error
	if err != nil {
		return nil, err
	}
	if plan.ID == "" {
		return nil, nil
	}
	return &plan, nil
}

func (r *gormRepo) ListPlans(ctx context.Context, activeOnly bool) ([]domain.SubscriptionPlan, error) {
	var plans []domain.SubscriptionPlan
	stmt := r.db.WithContext(ctx).Model(&domain.SubscriptionPlan{})
	if activeOnly {
		stmt = stmt.Where("is_active = ?", true)
	}
	err := stmt.Order("sort_order asc, id asc").Find(&plans).Error
	if err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *gormRepo) UpsertPlan(ctx context.Context, plan *domain.SubscriptionPlan) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO subscription_plans (
			id, name, description, amount_minor, base_credits, bonus_credits,
			is_active, sort_order, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE
		 SET name = excluded.name,
		     description = excluded.description,
		     amount_minor = excluded.amount_minor,
		     base_credits = excluded.base_credits,
		     bonus_credits = excluded.bonus_credits,
		     is_active = excluded.is_active,
		     sort_order = excluded.sort_order,
		     updated_at = excluded.updated_at`,
		plan.ID,
		plan.Name,
		plan.Description,
		plan.AmountMinor,
		plan.BaseCredits,
		plan.BonusCredits,
		plan.IsActive,
		plan.SortOrder,
		plan.CreatedAt,
		plan.UpdatedAt,
	).Error
}

func (r *gormRepo) SeedPlans(ctx context.Context, plans []domain.SubscriptionPlan) error {
	for i := range plans {
		plan := plans[i]
		err := r.db.WithContext(ctx).Exec(
			`INSERT INTO subscription_plans (
				id, name, description, amount_minor, base_credits, bonus_credits,
				is_active, sort_order, created_at, updated_at
			 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (id) DO NOTHING`,
			plan.ID,
			plan.Name,
			plan.Description,
			plan.AmountMinor,
			plan.BaseCredits,
			plan.BonusCredits,
			plan.IsActive,
			plan.SortOrder,
			plan.CreatedAt,
			plan.UpdatedAt,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}
