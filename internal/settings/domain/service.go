package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidKey   = errors.New("invalid_setting_key")
	ErrInvalidPlan  = errors.New("invalid_plan")
	ErrPlanNotFound = errors.New("plan_not_found")
)

// SettingView is a resolved setting with its default merged in.
type SettingView struct {
	Key         string `json:"key"`
	Value       any    `json:"value"`
	Description string `json:"description"`
	UpdatedAt   string `json:"updated_at,omitempty"`
	UpdatedBy   string `json:"updated_by,omitempty"`
}

type UpdateSettingRequest struct {
	Key       string
	Value     any
	UpdatedBy string
}

type UpsertPlanRequest struct {
	ID           string
	Name         string
	Description  string
	AmountMinor  int64
	BaseCredits  decimal.Decimal
	BonusCredits decimal.Decimal
	IsActive     *bool
	SortOrder    *int
}

// Service reads policy values on every billing decision and carries the
// admin mutation surface.
type Service interface {
	// Typed getters; fall back to the defaults table on missing keys.
	TokensPerCredit(ctx context.Context) (int64, error)
	DailyCreditCap(ctx context.Context) (decimal.Decimal, error)
	FreeCredits(ctx context.Context) (decimal.Decimal, error)
	MaxTokensPerQuery(ctx context.Context) (int, error)
	BotCreationCost(ctx context.Context) (decimal.Decimal, error)

	GetAllSettings(ctx context.Context) ([]SettingView, error)
	UpdateSetting(ctx context.Context, req UpdateSettingRequest) error

	GetPlan(ctx context.Context, id string) (*SubscriptionPlan, error)
	ListPlans(ctx context.Context, activeOnly bool) ([]SubscriptionPlan, error)
	UpsertPlan(ctx context.Context, req UpsertPlanRequest) (*SubscriptionPlan, error)
	DeactivatePlan(ctx context.Context, id string) error
}
