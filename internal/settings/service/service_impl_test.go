package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ragstack/creditledger/internal/clock"
	"github.com/ragstack/creditledger/internal/settings/domain"
	settingsrepo "github.com/ragstack/creditledger/internal/settings/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupSettingsService(t *testing.T, clk clock.Clock) domain.Service {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	require.NoError(t, db.AutoMigrate(&domain.BillingSetting{}, &domain.SubscriptionPlan{}))

	return NewService(Params{
		Log:   zap.NewNop(),
		Repo:  settingsrepo.ProvideGorm(db),
		Clock: clk,
	})
}

func TestGettersFallBackToDefaults(t *testing.T) {
	clk := &clock.Fake{Current: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc := setupSettingsService(t, clk)
	ctx := context.Background()

	ratio, err := svc.TokensPerCredit(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1000, ratio)

	cap, err := svc.DailyCreditCap(ctx)
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(100).Equal(cap))

	free, err := svc.FreeCredits(ctx)
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(10).Equal(free))

	max, err := svc.MaxTokensPerQuery(ctx)
	require.NoError(t, err)
	require.Equal(t, 4000, max)
}

func TestUpdateSettingOverridesDefault(t *testing.T) {
	clk := &clock.Fake{Current: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc := setupSettingsService(t, clk)
	ctx := context.Background()

	err := svc.UpdateSetting(ctx, domain.UpdateSettingRequest{
		Key:       domain.KeyTokensPerCredit,
		Value:     2500,
		UpdatedBy: "admin-1",
	})
	require.NoError(t, err)

	ratio, err := svc.TokensPerCredit(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2500, ratio)
}

func TestUpdateSettingRejectsEmptyKey(t *testing.T) {
	clk := &clock.Fake{Current: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc := setupSettingsService(t, clk)

	err := svc.UpdateSetting(context.Background(), domain.UpdateSettingRequest{Key: "  "})
	require.ErrorIs(t, err, domain.ErrInvalidKey)
}

func TestGetAllSettingsMergesStoredOverDefaults(t *testing.T) {
	clk := &clock.Fake{Current: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc := setupSettingsService(t, clk)
	ctx := context.Background()

	require.NoError(t, svc.UpdateSetting(ctx, domain.UpdateSettingRequest{
		Key:       domain.KeyDailyCreditCap,
		Value:     250,
		UpdatedBy: "admin-1",
	}))

	views, err := svc.GetAllSettings(ctx)
	require.NoError(t, err)
	require.Len(t, views, len(domain.Defaults))

	byKey := make(map[string]domain.SettingView, len(views))
	for _, v := range views {
		byKey[v.Key] = v
	}
	require.EqualValues(t, 250, byKey[domain.KeyDailyCreditCap].Value)
	require.Equal(t, "admin-1", byKey[domain.KeyDailyCreditCap].UpdatedBy)
	require.EqualValues(t, 1000, byKey[domain.KeyTokensPerCredit].Value)
	require.Empty(t, byKey[domain.KeyTokensPerCredit].UpdatedBy)
}

func TestListPlansSeedsDefaultCatalogOnce(t *testing.T) {
	clk := &clock.Fake{Current: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc := setupSettingsService(t, clk)
	ctx := context.Background()

	plans, err := svc.ListPlans(ctx, true)
	require.NoError(t, err)
	require.Len(t, plans, 3)
	require.Equal(t, "starter", plans[0].ID)

	again, err := svc.ListPlans(ctx, true)
	require.NoError(t, err)
	require.Len(t, again, 3)
}

func TestDeactivatePlanHidesItFromActiveList(t *testing.T) {
	clk := &clock.Fake{Current: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc := setupSettingsService(t, clk)
	ctx := context.Background()

	_, err := svc.ListPlans(ctx, true)
	require.NoError(t, err)

	require.NoError(t, svc.DeactivatePlan(ctx, "pro"))

	active, err := svc.ListPlans(ctx, true)
	require.NoError(t, err)
	for _, p := range active {
		require.NotEqual(t, "pro", p.ID)
	}

	all, err := svc.ListPlans(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestUpsertPlanValidation(t *testing.T) {
	clk := &clock.Fake{Current: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc := setupSettingsService(t, clk)
	ctx := context.Background()

	_, err := svc.UpsertPlan(ctx, domain.UpsertPlanRequest{ID: "", Name: "X", AmountMinor: 100})
	require.ErrorIs(t, err, domain.ErrInvalidPlan)

	_, err = svc.UpsertPlan(ctx, domain.UpsertPlanRequest{
		ID:          "neg",
		Name:        "Negative",
		AmountMinor: 100,
		BaseCredits: decimal.NewFromInt(-1),
	})
	require.ErrorIs(t, err, domain.ErrInvalidPlan)

	plan, err := svc.UpsertPlan(ctx, domain.UpsertPlanRequest{
		ID:          "team",
		Name:        "Team",
		AmountMinor: 149900,
		BaseCredits: decimal.NewFromInt(1500),
	})
	require.NoError(t, err)
	require.True(t, plan.IsActive)

	got, err := svc.GetPlan(ctx, "team")
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(1500).Equal(got.TotalCredits()))
}

func TestGetPlanUnknownID(t *testing.T) {
	clk := &clock.Fake{Current: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc := setupSettingsService(t, clk)

	_, err := svc.GetPlan(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrPlanNotFound)
}
