package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ragstack/creditledger/internal/clock"
	settingsdomain "github.com/ragstack/creditledger/internal/settings/domain"
	usagedomain "github.com/ragstack/creditledger/internal/usage/domain"
	usagerepo "github.com/ragstack/creditledger/internal/usage/repository"
	walletdomain "github.com/ragstack/creditledger/internal/wallet/domain"
	walletrepo "github.com/ragstack/creditledger/internal/wallet/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type settingsStub struct {
	tokensPerCredit int64
	dailyCap        decimal.Decimal
	freeCredits     decimal.Decimal
	maxTokens       int
	botCost         decimal.Decimal
}

func (s *settingsStub) TokensPerCredit(ctx context.Context) (int64, error) {
	return s.tokensPerCredit, nil
}

func (s *settingsStub) DailyCreditCap(ctx context.Context) (decimal.Decimal, error) {
	return s.dailyCap, nil
}

func (s *settingsStub) FreeCredits(ctx context.Context) (decimal.Decimal, error) {
	return s.freeCredits, nil
}

func (s *settingsStub) MaxTokensPerQuery(ctx context.Context) (int, error) {
	return s.maxTokens, nil
}

func (s *settingsStub) BotCreationCost(ctx context.Context) (decimal.Decimal, error) {
	return s.botCost, nil
}

func (s *settingsStub) GetAllSettings(ctx context.Context) ([]settingsdomain.SettingView, error) {
	return nil, nil
}

func (s *settingsStub) UpdateSetting(ctx context.Context, req settingsdomain.UpdateSettingRequest) error {
	return nil
}

func (s *settingsStub) GetPlan(ctx context.Context, id string) (*settingsdomain.SubscriptionPlan, error) {
	return nil, settingsdomain.ErrPlanNotFound
}

func (s *settingsStub) ListPlans(ctx context.Context, activeOnly bool) ([]settingsdomain.SubscriptionPlan, error) {
	return nil, nil
}

func (s *settingsStub) UpsertPlan(ctx context.Context, req settingsdomain.UpsertPlanRequest) (*settingsdomain.SubscriptionPlan, error) {
	return nil, nil
}

func (s *settingsStub) DeactivatePlan(ctx context.Context, id string) error {
	return nil
}

func defaultSettings() *settingsStub {
	return &settingsStub{
		tokensPerCredit: 1000,
		dailyCap:        decimal.NewFromInt(100),
		freeCredits:     decimal.NewFromInt(10),
		maxTokens:       4000,
		botCost:         decimal.NewFromInt(50),
	}
}

func setupWalletService(t *testing.T, settings settingsdomain.Service, clk clock.Clock) (walletdomain.Service, walletdomain.Repository, usagedomain.Repository) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	_ = db.Exec("PRAGMA busy_timeout = 5000").Error

	require.NoError(t, db.AutoMigrate(&walletdomain.Wallet{}, &usagedomain.LogEntry{}))

	wRepo := walletrepo.ProvideGorm(db)
	uRepo := usagerepo.ProvideGorm(db)
	svc := NewService(Params{
		Log:       zap.NewNop(),
		Repo:      wRepo,
		UsageRepo: uRepo,
		Settings:  settings,
		Clock:     clk,
	})
	return svc, wRepo, uRepo
}

func seedUsage(t *testing.T, repo usagedomain.Repository, node *snowflake.Node, userID string, creditUnits int64, at time.Time) {
	t.Helper()
	require.NoError(t, repo.Insert(context.Background(), &usagedomain.LogEntry{
		ID:          node.Generate(),
		UserID:      userID,
		TotalTokens: creditUnits / 10,
		CreditUnits: creditUnits,
		CreatedAt:   at,
	}))
}

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return node
}

func TestDebitHappyPath(t *testing.T) {
	svc, _, _ := setupWalletService(t, defaultSettings(), clock.SystemClock{})
	ctx := context.Background()

	_, err := svc.GetOrCreate(ctx, "u1", "u1@example.com")
	require.NoError(t, err)
	_, err = svc.Credit(ctx, "u1", decimal.NewFromInt(500), walletdomain.SourceGrant)
	require.NoError(t, err)

	balance, err := svc.Debit(ctx, "u1", decimal.RequireFromString("2.5"))
	require.NoError(t, err)
	require.True(t, balance.Equal(decimal.RequireFromString("497.5")), "got %s", balance)
}

func TestDebitInsufficientCredits(t *testing.T) {
	svc, _, _ := setupWalletService(t, defaultSettings(), clock.SystemClock{})
	ctx := context.Background()

	_, err := svc.GetOrCreate(ctx, "u1", "u1@example.com")
	require.NoError(t, err)
	_, err = svc.Credit(ctx, "u1", decimal.NewFromInt(1), walletdomain.SourceGrant)
	require.NoError(t, err)

	_, err = svc.Debit(ctx, "u1", decimal.NewFromInt(2))
	require.ErrorIs(t, err, walletdomain.ErrInsufficientCredits)

	balance, err := svc.Balance(ctx, "u1")
	require.NoError(t, err)
	require.True(t, balance.Equal(decimal.NewFromInt(1)))
}

func TestDebitSuspendedWallet(t *testing.T) {
	svc, _, _ := setupWalletService(t, defaultSettings(), clock.SystemClock{})
	ctx := context.Background()

	_, err := svc.GetOrCreate(ctx, "u1", "u1@example.com")
	require.NoError(t, err)
	_, err = svc.Credit(ctx, "u1", decimal.NewFromInt(50), walletdomain.SourceGrant)
	require.NoError(t, err)
	require.NoError(t, svc.Suspend(ctx, "u1"))

	_, err = svc.Debit(ctx, "u1", decimal.NewFromInt(1))
	require.ErrorIs(t, err, walletdomain.ErrWalletSuspended)

	require.NoError(t, svc.Unsuspend(ctx, "u1"))
	_, err = svc.Debit(ctx, "u1", decimal.NewFromInt(1))
	require.NoError(t, err)
}

func TestDebitNonPositiveAmountIsNoOp(t *testing.T) {
	svc, repo, _ := setupWalletService(t, defaultSettings(), clock.SystemClock{})
	ctx := context.Background()

	// No wallet exists for this user, and the no-op must not create one.
	balance, err := svc.Debit(ctx, "stranger", decimal.Zero)
	require.NoError(t, err)
	require.True(t, balance.IsZero())

	balance, err = svc.Debit(ctx, "stranger", decimal.NewFromInt(-3))
	require.NoError(t, err)
	require.True(t, balance.IsZero())

	w, err := repo.Find(ctx, "stranger")
	require.NoError(t, err)
	require.Nil(t, w)

	_, err = svc.Credit(ctx, "u1", decimal.NewFromInt(25), walletdomain.SourceGrant)
	require.NoError(t, err)

	balance, err = svc.Debit(ctx, "u1", decimal.Zero)
	require.NoError(t, err)
	require.True(t, balance.Equal(decimal.NewFromInt(25)))
}

func TestDebitUnknownUserProvisionsEmptyWallet(t *testing.T) {
	svc, repo, _ := setupWalletService(t, defaultSettings(), clock.SystemClock{})
	ctx := context.Background()

	_, err := svc.Debit(ctx, "stranger", decimal.NewFromInt(1))
	require.ErrorIs(t, err, walletdomain.ErrInsufficientCredits)

	w, err := repo.Find(ctx, "stranger")
	require.NoError(t, err)
	require.NotNil(t, w)
	require.Zero(t, w.CreditsRemainingUnits)
}

func TestConcurrentDebitsSingleWinner(t *testing.T) {
	settings := defaultSettings()
	settings.dailyCap = decimal.NewFromInt(1000)
	svc, _, _ := setupWalletService(t, settings, clock.SystemClock{})
	ctx := context.Background()

	_, err := svc.GetOrCreate(ctx, "u1", "u1@example.com")
	require.NoError(t, err)
	_, err = svc.Credit(ctx, "u1", decimal.NewFromInt(500), walletdomain.SourceGrant)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Debit(ctx, "u1", decimal.NewFromInt(300))
		}(i)
	}
	wg.Wait()

	var succeeded, failed int
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, walletdomain.ErrInsufficientCredits)
			failed++
		}
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, failed)

	balance, err := svc.Balance(ctx, "u1")
	require.NoError(t, err)
	require.True(t, balance.Equal(decimal.NewFromInt(200)), "got %s", balance)
}

func TestDebitDailyCap(t *testing.T) {
	node := mustNode(t)
	clk := &clock.Fake{Current: time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)}
	svc, _, uRepo := setupWalletService(t, defaultSettings(), clk)
	ctx := context.Background()

	_, err := svc.GetOrCreate(ctx, "u1", "u1@example.com")
	require.NoError(t, err)
	_, err = svc.Credit(ctx, "u1", decimal.NewFromInt(500), walletdomain.SourceGrant)
	require.NoError(t, err)

	// 95 credits consumed earlier today against a cap of 100.
	seedUsage(t, uRepo, node, "u1", 95_0000, clk.Current.Add(-2*time.Hour))

	_, err = svc.Debit(ctx, "u1", decimal.NewFromInt(10))
	require.ErrorIs(t, err, walletdomain.ErrDailyCapReached)

	balance, err := svc.Debit(ctx, "u1", decimal.NewFromInt(5))
	require.NoError(t, err)
	require.True(t, balance.Equal(decimal.NewFromInt(495)))
}

func TestDebitDailyCapResetsAtMidnight(t *testing.T) {
	node := mustNode(t)
	clk := &clock.Fake{Current: time.Date(2026, 3, 14, 23, 30, 0, 0, time.UTC)}
	svc, _, uRepo := setupWalletService(t, defaultSettings(), clk)
	ctx := context.Background()

	_, err := svc.GetOrCreate(ctx, "u1", "u1@example.com")
	require.NoError(t, err)
	_, err = svc.Credit(ctx, "u1", decimal.NewFromInt(500), walletdomain.SourceGrant)
	require.NoError(t, err)
	seedUsage(t, uRepo, node, "u1", 100_0000, clk.Current.Add(-time.Hour))

	_, err = svc.Debit(ctx, "u1", decimal.NewFromInt(1))
	require.ErrorIs(t, err, walletdomain.ErrDailyCapReached)

	clk.Advance(time.Hour)

	_, err = svc.Debit(ctx, "u1", decimal.NewFromInt(1))
	require.NoError(t, err)
}

func TestCreditPurchaseTotalTracksPaymentsOnly(t *testing.T) {
	svc, repo, _ := setupWalletService(t, defaultSettings(), clock.SystemClock{})
	ctx := context.Background()

	_, err := svc.Credit(ctx, "u1", decimal.NewFromInt(50), walletdomain.SourcePayment)
	require.NoError(t, err)
	_, err = svc.Credit(ctx, "u1", decimal.NewFromInt(10), walletdomain.SourceGrant)
	require.NoError(t, err)

	w, err := repo.Find(ctx, "u1")
	require.NoError(t, err)
	require.True(t, w.CreditsRemaining().Equal(decimal.NewFromInt(60)))
	require.True(t, w.TotalPurchased().Equal(decimal.NewFromInt(50)))
}

func TestInfoMergesDailyUsage(t *testing.T) {
	node := mustNode(t)
	clk := &clock.Fake{Current: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
	svc, _, uRepo := setupWalletService(t, defaultSettings(), clk)
	ctx := context.Background()

	_, err := svc.Credit(ctx, "u1", decimal.NewFromInt(100), walletdomain.SourceGrant)
	require.NoError(t, err)
	seedUsage(t, uRepo, node, "u1", 12_5000, clk.Current.Add(-time.Hour))
	// Yesterday's consumption stays out of the daily window.
	seedUsage(t, uRepo, node, "u1", 40_0000, clk.Current.Add(-30*time.Hour))

	info, err := svc.Info(ctx, "u1")
	require.NoError(t, err)
	require.True(t, info.UsedToday.Equal(decimal.RequireFromString("12.5")), "got %s", info.UsedToday)
	require.True(t, info.DailyCap.Equal(decimal.NewFromInt(100)))
	require.False(t, info.IsSuspended)
}

func TestHasSufficientCreditsAdvisory(t *testing.T) {
	svc, _, _ := setupWalletService(t, defaultSettings(), clock.SystemClock{})
	ctx := context.Background()

	ok, err := svc.HasSufficientCredits(ctx, "nobody", decimal.NewFromInt(1))
	require.NoError(t, err)
	require.False(t, ok)

	_, err = svc.Credit(ctx, "u1", decimal.NewFromInt(10), walletdomain.SourceGrant)
	require.NoError(t, err)

	ok, err = svc.HasSufficientCredits(ctx, "u1", decimal.NewFromInt(10))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.HasSufficientCredits(ctx, "u1", decimal.RequireFromString("10.0001"))
	require.NoError(t, err)
	require.False(t, ok)
}
