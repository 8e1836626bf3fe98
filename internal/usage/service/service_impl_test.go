package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/ragstack/creditledger/internal/clock"
	settingsdomain "github.com/ragstack/creditledger/internal/settings/domain"
	"github.com/ragstack/creditledger/internal/usage/domain"
	usagerepo "github.com/ragstack/creditledger/internal/usage/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type ratioStub struct {
	settingsdomain.Service

	tokensPerCredit int64
}

func (s *ratioStub) TokensPerCredit(ctx context.Context) (int64, error) {
	return s.tokensPerCredit, nil
}

func setupUsageService(t *testing.T, tokensPerCredit int64, clk clock.Clock) domain.Service {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&domain.LogEntry{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(Params{
		Log:       zap.NewNop(),
		Repo:      usagerepo.ProvideGorm(db),
		Settings:  &ratioStub{tokensPerCredit: tokensPerCredit},
		Snowflake: node,
		Clock:     clk,
	})
}

func TestAppendChargesAtCurrentRatio(t *testing.T) {
	svc := setupUsageService(t, 1000, clock.SystemClock{})
	ctx := context.Background()

	entry, err := svc.Append(ctx, domain.AppendRequest{
		UserID:       "u1",
		InputTokens:  1500,
		OutputTokens: 1000,
	})
	require.NoError(t, err)
	require.Equal(t, int64(2500), entry.TotalTokens)
	require.True(t, entry.CreditsCharged().Equal(decimal.RequireFromString("2.5")),
		"got %s", entry.CreditsCharged())
}

func TestAppendRoundsFractionalChargeUp(t *testing.T) {
	svc := setupUsageService(t, 30000, clock.SystemClock{})
	ctx := context.Background()

	entry, err := svc.Append(ctx, domain.AppendRequest{UserID: "u1", InputTokens: 1})
	require.NoError(t, err)
	require.Equal(t, int64(1), entry.CreditUnits)
}

func TestAppendTruncatesQueryText(t *testing.T) {
	svc := setupUsageService(t, 1000, clock.SystemClock{})
	ctx := context.Background()

	long := strings.Repeat("q", 900)
	entry, err := svc.Append(ctx, domain.AppendRequest{
		UserID:      "u1",
		InputTokens: 10,
		QueryText:   &long,
	})
	require.NoError(t, err)
	require.NotNil(t, entry.QueryText)
	require.Len(t, *entry.QueryText, queryTextLimit)
}

func TestAppendTruncatesMultibyteQueryOnRuneBoundary(t *testing.T) {
	svc := setupUsageService(t, 1000, clock.SystemClock{})
	ctx := context.Background()

	// Three-byte runes never line up with the byte limit, so a naive
	// byte slice would cut one in half.
	long := strings.Repeat("日", 400)
	entry, err := svc.Append(ctx, domain.AppendRequest{
		UserID:      "u1",
		InputTokens: 10,
		QueryText:   &long,
	})
	require.NoError(t, err)
	require.NotNil(t, entry.QueryText)
	require.True(t, utf8.ValidString(*entry.QueryText))
	require.LessOrEqual(t, len(*entry.QueryText), queryTextLimit)

	entries, err := svc.History(ctx, "u1", domain.ListFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, utf8.ValidString(*entries[0].QueryText))
}

func TestSummaryAndDailyBreakdown(t *testing.T) {
	clk := &clock.Fake{Current: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
	svc := setupUsageService(t, 1000, clk)
	ctx := context.Background()

	_, err := svc.Append(ctx, domain.AppendRequest{UserID: "u1", InputTokens: 1000})
	require.NoError(t, err)
	_, err = svc.Append(ctx, domain.AppendRequest{UserID: "u1", OutputTokens: 500})
	require.NoError(t, err)
	clk.Advance(24 * time.Hour)
	_, err = svc.Append(ctx, domain.AppendRequest{UserID: "u1", InputTokens: 2000})
	require.NoError(t, err)
	// Other users never leak into the aggregate.
	_, err = svc.Append(ctx, domain.AppendRequest{UserID: "u2", InputTokens: 9000})
	require.NoError(t, err)

	summary, err := svc.Summary(ctx, "u1", 30)
	require.NoError(t, err)
	require.Equal(t, int64(3), summary.TotalQueries)
	require.Equal(t, int64(3500), summary.TotalTokens)
	require.True(t, summary.TotalCredits.Equal(decimal.RequireFromString("3.5")),
		"got %s", summary.TotalCredits)

	daily, err := svc.DailyBreakdown(ctx, "u1", 30)
	require.NoError(t, err)
	require.Len(t, daily, 2)
	require.Equal(t, "2026-03-14", daily[0].Date)
	require.True(t, daily[0].Credits.Equal(decimal.RequireFromString("1.5")))
	require.Equal(t, "2026-03-15", daily[1].Date)
	require.True(t, daily[1].Credits.Equal(decimal.NewFromInt(2)))
}

func TestHistoryFiltersByAgent(t *testing.T) {
	svc := setupUsageService(t, 1000, clock.SystemClock{})
	ctx := context.Background()

	agent := "bot-7"
	_, err := svc.Append(ctx, domain.AppendRequest{UserID: "u1", AgentID: &agent, InputTokens: 10})
	require.NoError(t, err)
	_, err = svc.Append(ctx, domain.AppendRequest{UserID: "u1", InputTokens: 20})
	require.NoError(t, err)

	entries, err := svc.History(ctx, "u1", domain.ListFilter{AgentID: agent})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, agent, *entries[0].AgentID)

	all, err := svc.History(ctx, "u1", domain.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
}
