package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ragstack/creditledger/internal/audit/domain"
	auditrepo "github.com/ragstack/creditledger/internal/audit/repository"
	"github.com/ragstack/creditledger/internal/clock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupAuditService(t *testing.T, clk clock.Clock) domain.Service {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	require.NoError(t, db.AutoMigrate(&domain.Entry{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(Params{
		Log:       zap.NewNop(),
		Repo:      auditrepo.ProvideGorm(db),
		Snowflake: node,
		Clock:     clk,
	})
}

func TestRecordRoundTripsNumericMetadata(t *testing.T) {
	clk := &clock.Fake{Current: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc := setupAuditService(t, clk)
	ctx := context.Background()

	svc.Record(ctx, "admin-1", "ADD_CREDITS", "wallet", "u7",
		map[string]any{"amount": 2500})

	entries, err := svc.List(ctx, domain.ListFilter{ActorID: "admin-1"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "ADD_CREDITS", entries[0].Action)
	require.JSONEq(t, `{"amount": 2500}`, string(entries[0].Metadata))
}

func TestRecordDropsEmptyAction(t *testing.T) {
	clk := &clock.Fake{Current: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc := setupAuditService(t, clk)
	ctx := context.Background()

	svc.Record(ctx, "admin-1", "  ", "wallet", "u7", nil)

	entries, err := svc.List(ctx, domain.ListFilter{})
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestListFiltersByAction(t *testing.T) {
	clk := &clock.Fake{Current: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc := setupAuditService(t, clk)
	ctx := context.Background()

	svc.Record(ctx, "admin-1", "SUSPEND_USER", "wallet", "u1", nil)
	clk.Advance(time.Second)
	svc.Record(ctx, "admin-2", "ADD_CREDITS", "wallet", "u1", nil)

	entries, err := svc.List(ctx, domain.ListFilter{Action: "SUSPEND_USER"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "admin-1", entries[0].ActorID)
}
