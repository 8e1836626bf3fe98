package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ragstack/creditledger/internal/clock"
	"github.com/ragstack/creditledger/internal/config"
	usagedomain "github.com/ragstack/creditledger/internal/usage/domain"
	usagerepo "github.com/ragstack/creditledger/internal/usage/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupScheduler(t *testing.T, retentionDays int, clk clock.Clock) (*Scheduler, usagedomain.Repository) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&usagedomain.LogEntry{}))

	repo := usagerepo.ProvideGorm(db)
	sched, err := New(Params{
		Log:       zap.NewNop(),
		Cfg:       config.Config{UsageRetentionDays: retentionDays},
		UsageRepo: repo,
		Clock:     clk,
	})
	require.NoError(t, err)
	return sched, repo
}

func TestRunOncePurgesOnlyExpiredEntries(t *testing.T) {
	clk := &clock.Fake{Current: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)}
	sched, repo := setupScheduler(t, 90, clk)
	ctx := context.Background()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	insert := func(age time.Duration) {
		require.NoError(t, repo.Insert(ctx, &usagedomain.LogEntry{
			ID:        node.Generate(),
			UserID:    "u1",
			CreatedAt: clk.Current.Add(-age),
		}))
	}
	insert(91 * 24 * time.Hour)
	insert(120 * 24 * time.Hour)
	insert(89 * 24 * time.Hour)
	insert(time.Hour)

	require.NoError(t, sched.RunOnce(ctx))

	entries, err := repo.List(ctx, "u1", usagedomain.ListFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestCutoffFollowsInjectedClock(t *testing.T) {
	clk := &clock.Fake{Current: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)}
	sched, _ := setupScheduler(t, 30, clk)

	require.Equal(t, time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC), sched.Cutoff())
	clk.Advance(48 * time.Hour)
	require.Equal(t, time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC), sched.Cutoff())
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	_, err := New(Params{})
	require.ErrorIs(t, err, ErrInvalidConfig)
}
