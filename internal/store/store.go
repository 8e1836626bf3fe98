// Package store resolves the persistence backend once at startup. Every
// repository comes from the same backend; call sites see only the domain
// interfaces.
package store

import (
	"context"

	auditdomain "github.com/ragstack/creditledger/internal/audit/domain"
	auditrepo "github.com/ragstack/creditledger/internal/audit/repository"
	"github.com/ragstack/creditledger/internal/config"
	"github.com/ragstack/creditledger/internal/migration"
	paymentdomain "github.com/ragstack/creditledger/internal/payment/domain"
	paymentrepo "github.com/ragstack/creditledger/internal/payment/repository"
	settingsdomain "github.com/ragstack/creditledger/internal/settings/domain"
	settingsrepo "github.com/ragstack/creditledger/internal/settings/repository"
	usagedomain "github.com/ragstack/creditledger/internal/usage/domain"
	usagerepo "github.com/ragstack/creditledger/internal/usage/repository"
	walletdomain "github.com/ragstack/creditledger/internal/wallet/domain"
	walletrepo "github.com/ragstack/creditledger/internal/wallet/repository"
	"github.com/ragstack/creditledger/pkg/db"
	"github.com/ragstack/creditledger/pkg/mongodb"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Repositories is the full backend-bound repository set.
type Repositories struct {
	fx.Out

	Wallet   walletdomain.Repository
	Usage    usagedomain.Repository
	Settings settingsdomain.Repository
	Payment  paymentdomain.Repository
	Audit    auditdomain.Repository
}

func provideRepositories(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (Repositories, error) {
	switch cfg.StoreBackend {
	case config.BackendMongo:
		return provideMongo(lc, cfg, log)
	default:
		return provideGorm(lc, cfg, log)
	}
}

func provideGorm(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (Repositories, error) {
	conn, err := db.Open(cfg)
	if err != nil {
		return Repositories{}, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return Repositories{}, err
	}
	if err := migration.RunMigrations(sqlDB, cfg.DBType); err != nil {
		return Repositories{}, err
	}
	log.Info("store ready", zap.String("backend", config.BackendPostgres))

	lc.Append(fx.StopHook(func() error {
		return sqlDB.Close()
	}))

	return Repositories{
		Wallet:   walletrepo.ProvideGorm(conn),
		Usage:    usagerepo.ProvideGorm(conn),
		Settings: settingsrepo.ProvideGorm(conn),
		Payment:  paymentrepo.ProvideGorm(conn),
		Audit:    auditrepo.ProvideGorm(conn),
	}, nil
}

func provideMongo(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (Repositories, error) {
	ctx := context.Background()
	client, err := mongodb.Connect(ctx, cfg)
	if err != nil {
		return Repositories{}, err
	}
	database := client.Database(cfg.MongoDatabase)

	if err := usagerepo.EnsureMongoUsageIndexes(ctx, database); err != nil {
		return Repositories{}, err
	}
	if err := paymentrepo.EnsureMongoPaymentIndexes(ctx, database); err != nil {
		return Repositories{}, err
	}
	log.Info("store ready", zap.String("backend", config.BackendMongo))

	lc.Append(fx.StopHook(func(ctx context.Context) error {
		return mongodb.Disconnect(client)
	}))

	return Repositories{
		Wallet:   walletrepo.ProvideMongo(database),
		Usage:    usagerepo.ProvideMongo(database),
		Settings: settingsrepo.ProvideMongo(database),
		Payment:  paymentrepo.ProvideMongo(database),
		Audit:    auditrepo.ProvideMongo(database),
	}, nil
}

var Module = fx.Module("store",
	fx.Provide(provideRepositories),
)
