package service

import (
	"context"
	"errors"

	"github.com/ragstack/creditledger/internal/clock"
	"github.com/ragstack/creditledger/internal/credits"
	settingsdomain "github.com/ragstack/creditledger/internal/settings/domain"
	usagedomain "github.com/ragstack/creditledger/internal/usage/domain"
	usageservice "github.com/ragstack/creditledger/internal/usage/service"
	"github.com/ragstack/creditledger/internal/wallet/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log       *zap.Logger
	Repo      domain.Repository
	UsageRepo usagedomain.Repository
	Settings  settingsdomain.Service
	Clock     clock.Clock
}

type Service struct {
	log       *zap.Logger
	repo      domain.Repository
	usageRepo usagedomain.Repository
	settings  settingsdomain.Service
	clock     clock.Clock
}

func NewService(p Params) domain.Service {
	return &Service{
		log:       p.Log.Named("wallet.service"),
		repo:      p.Repo,
		usageRepo: p.UsageRepo,
		settings:  p.Settings,
		clock:     p.Clock,
	}
}

func (s *Service) GetOrCreate(ctx context.Context, userID, email string) (*domain.Wallet, error) {
	return s.repo.GetOrCreate(ctx, userID, email)
}

func (s *Service) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	w, err := s.repo.Find(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	if w == nil {
		return decimal.Zero, domain.ErrNoBillingAccount
	}
	return w.CreditsRemaining(), nil
}

func (s *Service) UsedToday(ctx context.Context, userID string) (decimal.Decimal, error) {
	units, err := s.usedTodayUnits(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return credits.FromUnits(units), nil
}

func (s *Service) HasSufficientCredits(ctx context.Context, userID string, amount decimal.Decimal) (bool, error) {
	w, err := s.repo.Find(ctx, userID)
	if err != nil {
		return false, err
	}
	if w == nil || w.IsSuspended {
		return false, nil
	}
	units := credits.UnitsCeil(amount)
	if w.CreditsRemainingUnits < units {
		return false, nil
	}
	return s.withinDailyCap(ctx, userID, units)
}

func (s *Service) Debit(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.Sign() <= 0 {
		// No-op success, even when no wallet exists yet.
		w, err := s.repo.Find(ctx, userID)
		if err != nil {
			return decimal.Zero, err
		}
		if w == nil {
			return decimal.Zero, nil
		}
		return w.CreditsRemaining(), nil
	}
	units := credits.UnitsCeil(amount)

	ok, err := s.withinDailyCap(ctx, userID, units)
	if err != nil {
		return decimal.Zero, err
	}
	if !ok {
		return decimal.Zero, domain.ErrDailyCapReached
	}

	newUnits, err := s.repo.Debit(ctx, userID, units)
	if errors.Is(err, domain.ErrConditionalUpdateFailed) {
		return decimal.Zero, s.classifyDebitFailure(ctx, userID)
	}
	if err != nil {
		return decimal.Zero, err
	}

	s.log.Debug("wallet debited",
		zap.String("user_id", userID),
		zap.Int64("units", units),
		zap.Int64("balance_units", newUnits),
	)
	return credits.FromUnits(newUnits), nil
}

func (s *Service) Credit(ctx context.Context, userID string, amount decimal.Decimal, source domain.CreditSource) (decimal.Decimal, error) {
	if amount.Sign() <= 0 {
		return s.Balance(ctx, userID)
	}
	if _, err := s.repo.GetOrCreate(ctx, userID, ""); err != nil {
		return decimal.Zero, err
	}
	units := credits.UnitsFloor(amount)
	newUnits, err := s.repo.Credit(ctx, userID, units, source.CountsAsPurchase())
	if err != nil {
		return decimal.Zero, err
	}
	s.log.Info("wallet credited",
		zap.String("user_id", userID),
		zap.String("source", string(source)),
		zap.Int64("units", units),
		zap.Int64("balance_units", newUnits),
	)
	return credits.FromUnits(newUnits), nil
}

func (s *Service) Suspend(ctx context.Context, userID string) error {
	return s.repo.SetSuspended(ctx, userID, true)
}

func (s *Service) Unsuspend(ctx context.Context, userID string) error {
	return s.repo.SetSuspended(ctx, userID, false)
}

func (s *Service) Info(ctx context.Context, userID string) (*domain.Info, error) {
	w, err := s.repo.Find(ctx, userID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, domain.ErrNoBillingAccount
	}
	usedUnits, err := s.usedTodayUnits(ctx, userID)
	if err != nil {
		return nil, err
	}
	cap, err := s.settings.DailyCreditCap(ctx)
	if err != nil {
		return nil, err
	}
	return &domain.Info{
		UserID:           w.UserID,
		CreditsRemaining: w.CreditsRemaining(),
		TotalPurchased:   w.TotalPurchased(),
		UsedToday:        credits.FromUnits(usedUnits),
		DailyCap:         cap,
		IsSuspended:      w.IsSuspended,
	}, nil
}

func (s *Service) usedTodayUnits(ctx context.Context, userID string) (int64, error) {
	midnight := usageservice.SinceMidnight(s.clock.Now())
	return s.usageRepo.SumCreditUnitsSince(ctx, userID, midnight)
}

// withinDailyCap checks committed consumption plus the pending charge
// against the cap. A cap of zero or less disables the check.
func (s *Service) withinDailyCap(ctx context.Context, userID string, units int64) (bool, error) {
	cap, err := s.settings.DailyCreditCap(ctx)
	if err != nil {
		return false, err
	}
	if cap.Sign() <= 0 {
		return true, nil
	}
	used, err := s.usedTodayUnits(ctx, userID)
	if err != nil {
		return false, err
	}
	return used+units <= credits.UnitsFloor(cap), nil
}

// classifyDebitFailure turns a failed conditional update into the caller
// facing error. A missing wallet is provisioned so the user exists next
// time, then reported as out of credits.
func (s *Service) classifyDebitFailure(ctx context.Context, userID string) error {
	w, err := s.repo.Find(ctx, userID)
	if err != nil {
		return err
	}
	if w == nil {
		if _, err := s.repo.GetOrCreate(ctx, userID, ""); err != nil {
			return err
		}
		return domain.ErrInsufficientCredits
	}
	if w.IsSuspended {
		return domain.ErrWalletSuspended
	}
	return domain.ErrInsufficientCredits
}
