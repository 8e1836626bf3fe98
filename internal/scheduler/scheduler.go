// Package scheduler runs the background retention job. The purge is
// advisory cleanup; billing correctness never depends on it.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/ragstack/creditledger/internal/clock"
	"github.com/ragstack/creditledger/internal/config"
	usagedomain "github.com/ragstack/creditledger/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("scheduler requires usage repository, logger and clock")

type Params struct {
	fx.In

	Log       *zap.Logger
	Cfg       config.Config
	UsageRepo usagedomain.Repository
	Clock     clock.Clock
}

type Scheduler struct {
	log           *zap.Logger
	usageRepo     usagedomain.Repository
	clock         clock.Clock
	retentionDays int
	runInterval   time.Duration
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.UsageRepo == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	retentionDays := p.Cfg.UsageRetentionDays
	if retentionDays <= 0 {
		retentionDays = 90
	}
	interval := time.Duration(p.Cfg.RetentionInterval) * time.Hour
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Scheduler{
		log:           p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		usageRepo:     p.UsageRepo,
		clock:         p.Clock,
		retentionDays: retentionDays,
		runInterval:   interval,
	}, nil
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.runInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("retention run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce purges usage entries past the retention window.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	cutoff := s.Cutoff()
	deleted, err := s.usageRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		s.log.Info("usage retention purge",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
	return nil
}

func (s *Scheduler) Cutoff() time.Time {
	return s.clock.Now().AddDate(0, 0, -s.retentionDays)
}
