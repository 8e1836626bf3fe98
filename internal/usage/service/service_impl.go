package service

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/ragstack/creditledger/internal/clock"
	"github.com/ragstack/creditledger/internal/credits"
	settingsdomain "github.com/ragstack/creditledger/internal/settings/domain"
	"github.com/ragstack/creditledger/internal/usage/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// queryTextLimit bounds the stored query excerpt.
const queryTextLimit = 500

type Params struct {
	fx.In

	Log       *zap.Logger
	Repo      domain.Repository
	Settings  settingsdomain.Service
	Snowflake *snowflake.Node
	Clock     clock.Clock
}

type Service struct {
	log       *zap.Logger
	repo      domain.Repository
	settings  settingsdomain.Service
	snowflake *snowflake.Node
	clock     clock.Clock
}

func NewService(p Params) domain.Service {
	return &Service{
		log:       p.Log.Named("usage.service"),
		repo:      p.Repo,
		settings:  p.Settings,
		snowflake: p.Snowflake,
		clock:     p.Clock,
	}
}

func (s *Service) Append(ctx context.Context, req domain.AppendRequest) (*domain.LogEntry, error) {
	ratio, err := s.settings.TokensPerCredit(ctx)
	if err != nil {
		return nil, err
	}

	total := req.InputTokens + req.OutputTokens
	charge := credits.TokensToCredits(total, ratio)

	entry := &domain.LogEntry{
		ID:           s.snowflake.Generate(),
		UserID:       req.UserID,
		AgentID:      req.AgentID,
		InputTokens:  req.InputTokens,
		OutputTokens: req.OutputTokens,
		TotalTokens:  total,
		CreditUnits:  credits.UnitsCeil(charge),
		SessionID:    req.SessionID,
		QueryText:    truncateQuery(req.QueryText),
		CreatedAt:    s.clock.Now(),
	}

	if err := s.repo.Insert(ctx, entry); err != nil {
		return nil, err
	}

	s.log.Debug("usage recorded",
		zap.String("user_id", req.UserID),
		zap.Int64("total_tokens", total),
		zap.Int64("credit_units", entry.CreditUnits),
	)
	return entry, nil
}

func (s *Service) AppendFlat(ctx context.Context, userID string, amount decimal.Decimal, label string) (*domain.LogEntry, error) {
	entry := &domain.LogEntry{
		ID:          s.snowflake.Generate(),
		UserID:      userID,
		CreditUnits: credits.UnitsCeil(amount),
		QueryText:   &label,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Service) History(ctx context.Context, userID string, filter domain.ListFilter) ([]domain.LogEntry, error) {
	return s.repo.List(ctx, userID, filter)
}

func (s *Service) Summary(ctx context.Context, userID string, days int) (domain.Summary, error) {
	if days <= 0 {
		days = 30
	}
	since := s.clock.Now().AddDate(0, 0, -days)
	row, err := s.repo.Aggregate(ctx, userID, since)
	if err != nil {
		return domain.Summary{}, err
	}
	return domain.Summary{
		TotalQueries: row.Queries,
		TotalTokens:  row.Tokens,
		TotalCredits: credits.FromUnits(row.CreditUnits),
		PeriodDays:   days,
	}, nil
}

func (s *Service) DailyBreakdown(ctx context.Context, userID string, days int) ([]domain.DailyUsage, error) {
	if days <= 0 {
		days = 30
	}
	since := s.clock.Now().AddDate(0, 0, -days)
	rows, err := s.repo.AggregateDaily(ctx, userID, since)
	if err != nil {
		return nil, err
	}
	out := make([]domain.DailyUsage, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.DailyUsage{
			Date:    row.Date,
			Queries: row.Queries,
			Tokens:  row.Tokens,
			Credits: credits.FromUnits(row.CreditUnits),
		})
	}
	return out, nil
}

// SinceMidnight is the start of the current UTC day, the window the daily
// cap is measured over.
func SinceMidnight(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func truncateQuery(q *string) *string {
	if q == nil {
		return nil
	}
	if len(*q) <= queryTextLimit {
		return q
	}
	// Back up to a rune boundary so the stored text stays valid UTF-8.
	cut := queryTextLimit
	for cut > 0 && !utf8.RuneStart((*q)[cut]) {
		cut--
	}
	trimmed := (*q)[:cut]
	return &trimmed
}
