// Package billing is the facade agent runtimes call: estimate, pre-check,
// charge, reconcile. It owns no storage; it sequences the wallet, usage and
// settings services and reports outcomes on the metrics surface.
package billing

import (
	"context"
	"errors"

	"github.com/ragstack/creditledger/internal/clock"
	"github.com/ragstack/creditledger/internal/credits"
	"github.com/ragstack/creditledger/internal/guardrail"
	"github.com/ragstack/creditledger/internal/notifier"
	"github.com/ragstack/creditledger/internal/observability/metrics"
	settingsdomain "github.com/ragstack/creditledger/internal/settings/domain"
	usagedomain "github.com/ragstack/creditledger/internal/usage/domain"
	walletdomain "github.com/ragstack/creditledger/internal/wallet/domain"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// TokenUsage is the consumption an agent run reports for billing.
type TokenUsage struct {
	Prompt     int64 `json:"prompt_tokens"`
	Completion int64 `json:"completion_tokens"`
}

func (u TokenUsage) Total() int64 { return u.Prompt + u.Completion }

// PreCheckResult is advisory. Allowed true is no reservation; the debit
// re-checks everything atomically.
type PreCheckResult struct {
	Allowed          bool            `json:"allowed"`
	Reason           string          `json:"reason,omitempty"`
	EstimatedCredits decimal.Decimal `json:"estimated_credits"`
	Balance          decimal.Decimal `json:"balance"`
}

// ChargeResult reports one settled charge.
type ChargeResult struct {
	CreditsCharged decimal.Decimal `json:"credits_charged"`
	NewBalance     decimal.Decimal `json:"new_balance"`
	// UsageRecorded is false when the debit landed but the usage append
	// failed; the charge stands either way.
	UsageRecorded bool `json:"usage_recorded"`
}

type ChargeRequest struct {
	UserID    string
	AgentID   *string
	Usage     TokenUsage
	SessionID *string
	QueryText *string
}

type Service interface {
	PreCheck(ctx context.Context, userID string, estimated decimal.Decimal) (*PreCheckResult, error)
	// PreCheckQuery estimates a query's worst-case cost and pre-checks it
	// in one call.
	PreCheckQuery(ctx context.Context, userID string, queryLength, k int) (*PreCheckResult, error)
	// ChargeForUsage debits first, then appends the usage record. An append
	// failure never unwinds the debit.
	ChargeForUsage(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	// ChargeAgentRun bills a guardrail-tracked run. Aborted runs are billed
	// for partial consumption only when policy says so.
	ChargeAgentRun(ctx context.Context, userID string, agentID *string, result guardrail.Result, sessionID *string) (*ChargeResult, error)
	ChargeBotCreation(ctx context.Context, userID string) (*ChargeResult, error)
	// GrantSignupCredits provisions the wallet and grants the one-time free
	// credit allowance to first-time users.
	GrantSignupCredits(ctx context.Context, userID, email string) (decimal.Decimal, error)
	WalletInfo(ctx context.Context, userID string) (*walletdomain.Info, error)
}

type Params struct {
	fx.In

	Log       *zap.Logger
	Wallet    walletdomain.Service
	Usage     usagedomain.Service
	Settings  settingsdomain.Service
	Guardrail *guardrail.Factory
	Notifier  notifier.Notifier
	Metrics   *metrics.Metrics
	Clock     clock.Clock
}

type service struct {
	log       *zap.Logger
	wallet    walletdomain.Service
	usage     usagedomain.Service
	settings  settingsdomain.Service
	guardrail *guardrail.Factory
	notifier  notifier.Notifier
	metrics   *metrics.Metrics
	clock     clock.Clock
	tracer    trace.Tracer
}

func NewService(p Params) Service {
	return &service{
		log:       p.Log.Named("billing.service"),
		wallet:    p.Wallet,
		usage:     p.Usage,
		settings:  p.Settings,
		guardrail: p.Guardrail,
		notifier:  p.Notifier,
		metrics:   p.Metrics,
		clock:     p.Clock,
		tracer:    otel.Tracer("creditledger/billing"),
	}
}

func (s *service) PreCheck(ctx context.Context, userID string, estimated decimal.Decimal) (*PreCheckResult, error) {
	ctx, span := s.tracer.Start(ctx, "billing.PreCheck",
		trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	info, err := s.wallet.Info(ctx, userID)
	if errors.Is(err, walletdomain.ErrNoBillingAccount) {
		return &PreCheckResult{
			Reason:           "no_billing_account",
			EstimatedCredits: estimated,
		}, nil
	}
	if err != nil {
		return nil, err
	}

	result := &PreCheckResult{
		EstimatedCredits: estimated,
		Balance:          info.CreditsRemaining,
	}
	switch {
	case info.IsSuspended:
		result.Reason = "wallet_suspended"
	case info.CreditsRemaining.LessThan(estimated):
		result.Reason = "insufficient_credits"
	case info.DailyCap.Sign() > 0 && info.UsedToday.Add(estimated).GreaterThan(info.DailyCap):
		result.Reason = "daily_cap_reached"
	default:
		result.Allowed = true
	}
	return result, nil
}

func (s *service) PreCheckQuery(ctx context.Context, userID string, queryLength, k int) (*PreCheckResult, error) {
	ratio, err := s.settings.TokensPerCredit(ctx)
	if err != nil {
		return nil, err
	}
	maxTokens, err := s.settings.MaxTokensPerQuery(ctx)
	if err != nil {
		return nil, err
	}
	estimated := credits.EstimateCreditsNeeded(queryLength, k, ratio, maxTokens)
	return s.PreCheck(ctx, userID, estimated)
}

func (s *service) ChargeForUsage(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	ctx, span := s.tracer.Start(ctx, "billing.ChargeForUsage",
		trace.WithAttributes(
			attribute.String("user.id", req.UserID),
			attribute.Int64("tokens.total", req.Usage.Total()),
		))
	defer span.End()

	ratio, err := s.settings.TokensPerCredit(ctx)
	if err != nil {
		return nil, err
	}
	amount := credits.TokensToCredits(req.Usage.Total(), ratio)
	return s.charge(ctx, req, amount, "usage_charge")
}

func (s *service) ChargeAgentRun(ctx context.Context, userID string, agentID *string, result guardrail.Result, sessionID *string) (*ChargeResult, error) {
	if result.Aborted != nil {
		s.metrics.GuardrailAborts.WithLabelValues(string(result.Aborted.Limit)).Inc()
		if !s.guardrail.Limits().ChargePartialOnAbort {
			s.log.Info("aborted run not billed by policy",
				zap.String("user_id", userID),
				zap.String("limit", string(result.Aborted.Limit)),
			)
			return &ChargeResult{CreditsCharged: decimal.Zero, UsageRecorded: true}, nil
		}
	}
	return s.ChargeForUsage(ctx, ChargeRequest{
		UserID:    userID,
		AgentID:   agentID,
		Usage:     TokenUsage{Completion: result.Tokens},
		SessionID: sessionID,
	})
}

func (s *service) ChargeBotCreation(ctx context.Context, userID string) (*ChargeResult, error) {
	cost, err := s.settings.BotCreationCost(ctx)
	if err != nil {
		return nil, err
	}

	balance, err := s.wallet.Debit(ctx, userID, cost)
	if err != nil {
		s.countChargeFailure(err)
		return nil, err
	}
	s.metrics.ChargesTotal.WithLabelValues("ok").Inc()
	s.metrics.CreditsCharged.Add(cost.InexactFloat64())

	recorded := true
	if _, err := s.usage.AppendFlat(ctx, userID, cost, "bot_creation"); err != nil {
		recorded = false
		s.log.Error("usage append after bot creation debit",
			zap.String("user_id", userID), zap.Error(err))
	}
	s.notifyAsync(userID, balance, "bot_creation")

	return &ChargeResult{CreditsCharged: cost, NewBalance: balance, UsageRecorded: recorded}, nil
}

func (s *service) GrantSignupCredits(ctx context.Context, userID, email string) (decimal.Decimal, error) {
	existing, err := s.wallet.Info(ctx, userID)
	if err != nil && !errors.Is(err, walletdomain.ErrNoBillingAccount) {
		return decimal.Zero, err
	}
	if existing != nil {
		// Signup is a one-time event; an existing wallet keeps its balance.
		return existing.CreditsRemaining, nil
	}

	if _, err := s.wallet.GetOrCreate(ctx, userID, email); err != nil {
		return decimal.Zero, err
	}
	free, err := s.settings.FreeCredits(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	balance, err := s.wallet.Credit(ctx, userID, free, walletdomain.SourceGrant)
	if err != nil {
		return decimal.Zero, err
	}
	s.notifyAsync(userID, balance, "signup_grant")
	return balance, nil
}

func (s *service) WalletInfo(ctx context.Context, userID string) (*walletdomain.Info, error) {
	return s.wallet.Info(ctx, userID)
}

func (s *service) charge(ctx context.Context, req ChargeRequest, amount decimal.Decimal, reason string) (*ChargeResult, error) {
	balance, err := s.wallet.Debit(ctx, req.UserID, amount)
	if err != nil {
		s.countChargeFailure(err)
		return nil, err
	}
	s.metrics.ChargesTotal.WithLabelValues("ok").Inc()
	s.metrics.CreditsCharged.Add(amount.InexactFloat64())

	recorded := true
	if _, err := s.usage.Append(ctx, usagedomain.AppendRequest{
		UserID:       req.UserID,
		AgentID:      req.AgentID,
		InputTokens:  req.Usage.Prompt,
		OutputTokens: req.Usage.Completion,
		SessionID:    req.SessionID,
		QueryText:    req.QueryText,
	}); err != nil {
		// The debit stands; the ledger is reconciled from wallet state, the
		// usage row is the itemization.
		recorded = false
		s.log.Error("usage append after debit",
			zap.String("user_id", req.UserID), zap.Error(err))
	}

	s.notifyAsync(req.UserID, balance, reason)
	return &ChargeResult{CreditsCharged: amount, NewBalance: balance, UsageRecorded: recorded}, nil
}

func (s *service) countChargeFailure(err error) {
	switch {
	case errors.Is(err, walletdomain.ErrInsufficientCredits):
		s.metrics.ChargesTotal.WithLabelValues("insufficient").Inc()
		s.metrics.DebitConflicts.Inc()
	case errors.Is(err, walletdomain.ErrWalletSuspended):
		s.metrics.ChargesTotal.WithLabelValues("suspended").Inc()
		s.metrics.DebitConflicts.Inc()
	case errors.Is(err, walletdomain.ErrDailyCapReached):
		s.metrics.ChargesTotal.WithLabelValues("daily_cap").Inc()
	default:
		s.metrics.ChargesTotal.WithLabelValues("error").Inc()
	}
}

func (s *service) notifyAsync(userID string, balance decimal.Decimal, reason string) {
	update := notifier.BalanceUpdate{
		UserID:  userID,
		Balance: balance,
		Reason:  reason,
		At:      s.clock.Now(),
	}
	go s.notifier.Notify(context.Background(), update)
}
