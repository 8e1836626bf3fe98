package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/ragstack/creditledger/internal/clock"
	"github.com/ragstack/creditledger/internal/config"
	"github.com/ragstack/creditledger/internal/credits"
	"github.com/ragstack/creditledger/internal/observability/metrics"
	"github.com/ragstack/creditledger/internal/payment/domain"
	"github.com/ragstack/creditledger/internal/payment/gateway"
	settingsdomain "github.com/ragstack/creditledger/internal/settings/domain"
	walletdomain "github.com/ragstack/creditledger/internal/wallet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log       *zap.Logger
	Cfg       config.Config
	Repo      domain.Repository
	Gateway   gateway.Client
	Wallet    walletdomain.Service
	Settings  settingsdomain.Service
	Metrics   *metrics.Metrics
	Snowflake *snowflake.Node
	Clock     clock.Clock
}

type Service struct {
	log       *zap.Logger
	cfg       config.GatewayConfig
	repo      domain.Repository
	gateway   gateway.Client
	wallet    walletdomain.Service
	settings  settingsdomain.Service
	metrics   *metrics.Metrics
	snowflake *snowflake.Node
	clock     clock.Clock
}

func NewService(p Params) domain.Service {
	return &Service{
		log:       p.Log.Named("payment.service"),
		cfg:       p.Cfg.Gateway,
		repo:      p.Repo,
		gateway:   p.Gateway,
		wallet:    p.Wallet,
		settings:  p.Settings,
		metrics:   p.Metrics,
		snowflake: p.Snowflake,
		clock:     p.Clock,
	}
}

func (s *Service) CreateOrder(ctx context.Context, userID, planID, email string) (*domain.OrderResponse, error) {
	plan, err := s.settings.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive {
		return nil, settingsdomain.ErrPlanNotFound
	}

	if _, err := s.wallet.GetOrCreate(ctx, userID, email); err != nil {
		return nil, err
	}

	idemKey := uuid.NewString()
	order, err := s.gateway.CreateOrder(ctx, plan.AmountMinor, s.cfg.Currency, idemKey, map[string]string{
		"user_id": userID,
		"plan_id": plan.ID,
	})
	if err != nil {
		return nil, err
	}

	totalCredits := plan.TotalCredits()
	payment := &domain.Payment{
		ID:                s.snowflake.Generate(),
		UserID:            userID,
		OrderID:           order.ID,
		AmountMinor:       plan.AmountMinor,
		CreditsToAddUnits: credits.UnitsFloor(totalCredits),
		PlanID:            plan.ID,
		Status:            domain.StatusPending,
		IdempotencyKey:    idemKey,
		CreatedAt:         s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, payment); err != nil {
		return nil, err
	}

	s.metrics.PaymentEvents.WithLabelValues("order_created").Inc()
	s.log.Info("order created",
		zap.String("user_id", userID),
		zap.String("plan_id", plan.ID),
		zap.String("order_id", order.ID),
	)
	return &domain.OrderResponse{
		OrderID:     order.ID,
		KeyID:       s.cfg.KeyID,
		AmountMinor: plan.AmountMinor,
		Currency:    s.cfg.Currency,
		PlanID:      plan.ID,
		Credits:     totalCredits,
	}, nil
}

// VerifySignature checks the checkout callback HMAC. An unset secret means
// nothing verifies.
func (s *Service) VerifySignature(orderID, paymentID, signature string) bool {
	if s.cfg.KeySecret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(s.cfg.KeySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (s *Service) CompletePayment(ctx context.Context, req domain.CompleteRequest) (*domain.CompletionResult, error) {
	if !s.VerifySignature(req.OrderID, req.PaymentID, req.Signature) {
		return nil, domain.ErrInvalidSignature
	}

	payment, err := s.repo.FindByOrderID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if payment == nil || (req.UserID != "" && payment.UserID != req.UserID) {
		return nil, domain.ErrOrderNotFound
	}
	return s.settle(ctx, payment, req.PaymentID, req.Signature)
}

// settle runs the guarded pending to completed transition and credits the
// wallet. It is the single settlement path for both checkout callbacks and
// webhooks, idempotent under duplicate delivery.
func (s *Service) settle(ctx context.Context, payment *domain.Payment, paymentID, signature string) (*domain.CompletionResult, error) {
	switch payment.Status {
	case domain.StatusCompleted:
		s.metrics.PaymentEvents.WithLabelValues("duplicate_settlement").Inc()
		return s.alreadyProcessed(ctx, payment)
	case domain.StatusFailed:
		return nil, domain.ErrPaymentFailed
	}

	won, err := s.repo.MarkCompleted(ctx, payment.OrderID, paymentID, signature, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if !won {
		current, err := s.repo.FindByOrderID(ctx, payment.OrderID)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, domain.ErrOrderNotFound
		}
		switch current.Status {
		case domain.StatusCompleted:
			return s.alreadyProcessed(ctx, current)
		case domain.StatusFailed:
			return nil, domain.ErrPaymentFailed
		default:
			return nil, domain.ErrSettlementConflict
		}
	}

	balance, err := s.wallet.Credit(ctx, payment.UserID, payment.CreditsToAdd(), walletdomain.SourcePayment)
	if err != nil {
		// Undo the transition so a retry can settle again; the order must
		// not be stranded completed without its credits.
		s.metrics.PaymentEvents.WithLabelValues("credit_reverted").Inc()
		if revertErr := s.repo.RevertToPending(ctx, payment.OrderID); revertErr != nil {
			s.log.Error("revert after failed credit",
				zap.String("order_id", payment.OrderID),
				zap.Error(revertErr),
			)
		}
		return nil, err
	}

	s.metrics.PaymentEvents.WithLabelValues("settled").Inc()
	s.log.Info("payment settled",
		zap.String("order_id", payment.OrderID),
		zap.String("user_id", payment.UserID),
		zap.String("credits", payment.CreditsToAdd().String()),
	)
	return &domain.CompletionResult{
		Balance:      balance,
		CreditsAdded: payment.CreditsToAdd(),
	}, nil
}

func (s *Service) alreadyProcessed(ctx context.Context, payment *domain.Payment) (*domain.CompletionResult, error) {
	balance, err := s.wallet.Balance(ctx, payment.UserID)
	if err != nil {
		return nil, err
	}
	return &domain.CompletionResult{
		Balance:          balance,
		CreditsAdded:     payment.CreditsToAdd(),
		AlreadyProcessed: true,
	}, nil
}

func (s *Service) VerifyWebhookSignature(body []byte, signature string) bool {
	if s.cfg.WebhookSecret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(s.cfg.WebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID               string `json:"id"`
				OrderID          string `json:"order_id"`
				ErrorDescription string `json:"error_description"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

func (s *Service) ProcessWebhook(ctx context.Context, body []byte) error {
	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return err
	}
	entity := event.Payload.Payment.Entity

	switch event.Event {
	case "payment.captured":
		payment, err := s.repo.FindByOrderID(ctx, entity.OrderID)
		if err != nil {
			return err
		}
		if payment == nil {
			s.log.Warn("webhook for unknown order", zap.String("order_id", entity.OrderID))
			return nil
		}
		_, err = s.settle(ctx, payment, entity.ID, "")
		return err

	case "payment.failed":
		reason := entity.ErrorDescription
		if reason == "" {
			reason = "payment failed at gateway"
		}
		marked, err := s.repo.MarkFailed(ctx, entity.OrderID, reason, s.clock.Now())
		if err != nil {
			return err
		}
		if marked {
			s.metrics.PaymentEvents.WithLabelValues("failed").Inc()
		} else {
			s.log.Warn("failed event for non-pending order",
				zap.String("order_id", entity.OrderID))
		}
		return nil

	default:
		s.log.Debug("ignoring webhook event", zap.String("event", event.Event))
		return nil
	}
}

func (s *Service) History(ctx context.Context, userID string, limit, offset int) ([]domain.Payment, error) {
	return s.repo.ListByUser(ctx, userID, limit, offset)
}
