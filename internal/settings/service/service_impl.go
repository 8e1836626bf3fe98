package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/ragstack/creditledger/internal/clock"
	"github.com/ragstack/creditledger/internal/settings/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type Params struct {
	fx.In

	Log   *zap.Logger
	Repo  domain.Repository
	Clock clock.Clock
}

type Service struct {
	log   *zap.Logger
	repo  domain.Repository
	clock clock.Clock
}

func NewService(p Params) domain.Service {
	return &Service{
		log:   p.Log.Named("settings.service"),
		repo:  p.Repo,
		clock: p.Clock,
	}
}

// intSetting resolves a numeric policy value, falling back to the defaults
// table when the key was never written. Storage errors propagate: billing
// decisions are fail-closed.
func (s *Service) intSetting(ctx context.Context, key string) (int64, error) {
	setting, err := s.repo.GetSetting(ctx, key)
	if err != nil {
		return 0, err
	}
	if setting == nil {
		return domain.Defaults[key].Value, nil
	}
	var v int64
	if err := json.Unmarshal(setting.Value, &v); err != nil {
		s.log.Warn("setting has non-numeric value, using default",
			zap.String("key", key), zap.Error(err))
		return domain.Defaults[key].Value, nil
	}
	return v, nil
}

func (s *Service) TokensPerCredit(ctx context.Context) (int64, error) {
	return s.intSetting(ctx, domain.KeyTokensPerCredit)
}

func (s *Service) DailyCreditCap(ctx context.Context) (decimal.Decimal, error) {
	v, err := s.intSetting(ctx, domain.KeyDailyCreditCap)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromInt(v), nil
}

func (s *Service) FreeCredits(ctx context.Context) (decimal.Decimal, error) {
	v, err := s.intSetting(ctx, domain.KeyFreeCredits)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromInt(v), nil
}

func (s *Service) MaxTokensPerQuery(ctx context.Context) (int, error) {
	v, err := s.intSetting(ctx, domain.KeyMaxTokensPerQuery)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

func (s *Service) BotCreationCost(ctx context.Context) (decimal.Decimal, error) {
	v, err := s.intSetting(ctx, domain.KeyBotCreationCost)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromInt(v), nil
}

func (s *Service) GetAllSettings(ctx context.Context) ([]domain.SettingView, error) {
	stored, err := s.repo.ListSettings(ctx)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]domain.BillingSetting, len(stored))
	for _, setting := range stored {
		byKey[setting.Key] = setting
	}

	views := make([]domain.SettingView, 0, len(domain.Defaults)+len(stored))
	for key, def := range domain.Defaults {
		view := domain.SettingView{Key: key, Value: def.Value, Description: def.Description}
		if setting, ok := byKey[key]; ok {
			view = viewFromStored(setting, def.Description)
			delete(byKey, key)
		}
		views = append(views, view)
	}
	for _, setting := range byKey {
		views = append(views, viewFromStored(setting, ""))
	}
	return views, nil
}

func (s *Service) UpdateSetting(ctx context.Context, req domain.UpdateSettingRequest) error {
	key := strings.TrimSpace(req.Key)
	if key == "" {
		return domain.ErrInvalidKey
	}

	raw, err := json.Marshal(req.Value)
	if err != nil {
		return domain.ErrInvalidKey
	}

	description := ""
	if def, ok := domain.Defaults[key]; ok {
		description = def.Description
	}

	setting := &domain.BillingSetting{
		Key:         key,
		Value:       datatypes.JSON(raw),
		Description: description,
		UpdatedAt:   s.clock.Now(),
		UpdatedBy:   req.UpdatedBy,
	}
	if err := s.repo.UpsertSetting(ctx, setting); err != nil {
		return err
	}

	s.log.Info("billing setting updated",
		zap.String("key", key),
		zap.String("updated_by", req.UpdatedBy))
	return nil
}

func (s *Service) GetPlan(ctx context.Context, id string) (*domain.SubscriptionPlan, error) {
	plan, err := s.repo.GetPlan(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, domain.ErrPlanNotFound
	}
	return plan, nil
}

func (s *Service) ListPlans(ctx context.Context, activeOnly bool) ([]domain.SubscriptionPlan, error) {
	plans, err := s.repo.ListPlans(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		// First read seeds the default catalog.
		if err := s.repo.SeedPlans(ctx, domain.DefaultPlans(s.clock.Now())); err != nil {
			return nil, err
		}
		return s.repo.ListPlans(ctx, activeOnly)
	}
	return plans, nil
}

func (s *Service) UpsertPlan(ctx context.Context, req domain.UpsertPlanRequest) (*domain.SubscriptionPlan, error) {
	id := strings.TrimSpace(req.ID)
	if id == "" || strings.TrimSpace(req.Name) == "" || req.AmountMinor <= 0 {
		return nil, domain.ErrInvalidPlan
	}
	if req.BaseCredits.IsNegative() || req.BonusCredits.IsNegative() {
		return nil, domain.ErrInvalidPlan
	}

	now := s.clock.Now()
	plan := &domain.SubscriptionPlan{
		ID:           id,
		Name:         req.Name,
		Description:  req.Description,
		AmountMinor:  req.AmountMinor,
		BaseCredits:  req.BaseCredits,
		BonusCredits: req.BonusCredits,
		IsActive:     true,
		SortOrder:    0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.IsActive != nil {
		plan.IsActive = *req.IsActive
	}
	if req.SortOrder != nil {
		plan.SortOrder = *req.SortOrder
	}

	if err := s.repo.UpsertPlan(ctx, plan); err != nil {
		return nil, err
	}
	s.log.Info("subscription plan upserted", zap.String("plan_id", id))
	return plan, nil
}

func (s *Service) DeactivatePlan(ctx context.Context, id string) error {
	plan, err := s.GetPlan(ctx, id)
	if err != nil {
		return err
	}
	plan.IsActive = false
	plan.UpdatedAt = s.clock.Now()
	return s.repo.UpsertPlan(ctx, plan)
}

func viewFromStored(setting domain.BillingSetting, defaultDescription string) domain.SettingView {
	var value any
	if err := json.Unmarshal(setting.Value, &value); err != nil {
		value = string(setting.Value)
	}
	description := setting.Description
	if description == "" {
		description = defaultDescription
	}
	view := domain.SettingView{
		Key:         setting.Key,
		Value:       value,
		Description: description,
		UpdatedBy:   setting.UpdatedBy,
	}
	if !setting.UpdatedAt.IsZero() {
		view.UpdatedAt = setting.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return view
}
