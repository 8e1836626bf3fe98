package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/ragstack/creditledger/internal/audit/domain"
	"github.com/ragstack/creditledger/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type Params struct {
	fx.In

	Log       *zap.Logger
	Repo      domain.Repository
	Snowflake *snowflake.Node
	Clock     clock.Clock
}

type Service struct {
	log       *zap.Logger
	repo      domain.Repository
	snowflake *snowflake.Node
	clock     clock.Clock
}

func NewService(p Params) domain.Service {
	return &Service{
		log:       p.Log.Named("audit.service"),
		repo:      p.Repo,
		snowflake: p.Snowflake,
		clock:     p.Clock,
	}
}

func (s *Service) Record(ctx context.Context, actorID, action, targetType, targetID string, metadata map[string]any) {
	action = strings.TrimSpace(action)
	if action == "" {
		s.log.Warn("audit entry without action dropped", zap.String("actor_id", actorID))
		return
	}
	if targetType == "" {
		targetType = "unknown"
	}

	entry := &domain.Entry{
		ID:          s.snowflake.Generate(),
		ActorID:     actorID,
		Action:      action,
		TargetType:  targetType,
		TargetID:    targetID,
		MetadataDoc: metadata,
		CreatedAt:   s.clock.Now(),
	}
	if metadata != nil {
		if raw, err := json.Marshal(metadata); err == nil {
			entry.Metadata = datatypes.JSON(raw)
		}
	}

	if err := s.repo.Insert(ctx, entry); err != nil {
		s.log.Error("write audit entry",
			zap.String("action", action),
			zap.String("actor_id", actorID),
			zap.Error(err),
		)
	}
}

func (s *Service) List(ctx context.Context, filter domain.ListFilter) ([]domain.Entry, error) {
	return s.repo.List(ctx, filter)
}
