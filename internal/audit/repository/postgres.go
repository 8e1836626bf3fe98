package repository

import (
	"context"

	"github.com/ragstack/creditledger/internal/audit/domain"
	"gorm.io/gorm"
)

type gormRepo struct {
	db *gorm.DB
}

func ProvideGorm(db *gorm.DB) domain.Repository {
	return &gormRepo{db: db}
}

func (r *gormRepo) Insert(ctx context.Context, entry *domain.Entry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *gormRepo) List(ctx context.Context, filter domain.ListFilter) ([]domain.Entry, error) {
	stmt := r.db.WithContext(ctx).Model(&domain.Entry{})
	if filter.ActorID != "" {
		stmt = stmt.Where("actor_id = ?", filter.ActorID)
	}
	if filter.Action != "" {
		stmt = stmt.Where("action = ?", filter.Action)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	var entries []domain.Entry
	err := stmt.
		Order("created_at desc, id desc").
		Offset(filter.Offset).
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
