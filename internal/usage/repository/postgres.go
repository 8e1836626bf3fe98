package repository

import (
	"context"
	"time"

	"github.com/ragstack/creditledger/internal/usage/domain"
	"gorm.io/gorm"
)

type gormRepo struct {
	db *gorm.DB
}

func ProvideGorm(db *gorm.DB) domain.Repository {
	return &gormRepo{db: db}
}

func (r *gormRepo) Insert(ctx context.Context, entry *domain.LogEntry) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO usage_logs (
			id, user_id, agent_id, input_tokens, output_tokens, total_tokens,
			credit_units, session_id, query_text, created_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.UserID,
		entry.AgentID,
		entry.InputTokens,
		entry.OutputTokens,
		entry.TotalTokens,
		entry.CreditUnits,
		entry.SessionID,
		entry.QueryText,
		entry.CreatedAt,
	).Error
}

func (r *gormRepo) SumCreditUnitsSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(credit_units), 0)
		 FROM usage_logs
		 WHERE user_id = ? AND created_at >= ?`,
		userID,
		since,
	).Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *gormRepo) List(ctx context.Context, userID string, filter domain.ListFilter) ([]domain.LogEntry, error) {
	var entries []domain.LogEntry
	stmt := r.db.WithContext(ctx).
		Model(&domain.LogEntry{}).
		Where("user_id = ?", userID)
	if filter.AgentID != "" {
		stmt = stmt.Where("agent_id = ?", filter.AgentID)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
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

func (r *gormRepo) Aggregate(ctx context.Context, userID string, since time.Time) (domain.SummaryRow, error) {
	var row domain.SummaryRow
	err := r.db.WithContext(ctx).Raw(
		`SELECT COUNT(id) AS queries,
		        COALESCE(SUM(total_tokens), 0) AS tokens,
		        COALESCE(SUM(credit_units), 0) AS credit_units
		 FROM usage_logs
		 WHERE user_id = ? AND created_at >= ?`,
		userID,
		since,
	).Scan(&row).Error
	return row, err
}

func (r *gormRepo) AggregateDaily(ctx context.Context, userID string, since time.Time) ([]domain.DailyRow, error) {
	var rows []domain.DailyRow
	err := r.db.WithContext(ctx).Raw(
		`SELECT DATE(created_at) AS date,
		        COUNT(id) AS queries,
		        COALESCE(SUM(total_tokens), 0) AS tokens,
		        COALESCE(SUM(credit_units), 0) AS credit_units
		 FROM usage_logs
		 WHERE user_id = ? AND created_at >= ?
		 GROUP BY DATE(created_at)
		 ORDER BY DATE(created_at)`,
		userID,
		since,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *gormRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&domain.LogEntry{}, "created_at < ?", cutoff)
	return result.RowsAffected, result.Error
}
