package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ragstack/creditledger/internal/wallet/domain"
	"gorm.io/gorm"
)

type gormRepo struct {
	db *gorm.DB
}

func ProvideGorm(db *gorm.DB) domain.Repository {
	return &gormRepo{db: db}
}

func (r *gormRepo) GetOrCreate(ctx context.Context, userID, email string) (*domain.Wallet, error) {
	now := time.Now().UTC()
	err := r.db.WithContext(ctx).Exec(
		`INSERT INTO wallets (
			user_id, email, credits_remaining, total_credits_purchased,
			is_suspended, created_at, updated_at
		 ) VALUES (?, ?, 0, 0, ?, ?, ?)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID, email, false, now, now,
	).Error
	if err != nil {
		return nil, err
	}
	return r.find(ctx, userID)
}

func (r *gormRepo) Find(ctx context.Context, userID string) (*domain.Wallet, error) {
	return r.find(ctx, userID)
}

func (r *gormRepo) find(ctx context.Context, userID string) (*domain.Wallet, error) {
	var w domain.Wallet
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *gormRepo) Debit(ctx context.Context, userID string, units int64) (int64, error) {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE wallets
		 SET credits_remaining = credits_remaining - ?, updated_at = ?
		 WHERE user_id = ? AND credits_remaining >= ? AND is_suspended = ?`,
		units, time.Now().UTC(), userID, units, false,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, domain.ErrConditionalUpdateFailed
	}
	return r.balance(ctx, userID)
}

func (r *gormRepo) Credit(ctx context.Context, userID string, units int64, countPurchased bool) (int64, error) {
	purchased := int64(0)
	if countPurchased {
		purchased = units
	}
	result := r.db.WithContext(ctx).Exec(
		`UPDATE wallets
		 SET credits_remaining = credits_remaining + ?,
		     total_credits_purchased = total_credits_purchased + ?,
		     updated_at = ?
		 WHERE user_id = ?`,
		units, purchased, time.Now().UTC(), userID,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, domain.ErrNoBillingAccount
	}
	return r.balance(ctx, userID)
}

func (r *gormRepo) SetSuspended(ctx context.Context, userID string, suspended bool) error {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE wallets SET is_suspended = ?, updated_at = ? WHERE user_id = ?`,
		suspended, time.Now().UTC(), userID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNoBillingAccount
	}
	return nil
}

func (r *gormRepo) balance(ctx context.Context, userID string) (int64, error) {
	var units int64
	err := r.db.WithContext(ctx).Raw(
		`SELECT credits_remaining FROM wallets WHERE user_id = ?`, userID,
	).Scan(&units).Error
	return units, err
}
