package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ragstack/creditledger/internal/payment/domain"
	"github.com/ragstack/creditledger/pkg/db"
	"gorm.io/gorm"
)

type gormRepo struct {
	db *gorm.DB
}

func ProvideGorm(db *gorm.DB) domain.Repository {
	return &gormRepo{db: db}
}

func (r *gormRepo) Insert(ctx context.Context, payment *domain.Payment) error {
	err := r.db.WithContext(ctx).Create(payment).Error
	if db.IsDuplicateKeyErr(err) {
		// The gateway replayed an order id we already track.
		return domain.ErrSettlementConflict
	}
	return err
}

func (r *gormRepo) FindByOrderID(ctx context.Context, orderID string) (*domain.Payment, error) {
	var p domain.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepo) MarkCompleted(ctx context.Context, orderID, paymentID, signature string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE payments
		 SET status = ?, payment_id = ?, signature = ?, completed_at = ?
		 WHERE order_id = ? AND status = ?`,
		domain.StatusCompleted, paymentID, signature, at,
		orderID, domain.StatusPending,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *gormRepo) RevertToPending(ctx context.Context, orderID string) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE payments
		 SET status = ?, completed_at = NULL
		 WHERE order_id = ? AND status = ?`,
		domain.StatusPending, orderID, domain.StatusCompleted,
	).Error
}

func (r *gormRepo) MarkFailed(ctx context.Context, orderID, errMsg string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE payments
		 SET status = ?, error_message = ?, completed_at = ?
		 WHERE order_id = ? AND status = ?`,
		domain.StatusFailed, errMsg, at,
		orderID, domain.StatusPending,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *gormRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Payment, error) {
	if limit <= 0 {
		limit = 50
	}
	var payments []domain.Payment
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Offset(offset).
		Limit(limit).
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}
