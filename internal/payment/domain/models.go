// Package domain holds payment settlement records.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ragstack/creditledger/internal/credits"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var (
	ErrOrderNotFound    = errors.New("order_not_found")
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrPaymentFailed    = errors.New("payment_failed")
	// ErrGatewayNotConfigured means gateway credentials are absent. The
	// payment surface fails closed rather than minting unverifiable orders.
	ErrGatewayNotConfigured = errors.New("gateway_not_configured")
	// ErrSettlementConflict means another settlement holds the transition
	// right now. Retryable.
	ErrSettlementConflict = errors.New("settlement_conflict")
)

// Payment is one settlement attempt. OrderID is the external correlation
// key; status transitions are pending to completed or pending to failed,
// guarded inside the storage engine so duplicate settlements cannot
// double-credit.
type Payment struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey" bson:"_id"`
	UserID    string       `json:"user_id" gorm:"type:varchar(64);not null;index" bson:"user_id"`
	OrderID   string       `json:"order_id" gorm:"type:varchar(100);not null;uniqueIndex" bson:"order_id"`
	PaymentID *string      `json:"payment_id,omitempty" gorm:"type:varchar(100)" bson:"payment_id,omitempty"`
	Signature *string      `json:"-" gorm:"type:varchar(255)" bson:"signature,omitempty"`
	// AmountMinor is the charge in the currency's smallest unit.
	AmountMinor       int64      `json:"amount_minor" gorm:"not null" bson:"amount_minor"`
	CreditsToAddUnits int64      `json:"-" gorm:"column:credits_to_add;not null" bson:"credits_to_add"`
	PlanID            string     `json:"plan_id" gorm:"type:varchar(50);not null" bson:"plan_id"`
	Status            Status     `json:"status" gorm:"type:varchar(20);not null;index" bson:"status"`
	IdempotencyKey    string     `json:"-" gorm:"type:varchar(64);not null;uniqueIndex" bson:"idempotency_key"`
	ErrorMessage      *string    `json:"error_message,omitempty" gorm:"type:text" bson:"error_message,omitempty"`
	CreatedAt         time.Time  `json:"created_at" gorm:"not null" bson:"created_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
}

func (Payment) TableName() string { return "payments" }

func (p Payment) CreditsToAdd() decimal.Decimal {
	return credits.FromUnits(p.CreditsToAddUnits)
}
