// Package domain holds the per-user credit wallet.
package domain

import (
	"time"

	"github.com/ragstack/creditledger/internal/credits"
	"github.com/shopspring/decimal"
)

// CreditSource tags where credited funds came from. Only payment-sourced
// credits count toward the lifetime purchase total.
type CreditSource string

const (
	SourcePayment CreditSource = "payment"
	SourceGrant   CreditSource = "grant"
	SourceAdmin   CreditSource = "admin"
	SourceRefund  CreditSource = "refund"
)

// CountsAsPurchase reports whether credits from this source bump
// total_credits_purchased.
func (s CreditSource) CountsAsPurchase() bool { return s == SourcePayment }

// Wallet is one user's balance. Monetary fields are stored in ten-thousandths
// of a credit so both backends can apply atomic increments.
type Wallet struct {
	UserID string `json:"user_id" gorm:"primaryKey;type:varchar(64)" bson:"_id"`
	Email  string `json:"email" gorm:"type:varchar(255)" bson:"email"`
	// CreditsRemainingUnits never goes below zero; every debit is guarded
	// by a balance predicate inside the storage engine.
	CreditsRemainingUnits int64     `json:"-" gorm:"column:credits_remaining;not null;default:0" bson:"credits_remaining"`
	TotalPurchasedUnits   int64     `json:"-" gorm:"column:total_credits_purchased;not null;default:0" bson:"total_credits_purchased"`
	IsSuspended           bool      `json:"is_suspended" gorm:"not null;default:false" bson:"is_suspended"`
	CreatedAt             time.Time `json:"created_at" gorm:"not null" bson:"created_at"`
	UpdatedAt             time.Time `json:"updated_at" gorm:"not null" bson:"updated_at"`
}

func (Wallet) TableName() string { return "wallets" }

func (w Wallet) CreditsRemaining() decimal.Decimal {
	return credits.FromUnits(w.CreditsRemainingUnits)
}

func (w Wallet) TotalPurchased() decimal.Decimal {
	return credits.FromUnits(w.TotalPurchasedUnits)
}

// Info is the wallet surface returned to callers, balances resolved to
// decimals and the day's consumption merged in.
type Info struct {
	UserID           string          `json:"user_id"`
	CreditsRemaining decimal.Decimal `json:"credits_remaining"`
	TotalPurchased   decimal.Decimal `json:"total_credits_purchased"`
	UsedToday        decimal.Decimal `json:"used_today"`
	DailyCap         decimal.Decimal `json:"daily_credit_cap"`
	IsSuspended      bool            `json:"is_suspended"`
}
