// Package domain contains the admin-managed billing policy values and the
// subscription plan catalog.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Well-known setting keys.
const (
	KeyTokensPerCredit    = "tokens_per_credit"
	KeyDailyCreditCap     = "daily_credit_cap"
	KeyFreeCredits        = "free_credits"
	KeyMaxTokensPerQuery  = "max_tokens_per_query"
	KeyLowCreditThreshold = "low_credit_threshold"
	KeyBotCreationCost    = "bot_creation_cost"
)

// BillingSetting is one admin-configurable policy value. Value is JSON so a
// setting can be numeric, boolean or structured. The value column is declared
// text: sqlite needs TEXT affinity or a stored JSON number comes back as
// int64, which datatypes.JSON cannot scan. The postgres schema is owned by
// the migration files and stays jsonb there.
type BillingSetting struct {
	Key         string         `json:"key" gorm:"primaryKey;type:varchar(50)" bson:"_id"`
	Value       datatypes.JSON `json:"value" gorm:"type:text;not null" bson:"value"`
	Description string         `json:"description" gorm:"type:varchar(255)" bson:"description"`
	UpdatedAt   time.Time      `json:"updated_at" gorm:"not null" bson:"updated_at"`
	UpdatedBy   string         `json:"updated_by" gorm:"type:varchar(100)" bson:"updated_by"`
}

func (BillingSetting) TableName() string { return "billing_settings" }

// DefaultSetting is a fallback entry used when a key has never been written.
type DefaultSetting struct {
	Value       int64
	Description string
}

// Defaults is the typed fallback table; the read path never fails on a
// missing key.
var Defaults = map[string]DefaultSetting{
	KeyTokensPerCredit:    {Value: 1000, Description: "Tokens per 1 credit"},
	KeyDailyCreditCap:     {Value: 100, Description: "Max credits per user per day"},
	KeyFreeCredits:        {Value: 10, Description: "Credits granted to new users"},
	KeyMaxTokensPerQuery:  {Value: 4000, Description: "Hard token limit per query"},
	KeyLowCreditThreshold: {Value: 50, Description: "Threshold for low credit notification"},
	KeyBotCreationCost:    {Value: 50, Description: "Credits required to create a new agent"},
}

// SubscriptionPlan is an admin-managed catalog entry.
type SubscriptionPlan struct {
	ID           string          `json:"id" gorm:"primaryKey;type:varchar(50)" bson:"_id"`
	Name         string          `json:"name" gorm:"type:varchar(100);not null" bson:"name"`
	Description  string          `json:"description" gorm:"type:varchar(255)" bson:"description"`
	AmountMinor  int64           `json:"amount_minor" gorm:"not null" bson:"amount_minor"`
	BaseCredits  decimal.Decimal `json:"base_credits" gorm:"type:numeric(12,4);not null" bson:"base_credits"`
	BonusCredits decimal.Decimal `json:"bonus_credits" gorm:"type:numeric(12,4)" bson:"bonus_credits"`
	IsActive     bool            `json:"is_active" gorm:"not null;default:true" bson:"is_active"`
	SortOrder    int             `json:"sort_order" gorm:"not null;default:0" bson:"sort_order"`
	CreatedAt    time.Time       `json:"created_at" gorm:"not null" bson:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" gorm:"not null" bson:"updated_at"`
}

func (SubscriptionPlan) TableName() string { return "subscription_plans" }

// TotalCredits is what a purchase of the plan adds to the wallet.
func (p SubscriptionPlan) TotalCredits() decimal.Decimal {
	return p.BaseCredits.Add(p.BonusCredits)
}

// DefaultPlans seeds the catalog when it is empty.
func DefaultPlans(now time.Time) []SubscriptionPlan {
	return []SubscriptionPlan{
		{ID: "starter", Name: "Starter", Description: "Perfect for individuals", AmountMinor: 49900, BaseCredits: decimal.NewFromInt(500), BonusCredits: decimal.Zero, IsActive: true, SortOrder: 1, CreatedAt: now, UpdatedAt: now},
		{ID: "pro", Name: "Pro", Description: "For small teams and projects", AmountMinor: 99900, BaseCredits: decimal.NewFromInt(1000), BonusCredits: decimal.NewFromInt(200), IsActive: true, SortOrder: 2, CreatedAt: now, UpdatedAt: now},
		{ID: "business", Name: "Business", Description: "For large-scale operations", AmountMinor: 199900, BaseCredits: decimal.NewFromInt(2000), BonusCredits: decimal.NewFromInt(500), IsActive: true, SortOrder: 3, CreatedAt: now, UpdatedAt: now},
	}
}
