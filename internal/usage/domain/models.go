// Package domain contains the append-only usage log models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ragstack/creditledger/internal/credits"
	"github.com/shopspring/decimal"
)

// LogEntry is one billed operation. Immutable once written; retention only
// deletes.
type LogEntry struct {
	ID           snowflake.ID `json:"id" gorm:"primaryKey" bson:"_id"`
	UserID       string       `json:"user_id" gorm:"type:varchar(64);not null;index:idx_usage_user_date,priority:1" bson:"user_id"`
	AgentID      *string      `json:"agent_id,omitempty" gorm:"type:varchar(100);index" bson:"agent_id,omitempty"`
	InputTokens  int64        `json:"input_tokens" gorm:"not null" bson:"input_tokens"`
	OutputTokens int64        `json:"output_tokens" gorm:"not null" bson:"output_tokens"`
	TotalTokens  int64        `json:"total_tokens" gorm:"not null" bson:"total_tokens"`
	// CreditUnits is the charge in ten-thousandths of a credit, derived from
	// TotalTokens via the conversion ratio in effect at write time. Never
	// recomputed later.
	CreditUnits int64     `json:"-" gorm:"column:credit_units;not null" bson:"credit_units"`
	SessionID   *string   `json:"session_id,omitempty" gorm:"type:varchar(100)" bson:"session_id,omitempty"`
	QueryText   *string   `json:"query_text,omitempty" gorm:"type:text" bson:"query_text,omitempty"`
	CreatedAt   time.Time `json:"created_at" gorm:"not null;index:idx_usage_user_date,priority:2" bson:"created_at"`
}

func (LogEntry) TableName() string { return "usage_logs" }

// CreditsCharged is the charge as a decimal credit amount.
func (e LogEntry) CreditsCharged() decimal.Decimal {
	return credits.FromUnits(e.CreditUnits)
}

// Summary aggregates usage over a period.
type Summary struct {
	TotalQueries int64           `json:"total_queries"`
	TotalTokens  int64           `json:"total_tokens"`
	TotalCredits decimal.Decimal `json:"total_credits"`
	PeriodDays   int             `json:"period_days"`
}

// DailyUsage is one calendar day's rollup.
type DailyUsage struct {
	Date    string          `json:"date"`
	Queries int64           `json:"queries"`
	Tokens  int64           `json:"tokens"`
	Credits decimal.Decimal `json:"credits"`
}

// ListFilter narrows usage history reads.
type ListFilter struct {
	AgentID string
	Limit   int
	Offset  int
}
