package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// AppendRequest records one billed operation.
type AppendRequest struct {
	UserID       string
	AgentID      *string
	InputTokens  int64
	OutputTokens int64
	SessionID    *string
	QueryText    *string
}

type Service interface {
	// Append computes the credit charge from the conversion ratio in effect
	// at call time and writes one immutable record.
	Append(ctx context.Context, req AppendRequest) (*LogEntry, error)
	// AppendFlat records a fixed-amount charge not tied to token
	// consumption, such as bot creation.
	AppendFlat(ctx context.Context, userID string, amount decimal.Decimal, label string) (*LogEntry, error)
	History(ctx context.Context, userID string, filter ListFilter) ([]LogEntry, error)
	Summary(ctx context.Context, userID string, days int) (Summary, error)
	DailyBreakdown(ctx context.Context, userID string, days int) ([]DailyUsage, error)
}
