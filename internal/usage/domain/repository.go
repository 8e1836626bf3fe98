package domain

import (
	"context"
	"time"
)

// SummaryRow is the raw aggregate a backend returns for Summary.
type SummaryRow struct {
	Queries     int64
	Tokens      int64
	CreditUnits int64
}

// DailyRow is the raw per-day aggregate.
type DailyRow struct {
	Date        string
	Queries     int64
	Tokens      int64
	CreditUnits int64
}

type Repository interface {
	Insert(ctx context.Context, entry *LogEntry) error
	// SumCreditUnitsSince feeds the daily-cap check; it must read committed
	// state, never a cache.
	SumCreditUnitsSince(ctx context.Context, userID string, since time.Time) (int64, error)
	List(ctx context.Context, userID string, filter ListFilter) ([]LogEntry, error)
	Aggregate(ctx context.Context, userID string, since time.Time) (SummaryRow, error)
	AggregateDaily(ctx context.Context, userID string, since time.Time) ([]DailyRow, error)
	// DeleteOlderThan implements the retention policy; advisory cleanup only.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
