package domain

import (
	"context"
	"time"
)

type Repository interface {
	Insert(ctx context.Context, payment *Payment) error
	// FindByOrderID returns nil when no payment carries the order.
	FindByOrderID(ctx context.Context, orderID string) (*Payment, error)
	// MarkCompleted flips pending to completed in one guarded update and
	// reports whether this call won the transition. A false return with no
	// error means another settlement got there first or the payment is not
	// pending; the caller re-reads to classify.
	MarkCompleted(ctx context.Context, orderID, paymentID, signature string, at time.Time) (bool, error)
	// RevertToPending undoes a completed transition whose wallet credit
	// failed, so a retry can settle again.
	RevertToPending(ctx context.Context, orderID string) error
	MarkFailed(ctx context.Context, orderID, errMsg string, at time.Time) (bool, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Payment, error)
}
