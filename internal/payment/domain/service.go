package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// OrderResponse is what a client needs to open the gateway checkout.
type OrderResponse struct {
	OrderID     string          `json:"order_id"`
	KeyID       string          `json:"key_id"`
	AmountMinor int64           `json:"amount_minor"`
	Currency    string          `json:"currency"`
	PlanID      string          `json:"plan_id"`
	Credits     decimal.Decimal `json:"credits"`
}

type CompleteRequest struct {
	UserID    string
	OrderID   string
	PaymentID string
	Signature string
}

// CompletionResult reports a settled payment. AlreadyProcessed marks the
// idempotent path where the credits had landed on an earlier delivery.
type CompletionResult struct {
	Balance          decimal.Decimal `json:"balance"`
	CreditsAdded     decimal.Decimal `json:"credits_added"`
	AlreadyProcessed bool            `json:"already_processed"`
}

type Service interface {
	CreateOrder(ctx context.Context, userID, planID, email string) (*OrderResponse, error)
	// VerifySignature authenticates a checkout callback.
	VerifySignature(orderID, paymentID, signature string) bool
	// CompletePayment settles an order: verify, transition, credit the
	// wallet. Safe to call any number of times per order.
	CompletePayment(ctx context.Context, req CompleteRequest) (*CompletionResult, error)
	VerifyWebhookSignature(body []byte, signature string) bool
	// ProcessWebhook handles gateway push events. Unknown events are
	// acknowledged without action.
	ProcessWebhook(ctx context.Context, body []byte) error
	History(ctx context.Context, userID string, limit, offset int) ([]Payment, error)
}
