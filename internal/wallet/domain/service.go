package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrNoBillingAccount    = errors.New("no_billing_account")
	ErrInsufficientCredits = errors.New("insufficient_credits")
	ErrWalletSuspended     = errors.New("wallet_suspended")
	ErrDailyCapReached     = errors.New("daily_cap_reached")
	// ErrConditionalUpdateFailed is the raw signal from a repository when an
	// atomic debit predicate did not match. The service translates it into
	// one of the errors above.
	ErrConditionalUpdateFailed = errors.New("conditional_update_failed")
)

type Service interface {
	// GetOrCreate provisions a wallet on first contact. New wallets start
	// empty; signup credits are granted separately.
	GetOrCreate(ctx context.Context, userID, email string) (*Wallet, error)
	Balance(ctx context.Context, userID string) (decimal.Decimal, error)
	// UsedToday is the committed consumption since UTC midnight.
	UsedToday(ctx context.Context, userID string) (decimal.Decimal, error)
	// HasSufficientCredits is an advisory pre-check only. A true result is
	// no reservation; Debit re-checks atomically.
	HasSufficientCredits(ctx context.Context, userID string, amount decimal.Decimal) (bool, error)
	// Debit charges the wallet, enforcing the balance floor, suspension,
	// and the daily cap. Returns the new balance.
	Debit(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error)
	// Credit adds funds. Amounts from SourcePayment also advance the
	// lifetime purchase total.
	Credit(ctx context.Context, userID string, amount decimal.Decimal, source CreditSource) (decimal.Decimal, error)
	Suspend(ctx context.Context, userID string) error
	Unsuspend(ctx context.Context, userID string) error
	Info(ctx context.Context, userID string) (*Info, error)
}
