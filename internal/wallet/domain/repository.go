package domain

import "context"

// Repository is the storage contract both the SQL and Mongo adapters
// satisfy. Debit and Credit are single atomic operations inside the engine;
// the service layer never read-modify-writes a balance.
type Repository interface {
	// GetOrCreate returns the wallet, creating an empty one when the user
	// has none yet. Concurrent creation of the same wallet must converge on
	// one row.
	GetOrCreate(ctx context.Context, userID, email string) (*Wallet, error)
	// Find returns nil when the wallet does not exist.
	Find(ctx context.Context, userID string) (*Wallet, error)
	// Debit atomically subtracts units when the wallet exists, is not
	// suspended, and holds at least that many units. It returns the new
	// balance, or ErrConditionalUpdateFailed when the predicate did not
	// match; the caller classifies the failure with a follow-up read.
	Debit(ctx context.Context, userID string, units int64) (int64, error)
	// Credit atomically adds units, bumping the lifetime purchase total when
	// countPurchased is set. Suspension does not block credits.
	Credit(ctx context.Context, userID string, units int64, countPurchased bool) (int64, error)
	SetSuspended(ctx context.Context, userID string, suspended bool) error
}
