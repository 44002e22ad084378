package ledger

import "context"

var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "user not found" }

// ErrInsufficientCredits is returned by DebitIfAvailable when the balance is
// too low to cover the debit.
var ErrInsufficientCredits = errInsufficientCredits{}

type errInsufficientCredits struct{}

func (errInsufficientCredits) Error() string { return "insufficient credits" }

// Repo persists users and their credit balances. All balance mutations are
// atomic at the storage level.
type Repo interface {
	// Create inserts the user if absent. It reports whether a row was
	// actually created; an existing user is left untouched.
	Create(ctx context.Context, user User) (bool, error)
	GetByID(ctx context.Context, userID string) (User, error)
	SetContext(ctx context.Context, userID, objectContext string) error
	// AdjustBalance adds delta (which may be negative) to the user's balance
	// and returns the resulting value. Admin adjustments may drive the balance
	// negative; the billing path must use DebitIfAvailable instead.
	AdjustBalance(ctx context.Context, userID string, delta int) (int, error)
	// DebitIfAvailable decrements the balance only if it covers the amount,
	// as a single conditional update, and returns the new balance. It returns
	// ErrInsufficientCredits when the balance is too low, so two concurrent
	// debits racing over the last credit cannot drive the balance negative.
	DebitIfAvailable(ctx context.Context, userID string, amount int) (int, error)
	// TrySetReferralBonusPaid flips the referral flag and reports whether
	// this call won the flip. Exactly one concurrent caller sees true.
	TrySetReferralBonusPaid(ctx context.Context, userID string) (bool, error)
	Delete(ctx context.Context, userID string) error
}
