// Package store provides the account persistence layer.
//
// AccountStore is the single contract; the Postgres adapter backs
// production and the memory adapter backs tests and local development.
// All balance mutations are atomic at the account level: two concurrent
// deductions against a balance of one yield exactly one success.
package store

import (
	"context"
	"errors"

	"github.com/eralens/eralens/internal/model"
)

// Common errors for account store operations.
var (
	// ErrAccountNotFound indicates no account exists for the given key.
	ErrAccountNotFound = errors.New("account not found")
	// ErrOutOfCredits indicates a deduction was refused because the
	// balance is empty. The stored balance is left unchanged.
	ErrOutOfCredits = errors.New("account is out of credits")
	// ErrInvalidCredits indicates a negative set value or non-positive
	// add amount.
	ErrInvalidCredits = errors.New("invalid credit amount")
)

// AccountStore is the contract every persistence adapter implements.
type AccountStore interface {
	// GetOrCreate returns the account for id, creating it with
	// initialCredits on first sight. On an existing account it refreshes
	// email and last_seen_at. Safe to call concurrently for the same
	// never-seen id: exactly one row results.
	GetOrCreate(ctx context.Context, id, email string, initialCredits int) (*model.Account, error)

	// TryDeductCredit atomically decrements the balance by one if it is
	// positive and returns the new balance. Returns ErrOutOfCredits when
	// the balance is zero, leaving stored state unchanged. Never
	// implemented as a separate read followed by a write.
	TryDeductCredit(ctx context.Context, id string) (int, error)

	// SetCredits sets the balance of the account with the given email to
	// an absolute non-negative value. When several accounts share an
	// email, the most recently seen one is updated.
	SetCredits(ctx context.Context, email string, value int) (*model.Account, error)

	// AddCredits atomically increments the balance of the account with
	// the given email by a positive amount.
	AddCredits(ctx context.Context, email string, amount int) (*model.Account, error)

	// ListAccounts returns all accounts ordered by last_seen_at
	// descending, id ascending as tiebreak.
	ListAccounts(ctx context.Context) ([]*model.Account, error)

	// Ping checks the backing service.
	Ping(ctx context.Context) error
}
