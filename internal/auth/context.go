// Package auth provides identity context helpers, the admin gate, and
// token fingerprinting utilities.
package auth

import (
	"context"

	"github.com/eralens/eralens/internal/model"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// identityContextKey is the context key for storing the resolved Identity.
	identityContextKey contextKey = "identity"
	// accountContextKey is the context key for the provisioned Account.
	accountContextKey contextKey = "account"
)

// ContextWithIdentity adds a resolved Identity to the context.
func ContextWithIdentity(ctx context.Context, id *model.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFromContext retrieves the Identity from the context.
// Returns nil if not present.
func IdentityFromContext(ctx context.Context) *model.Identity {
	id, ok := ctx.Value(identityContextKey).(*model.Identity)
	if !ok {
		return nil
	}
	return id
}

// MustIdentityFromContext retrieves the Identity from the context.
// Panics if not present (use only when auth middleware has run).
func MustIdentityFromContext(ctx context.Context) *model.Identity {
	id := IdentityFromContext(ctx)
	if id == nil {
		panic("identity not found in context - ensure auth middleware is applied")
	}
	return id
}

// UserIDFromContext is a convenience function to get the user ID from context.
// Returns empty string if not authenticated.
func UserIDFromContext(ctx context.Context) string {
	id := IdentityFromContext(ctx)
	if id == nil {
		return ""
	}
	return id.UserID
}

// ContextWithAccount adds the provisioned Account to the context.
func ContextWithAccount(ctx context.Context, acct *model.Account) context.Context {
	return context.WithValue(ctx, accountContextKey, acct)
}

// AccountFromContext retrieves the Account from the context.
// Returns nil if not present.
func AccountFromContext(ctx context.Context) *model.Account {
	acct, ok := ctx.Value(accountContextKey).(*model.Account)
	if !ok {
		return nil
	}
	return acct
}
