// Package model defines domain entities for the application.
package model

import "time"

// Account maps an identity-provider subject to a credit balance.
// It is the only entity the core persists.
type Account struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Credits    int       `json:"credits"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// Identity is the verified result of resolving a bearer credential.
// IsAdmin is derived per request from configuration, never persisted,
// so a changed admin list takes effect immediately.
type Identity struct {
	UserID  string
	Email   string
	IsAdmin bool
}

// UserDataResponse is the payload for GET /user-data.
type UserDataResponse struct {
	IsAdmin bool `json:"isAdmin"`
	Credits int  `json:"credits"`
}

// AccountResponse is an account as shown in the admin listing.
type AccountResponse struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Credits    int       `json:"credits"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// ToResponse converts an Account to its admin listing representation.
func (a *Account) ToResponse() AccountResponse {
	return AccountResponse{
		ID:         a.ID,
		Email:      a.Email,
		Credits:    a.Credits,
		CreatedAt:  a.CreatedAt,
		LastSeenAt: a.LastSeenAt,
	}
}
