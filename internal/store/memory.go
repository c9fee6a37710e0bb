package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/eralens/eralens/internal/model"
)

// Memory is an in-memory AccountStore for tests and local development.
// A single mutex serializes all mutations, which satisfies the same
// atomicity contract as the Postgres adapter's conditional updates.
type Memory struct {
	mu       sync.Mutex
	accounts map[string]*model.Account
}

var _ AccountStore = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{accounts: make(map[string]*model.Account)}
}

// GetOrCreate returns the account for id, creating it on first sight.
func (s *Memory) GetOrCreate(_ context.Context, id, email string, initialCredits int) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()

	acct, ok := s.accounts[id]
	if !ok {
		acct = &model.Account{
			ID:         id,
			Email:      email,
			Credits:    initialCredits,
			CreatedAt:  now,
			LastSeenAt: now,
		}
		s.accounts[id] = acct
		return copyAccount(acct), nil
	}

	acct.Email = email
	acct.LastSeenAt = now
	return copyAccount(acct), nil
}

// TryDeductCredit decrements a positive balance by one.
func (s *Memory) TryDeductCredit(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[id]
	if !ok {
		return 0, ErrAccountNotFound
	}
	if acct.Credits <= 0 {
		return 0, ErrOutOfCredits
	}

	acct.Credits--
	return acct.Credits, nil
}

// SetCredits sets an absolute balance on the most recently seen account
// with the given email.
func (s *Memory) SetCredits(_ context.Context, email string, value int) (*model.Account, error) {
	if value < 0 {
		return nil, ErrInvalidCredits
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct := s.findByEmailLocked(email)
	if acct == nil {
		return nil, ErrAccountNotFound
	}

	acct.Credits = value
	return copyAccount(acct), nil
}

// AddCredits increments the balance of the most recently seen account
// with the given email.
func (s *Memory) AddCredits(_ context.Context, email string, amount int) (*model.Account, error) {
	if amount <= 0 {
		return nil, ErrInvalidCredits
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct := s.findByEmailLocked(email)
	if acct == nil {
		return nil, ErrAccountNotFound
	}

	acct.Credits += amount
	return copyAccount(acct), nil
}

// ListAccounts returns all accounts, most recently seen first.
func (s *Memory) ListAccounts(_ context.Context) ([]*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts := make([]*model.Account, 0, len(s.accounts))
	for _, acct := range s.accounts {
		accounts = append(accounts, copyAccount(acct))
	}

	sort.Slice(accounts, func(i, j int) bool {
		if !accounts[i].LastSeenAt.Equal(accounts[j].LastSeenAt) {
			return accounts[i].LastSeenAt.After(accounts[j].LastSeenAt)
		}
		return accounts[i].ID < accounts[j].ID
	})

	return accounts, nil
}

// Ping always succeeds.
func (s *Memory) Ping(_ context.Context) error {
	return nil
}

func (s *Memory) findByEmailLocked(email string) *model.Account {
	var match *model.Account
	for _, acct := range s.accounts {
		if !strings.EqualFold(strings.TrimSpace(acct.Email), strings.TrimSpace(email)) {
			continue
		}
		if match == nil ||
			acct.LastSeenAt.After(match.LastSeenAt) ||
			(acct.LastSeenAt.Equal(match.LastSeenAt) && acct.ID < match.ID) {
			match = acct
		}
	}
	return match
}

func copyAccount(acct *model.Account) *model.Account {
	clone := *acct
	return &clone
}
