package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eralens/eralens/internal/model"
)

// Postgres is the PostgreSQL-backed AccountStore.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ AccountStore = (*Postgres)(nil)

// NewPostgres creates a Postgres store with a connection pool.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Connection pool settings
	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// EnsureSchema creates the accounts table if it does not exist.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL,
			credits INTEGER NOT NULL CHECK (credits >= 0),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			last_seen_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS accounts_email_idx ON accounts (lower(email));
	`
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure accounts schema: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the database connection pool.
func (s *Postgres) Close() {
	s.pool.Close()
}

// Pool returns the underlying connection pool.
// Use sparingly - prefer adding methods to Postgres.
func (s *Postgres) Pool() *pgxpool.Pool {
	return s.pool
}

// GetOrCreate inserts the account on first sight or refreshes
// email/last_seen_at on subsequent sightings. The upsert is a single
// statement, so concurrent first sightings of the same id cannot create
// duplicate rows.
func (s *Postgres) GetOrCreate(ctx context.Context, id, email string, initialCredits int) (*model.Account, error) {
	query := `
		INSERT INTO accounts (id, email, credits, created_at, last_seen_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (id) DO UPDATE
			SET email = EXCLUDED.email, last_seen_at = now()
		RETURNING id, email, credits, created_at, last_seen_at
	`

	var acct model.Account
	err := s.pool.QueryRow(ctx, query, id, email, initialCredits).Scan(
		&acct.ID,
		&acct.Email,
		&acct.Credits,
		&acct.CreatedAt,
		&acct.LastSeenAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create account: %w", err)
	}

	return &acct, nil
}

// TryDeductCredit decrements the balance by one if it is positive.
// The guard and the decrement are one conditional UPDATE, so concurrent
// requests against a thin balance cannot both succeed.
func (s *Postgres) TryDeductCredit(ctx context.Context, id string) (int, error) {
	query := `
		UPDATE accounts
		SET credits = credits - 1
		WHERE id = $1 AND credits > 0
		RETURNING credits
	`

	var balance int
	err := s.pool.QueryRow(ctx, query, id).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("failed to deduct credit: %w", err)
	}

	// No row updated: either the account is unknown or the balance is 0.
	var exists bool
	err = s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("failed to check account: %w", err)
	}
	if !exists {
		return 0, ErrAccountNotFound
	}
	return 0, ErrOutOfCredits
}

// SetCredits sets an absolute balance on the most recently seen account
// with the given email.
func (s *Postgres) SetCredits(ctx context.Context, email string, value int) (*model.Account, error) {
	if value < 0 {
		return nil, ErrInvalidCredits
	}

	query := `
		UPDATE accounts
		SET credits = $2
		WHERE id = (
			SELECT id FROM accounts
			WHERE lower(email) = lower($1)
			ORDER BY last_seen_at DESC, id ASC
			LIMIT 1
		)
		RETURNING id, email, credits, created_at, last_seen_at
	`

	return s.scanAccountRow(s.pool.QueryRow(ctx, query, email, value), "set credits")
}

// AddCredits atomically increments the balance of the most recently seen
// account with the given email.
func (s *Postgres) AddCredits(ctx context.Context, email string, amount int) (*model.Account, error) {
	if amount <= 0 {
		return nil, ErrInvalidCredits
	}

	query := `
		UPDATE accounts
		SET credits = credits + $2
		WHERE id = (
			SELECT id FROM accounts
			WHERE lower(email) = lower($1)
			ORDER BY last_seen_at DESC, id ASC
			LIMIT 1
		)
		RETURNING id, email, credits, created_at, last_seen_at
	`

	return s.scanAccountRow(s.pool.QueryRow(ctx, query, email, amount), "add credits")
}

// ListAccounts returns all accounts, most recently seen first.
func (s *Postgres) ListAccounts(ctx context.Context) ([]*model.Account, error) {
	query := `
		SELECT id, email, credits, created_at, last_seen_at
		FROM accounts
		ORDER BY last_seen_at DESC, id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*model.Account
	for rows.Next() {
		var acct model.Account
		if err := rows.Scan(&acct.ID, &acct.Email, &acct.Credits, &acct.CreatedAt, &acct.LastSeenAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, &acct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}

	return accounts, nil
}

func (s *Postgres) scanAccountRow(row pgx.Row, op string) (*model.Account, error) {
	var acct model.Account
	err := row.Scan(&acct.ID, &acct.Email, &acct.Credits, &acct.CreatedAt, &acct.LastSeenAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return &acct, nil
}
