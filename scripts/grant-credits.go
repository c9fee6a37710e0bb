// Command grant-credits adjusts account balances directly in the
// database. It is an operator escape hatch for when the admin API is
// unreachable (for example, before the first admin has any credits).
//
// Usage:
//
//	go run ./scripts/grant-credits.go -email user@example.com -set 10
//	go run ./scripts/grant-credits.go -email user@example.com -add 5
//	go run ./scripts/grant-credits.go -list
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

type accountRow struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Credits    int       `json:"credits"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		email       = flag.String("email", "", "Account email to adjust")
		set         = flag.Int("set", -1, "Absolute credit balance to set (non-negative)")
		add         = flag.Int("add", 0, "Credits to add to the current balance (positive)")
		list        = flag.Bool("list", false, "List all accounts instead of adjusting")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := sql.Open("postgres", *databaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open database:", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", err)
		os.Exit(1)
	}

	if *list {
		if err := listAccounts(ctx, db, *format); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		return
	}

	if *email == "" {
		fmt.Fprintln(os.Stderr, "-email is required unless -list is given")
		os.Exit(1)
	}
	if (*set >= 0) == (*add > 0) {
		fmt.Fprintln(os.Stderr, "exactly one of -set (non-negative) or -add (positive) is required")
		os.Exit(1)
	}

	acct, err := adjust(ctx, db, *email, *set, *add)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Printf("%s\t%d\n", acct.Email, acct.Credits)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(acct)
	default:
		fmt.Fprintln(os.Stderr, "invalid format; use plain or json")
		os.Exit(1)
	}
}

// adjust updates the most recently seen account with the given email,
// matching the behavior of the admin API.
func adjust(ctx context.Context, db *sql.DB, email string, set, add int) (*accountRow, error) {
	var query string
	var arg int
	if set >= 0 {
		query = `
			UPDATE accounts SET credits = $2
			WHERE id = (
				SELECT id FROM accounts WHERE lower(email) = lower($1)
				ORDER BY last_seen_at DESC, id ASC LIMIT 1
			)
			RETURNING id, email, credits, created_at, last_seen_at`
		arg = set
	} else {
		query = `
			UPDATE accounts SET credits = credits + $2
			WHERE id = (
				SELECT id FROM accounts WHERE lower(email) = lower($1)
				ORDER BY last_seen_at DESC, id ASC LIMIT 1
			)
			RETURNING id, email, credits, created_at, last_seen_at`
		arg = add
	}

	var acct accountRow
	err := db.QueryRowContext(ctx, query, strings.TrimSpace(email), arg).
		Scan(&acct.ID, &acct.Email, &acct.Credits, &acct.CreatedAt, &acct.LastSeenAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no account with email %s", email)
	}
	if err != nil {
		return nil, fmt.Errorf("adjust credits: %w", err)
	}
	return &acct, nil
}

func listAccounts(ctx context.Context, db *sql.DB, format string) error {
	rows, err := db.QueryContext(ctx, `
		SELECT id, email, credits, created_at, last_seen_at
		FROM accounts
		ORDER BY last_seen_at DESC, id ASC`)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []accountRow
	for rows.Next() {
		var acct accountRow
		if err := rows.Scan(&acct.ID, &acct.Email, &acct.Credits, &acct.CreatedAt, &acct.LastSeenAt); err != nil {
			return fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, acct)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}

	switch strings.ToLower(format) {
	case "plain":
		for _, acct := range accounts {
			fmt.Printf("%s\t%s\t%d\n", acct.ID, acct.Email, acct.Credits)
		}
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(accounts)
	default:
		return fmt.Errorf("invalid format; use plain or json")
	}
	return nil
}
