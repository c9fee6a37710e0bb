package auth

import (
	"sort"
	"strings"
)

// AdminGate decides whether a resolved identity has administrative access.
// It is constructed once at startup from configuration; the admin role is
// never stored on the account, so a config change is effective on the next
// request.
type AdminGate struct {
	emails map[string]struct{}
}

// NewAdminGate creates an AdminGate from the configured admin emails.
// Comparison is case-insensitive and ignores surrounding whitespace.
func NewAdminGate(adminEmails []string) *AdminGate {
	emails := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		normalized := normalizeEmail(e)
		if normalized != "" {
			emails[normalized] = struct{}{}
		}
	}
	return &AdminGate{emails: emails}
}

// IsAdmin reports whether the given email belongs to an admin.
func (g *AdminGate) IsAdmin(email string) bool {
	_, ok := g.emails[normalizeEmail(email)]
	return ok
}

// Configured reports whether at least one admin email is configured.
func (g *AdminGate) Configured() bool {
	return len(g.emails) > 0
}

// MaskedEmails returns the configured admin emails in masked, sorted
// form, safe to expose on diagnostic endpoints.
func (g *AdminGate) MaskedEmails() []string {
	masked := make([]string, 0, len(g.emails))
	for e := range g.emails {
		masked = append(masked, MaskEmail(e))
	}
	sort.Strings(masked)
	return masked
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MaskEmail returns a log-safe form of an email address: the first two
// characters and the last character of the local part, with the domain
// kept. Full emails never appear in logs.
func MaskEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}

	local, domain := email[:at], email[at+1:]
	if len(local) <= 3 {
		return local[:1] + "***@" + domain
	}
	return local[:2] + "***" + local[len(local)-1:] + "@" + domain
}
