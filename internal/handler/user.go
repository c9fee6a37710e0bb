package handler

import (
	"log/slog"
	"net/http"

	"github.com/eralens/eralens/internal/auth"
	"github.com/eralens/eralens/internal/model"
)

// UserHandler serves the authenticated per-user endpoints.
type UserHandler struct {
	gate   *auth.AdminGate
	logger *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(gate *auth.AdminGate, logger *slog.Logger) *UserHandler {
	return &UserHandler{gate: gate, logger: logger}
}

// UserData returns the caller's admin flag and credit balance.
// The account was provisioned by the auth middleware, so a first-time
// caller sees the initial credit grant here.
//
// GET /api/v1/user-data
func (h *UserHandler) UserData(w http.ResponseWriter, r *http.Request) {
	id := auth.MustIdentityFromContext(r.Context())
	acct := auth.AccountFromContext(r.Context())
	if acct == nil {
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error.")
		return
	}

	writeJSON(w, http.StatusOK, model.UserDataResponse{
		IsAdmin: id.IsAdmin,
		Credits: acct.Credits,
	})
}

// DebugInfoResponse is the non-secret diagnostic payload.
type DebugInfoResponse struct {
	Email           string   `json:"email"`
	IsAdmin         bool     `json:"isAdmin"`
	AdminConfigured bool     `json:"adminConfigured"`
	AdminEmails     []string `json:"adminEmails"`
}

// DebugInfo reports whether the caller matches the configured admin
// list. All emails in the payload are masked.
//
// GET /api/v1/debug-info
func (h *UserHandler) DebugInfo(w http.ResponseWriter, r *http.Request) {
	id := auth.MustIdentityFromContext(r.Context())

	writeJSON(w, http.StatusOK, DebugInfoResponse{
		Email:           auth.MaskEmail(id.Email),
		IsAdmin:         id.IsAdmin,
		AdminConfigured: h.gate.Configured(),
		AdminEmails:     h.gate.MaskedEmails(),
	})
}
