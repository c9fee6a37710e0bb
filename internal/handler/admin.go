package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/eralens/eralens/internal/auth"
	"github.com/eralens/eralens/internal/metrics"
	"github.com/eralens/eralens/internal/model"
	"github.com/eralens/eralens/internal/store"
)

// AdminHandler provides the admin-only account operations.
type AdminHandler struct {
	accounts store.AccountStore
	metrics  metrics.Recorder
	logger   *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(accounts store.AccountStore, recorder metrics.Recorder, logger *slog.Logger) *AdminHandler {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &AdminHandler{accounts: accounts, metrics: recorder, logger: logger}
}

// UserListResponse is the admin account listing.
type UserListResponse struct {
	Users []model.AccountResponse `json:"users"`
	Total int                     `json:"total"`
}

// ListUsers returns every account, most recently seen first.
//
// GET /api/v1/admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	accounts, err := h.accounts.ListAccounts(ctx)
	if err != nil {
		h.logger.Error("failed to list accounts",
			slog.String("error", err.Error()),
		)
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error.")
		return
	}

	response := UserListResponse{
		Users: make([]model.AccountResponse, 0, len(accounts)),
		Total: len(accounts),
	}
	for _, acct := range accounts {
		response.Users = append(response.Users, acct.ToResponse())
	}

	writeJSON(w, http.StatusOK, response)
}

// adjustCreditsRequest carries either an absolute set or an increment.
// Exactly one of Credits and Amount must be present.
type adjustCreditsRequest struct {
	Email   string `json:"email"`
	Credits *int   `json:"credits"`
	Amount  *int   `json:"amount"`
}

// adjustCreditsResponse reports the account's new balance.
type adjustCreditsResponse struct {
	Email   string `json:"email"`
	Credits int    `json:"credits"`
}

// AdjustCredits sets or increments an account's balance by email.
// `{"email", "credits"}` sets an absolute value, `{"email", "amount"}`
// adds to the current balance.
//
// POST /api/v1/admin/credits
func (h *AdminHandler) AdjustCredits(w http.ResponseWriter, r *http.Request) {
	var req adjustCreditsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "INVALID_ARGUMENT", "request body must be JSON with email and a numeric credits or amount field")
		return
	}
	if req.Email == "" {
		writeErrorJSON(w, http.StatusBadRequest, "INVALID_ARGUMENT", "email is required")
		return
	}
	if (req.Credits == nil) == (req.Amount == nil) {
		writeErrorJSON(w, http.StatusBadRequest, "INVALID_ARGUMENT", "exactly one of credits (absolute) or amount (increment) is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var (
		acct *model.Account
		err  error
		kind string
	)
	if req.Credits != nil {
		kind = "set"
		acct, err = h.accounts.SetCredits(ctx, req.Email, *req.Credits)
	} else {
		kind = "add"
		acct, err = h.accounts.AddCredits(ctx, req.Email, *req.Amount)
	}

	if err != nil {
		switch {
		case errors.Is(err, store.ErrInvalidCredits):
			writeErrorJSON(w, http.StatusBadRequest, "INVALID_ARGUMENT", "credits must be non-negative and amount must be positive")
		case errors.Is(err, store.ErrAccountNotFound):
			writeErrorJSON(w, http.StatusNotFound, "NOT_FOUND", "no account with that email")
		default:
			h.logger.Error("credit adjustment failed",
				slog.String("error", err.Error()),
				slog.String("email", auth.MaskEmail(req.Email)),
				slog.String("kind", kind),
			)
			writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error.")
		}
		return
	}

	h.metrics.IncAdminAdjustment(kind)

	actor := auth.MustIdentityFromContext(r.Context())
	h.logger.Info("credits adjusted",
		slog.String("admin", auth.MaskEmail(actor.Email)),
		slog.String("email", auth.MaskEmail(acct.Email)),
		slog.String("kind", kind),
		slog.Int("balance", acct.Credits),
	)

	writeJSON(w, http.StatusOK, adjustCreditsResponse{
		Email:   acct.Email,
		Credits: acct.Credits,
	})
}
