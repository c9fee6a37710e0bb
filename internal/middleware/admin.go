package middleware

import (
	"log/slog"
	"net/http"

	"github.com/eralens/eralens/internal/auth"
)

// RequireAdmin returns a middleware that rejects non-admin identities
// with 403. Must be applied after Auth.
func RequireAdmin(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := auth.IdentityFromContext(r.Context())
			if id == nil {
				writeAuthError(w)
				return
			}

			if !id.IsAdmin {
				logger.Warn("admin access denied",
					slog.String("user_id", id.UserID),
					slog.String("email", auth.MaskEmail(id.Email)),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"Admin access required.","code":"FORBIDDEN"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
