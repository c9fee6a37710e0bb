package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/eralens/eralens/internal/auth"
	"github.com/eralens/eralens/internal/identity"
	"github.com/eralens/eralens/internal/metrics"
	"github.com/eralens/eralens/internal/model"
	"github.com/eralens/eralens/internal/store"
)

// IdentityResolver resolves a bearer token into a verified identity.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (*model.Identity, error)
}

// IdentityCache caches resolved identities keyed by token fingerprint.
type IdentityCache interface {
	GetIdentity(ctx context.Context, fingerprint string) (*model.Identity, error)
	SetIdentity(ctx context.Context, fingerprint string, id *model.Identity) error
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger   *slog.Logger
	Resolver IdentityResolver
	// Cache is optional; without it every request hits the provider.
	Cache          IdentityCache
	Gate           *auth.AdminGate
	Accounts       store.AccountStore
	Metrics        metrics.Recorder
	InitialCredits int
}

// Auth returns a middleware that authenticates API requests.
// It extracts the bearer token from the Authorization header, resolves
// it into an identity (consulting the cache first), provisions the
// account, and injects identity and account into the request context.
// The admin flag is derived from configuration on every request and
// never enters the cache.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", "missing_token"),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w)
				return
			}

			// The raw token never leaves this function; cache keys and
			// logs use its fingerprint.
			fingerprint := auth.TokenFingerprint(token)

			id, cacheHit := lookupCachedIdentity(r.Context(), cfg.Cache, fingerprint)
			if cacheHit {
				recorder.IncIdentityCacheHit()
			} else {
				recorder.IncIdentityCacheMiss()

				var err error
				id, err = cfg.Resolver.Resolve(r.Context(), token)
				if err != nil {
					handleResolveError(w, cfg.Logger, r, err, fingerprint)
					return
				}

				if cfg.Cache != nil {
					_ = cfg.Cache.SetIdentity(r.Context(), fingerprint, id)
				}
			}

			id.IsAdmin = cfg.Gate.IsAdmin(id.Email)

			acct, err := cfg.Accounts.GetOrCreate(r.Context(), id.UserID, id.Email, cfg.InitialCredits)
			if err != nil {
				cfg.Logger.Error("account provisioning failed",
					slog.String("error", err.Error()),
					slog.String("user_id", id.UserID),
					slog.String("email", auth.MaskEmail(id.Email)),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeServerError(w)
				return
			}
			if acct.CreatedAt.Equal(acct.LastSeenAt) {
				recorder.IncAccountCreated()
			}

			cfg.Logger.Info("authentication successful",
				slog.String("user_id", id.UserID),
				slog.String("email", auth.MaskEmail(id.Email)),
				slog.Bool("is_admin", id.IsAdmin),
				slog.Bool("cache_hit", cacheHit),
				slog.String("token_fp", fingerprint),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			ctx := auth.ContextWithIdentity(r.Context(), id)
			ctx = auth.ContextWithAccount(ctx, acct)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// lookupCachedIdentity consults the identity cache. A nil cache or any
// cache error is a miss.
func lookupCachedIdentity(ctx context.Context, c IdentityCache, fingerprint string) (*model.Identity, bool) {
	if c == nil {
		return nil, false
	}
	id, err := c.GetIdentity(ctx, fingerprint)
	if err != nil || id == nil {
		return nil, false
	}
	return id, true
}

func handleResolveError(w http.ResponseWriter, logger *slog.Logger, r *http.Request, err error, fingerprint string) {
	switch {
	case errors.Is(err, identity.ErrUnauthenticated):
		logger.Warn("authentication failed",
			slog.String("reason", "invalid_token"),
			slog.String("token_fp", fingerprint),
			slog.String("endpoint", r.Method+" "+r.URL.Path),
			slog.String("request_id", GetRequestID(r.Context())),
		)
		writeAuthError(w)
	case errors.Is(err, identity.ErrMalformedIdentity):
		logger.Warn("authentication failed",
			slog.String("reason", "malformed_identity"),
			slog.String("token_fp", fingerprint),
			slog.String("request_id", GetRequestID(r.Context())),
		)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Identity provider returned unusable claims.","code":"MALFORMED_IDENTITY"}`))
	default:
		logger.Error("identity provider error",
			slog.String("error", err.Error()),
			slog.String("request_id", GetRequestID(r.Context())),
		)
		writeServerError(w)
	}
}

// extractBearerToken extracts the bearer token from the Authorization
// header. Only the Bearer scheme is accepted.
func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// writeAuthError writes a 401 Unauthorized response.
// Uses the same message for all credential failures to prevent probing.
func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"Invalid or missing credentials.","code":"UNAUTHORIZED"}`))
}

// writeServerError writes a 500 response without leaking internals.
func writeServerError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte(`{"error":"Internal server error.","code":"INTERNAL_ERROR"}`))
}
