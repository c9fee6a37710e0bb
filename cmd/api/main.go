// Package main is the entrypoint for the Eralens API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/eralens/eralens/internal/auth"
	"github.com/eralens/eralens/internal/cache"
	"github.com/eralens/eralens/internal/config"
	"github.com/eralens/eralens/internal/handler"
	"github.com/eralens/eralens/internal/identity"
	"github.com/eralens/eralens/internal/metrics"
	"github.com/eralens/eralens/internal/middleware"
	"github.com/eralens/eralens/internal/server"
	"github.com/eralens/eralens/internal/service"
	"github.com/eralens/eralens/internal/store"
	"github.com/eralens/eralens/internal/upstream"
)

func main() {
	ctx := context.Background()

	// Missing required configuration is fatal: the gateway fails closed
	// rather than running with degraded security checks.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	accounts, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer accounts.Close()
	if err := accounts.EnsureSchema(ctx); err != nil {
		logger.Error("failed to ensure schema", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Redis is optional. Without it every request resolves against the
	// identity provider and the generation rate limit is off.
	var cacheClient *cache.Cache
	if cfg.RedisURL != "" {
		cacheClient, err = cache.New(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error(
				"failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			os.Exit(1)
		}
		defer cacheClient.Close()
		logger.Info("connected to Redis")
	} else {
		logger.Warn("REDIS_URL not set, identity cache and rate limiting disabled")
	}

	gate := auth.NewAdminGate(cfg.GetAdminEmails())
	if !gate.Configured() {
		logger.Error("no admin emails configured")
		os.Exit(1)
	}

	resolver := identity.NewResolver(cfg.AuthDomain, cfg.UpstreamTimeout, cfg.IsDevelopment())
	if cfg.IsDevelopment() {
		logger.Warn("development token bypass enabled")
	}

	recorder := metrics.NewInMemory()

	upstreamClient := upstream.NewClient(cfg.GeminiBaseURL, cfg.GeminiAPIKey, cfg.UpstreamTimeout)
	generateService := service.NewGenerateService(accounts, upstreamClient, recorder, logger)

	h := handler.New()
	healthHandler := handler.NewHealthHandler(accounts, healthChecker(cacheClient))
	userHandler := handler.NewUserHandler(gate, logger)
	adminHandler := handler.NewAdminHandler(accounts, recorder, logger)
	generateHandler := handler.NewGenerateHandler(generateService, logger)
	metricsHandler := handler.NewMetricsHandler(recorder)

	r := setupRouter(routerDeps{
		base:     h,
		health:   healthHandler,
		user:     userHandler,
		admin:    adminHandler,
		generate: generateHandler,
		metrics:  metricsHandler,
		resolver: resolver,
		cache:    cacheClient,
		gate:     gate,
		accounts: accounts,
		recorder: recorder,
		cfg:      cfg,
		logger:   logger,
	})

	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"auth_domain", cfg.AuthDomain,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// healthChecker avoids handing a typed-nil *cache.Cache to the health
// handler when Redis is not configured.
func healthChecker(c *cache.Cache) handler.HealthChecker {
	if c == nil {
		return nil
	}
	return c
}

// identityCache mirrors healthChecker for the auth middleware.
func identityCache(c *cache.Cache) middleware.IdentityCache {
	if c == nil {
		return nil
	}
	return c
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	level := parseLogLevel(cfg.LogLevel)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// routerDeps bundles everything setupRouter wires together.
type routerDeps struct {
	base     *handler.Handler
	health   *handler.HealthHandler
	user     *handler.UserHandler
	admin    *handler.AdminHandler
	generate *handler.GenerateHandler
	metrics  *handler.MetricsHandler
	resolver *identity.Resolver
	cache    *cache.Cache
	gate     *auth.AdminGate
	accounts store.AccountStore
	recorder metrics.Recorder
	cfg      *config.Config
	logger   *slog.Logger
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(d routerDeps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.logger))
	r.Use(middleware.Recoverer(d.logger))
	r.Use(middleware.Security(middleware.SecurityConfig{
		IsDevelopment: d.cfg.IsDevelopment(),
	}))

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = d.cfg.GetCORSAllowedOrigins()
	r.Use(middleware.CORS(corsCfg))

	r.Use(middleware.MaxBodySize(d.cfg.MaxRequestBodySize))

	// Health endpoints (no auth required)
	r.Get("/healthz", d.health.Healthz)
	r.Get("/readyz", d.health.Readyz)

	// Root info endpoint
	r.Get("/", d.base.Root)

	authCfg := middleware.AuthConfig{
		Logger:         d.logger,
		Resolver:       d.resolver,
		Cache:          identityCache(d.cache),
		Gate:           d.gate,
		Accounts:       d.accounts,
		Metrics:        d.recorder,
		InitialCredits: d.cfg.InitialCredits,
	}

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:  d.logger,
		Cache:   d.cache,
		Enabled: d.cfg.RateLimitGenerateEnabled,
		RPM:     d.cfg.RateLimitGenerateRPM,
		Burst:   d.cfg.RateLimitGenerateBurst,
	}

	// API v1 routes (require authentication)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(authCfg))

		r.Get("/user-data", d.user.UserData)
		r.Get("/debug-info", d.user.DebugInfo)

		r.With(middleware.RateLimitGenerate(rateLimitCfg)).
			Post("/models/{model}:generateContent", d.generate.Generate)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin(d.logger))

			r.Get("/users", d.admin.ListUsers)
			r.Post("/credits", d.admin.AdjustCredits)
		})

		r.With(middleware.RequireAdmin(d.logger)).Get("/metrics", d.metrics.Metrics)
	})

	// 404 and 405 handlers
	r.NotFound(d.base.NotFound)
	r.MethodNotAllowed(d.base.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
