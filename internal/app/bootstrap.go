package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"catalog-api/internal/auth"
	"catalog-api/internal/category"
	"catalog-api/internal/config"
	"catalog-api/internal/db"
	"catalog-api/internal/maintenance"
	"catalog-api/internal/observability"
	"catalog-api/internal/policy"
	"catalog-api/internal/product"
	"catalog-api/internal/token"
)

type Options struct {
	LoadDotEnv    bool
	RunMigrations bool
}

type Runtime struct {
	Config  config.Config
	Logger  *slog.Logger
	Handler http.Handler
	Close   func() error
}

// Build loads and validates configuration, connects the database and wires
// every handler behind the shared middleware stack. Configuration faults
// surface here, before the server ever binds.
func Build(options Options) (*Runtime, error) {
	if options.LoadDotEnv {
		_ = godotenv.Load()
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := observability.NewLogger(cfg.AppEnv)

	flushSentry, err := observability.SetupSentry(cfg.SentryDSN, cfg.AppEnv)
	if err != nil {
		logger.Error("init_sentry_failed", "error", err)
	}

	database, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	database.SetMaxOpenConns(cfg.DBMaxOpenConns)
	database.SetMaxIdleConns(cfg.DBMaxIdleConns)
	database.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	database.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

	if err := database.Ping(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if options.RunMigrations {
		if err := db.RunMigrations(database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	codec, err := token.NewCodec([]byte(cfg.JWTSecret), cfg.Issuer, cfg.Audience, cfg.AccessTTL)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("build token codec: %w", err)
	}

	authRepo := auth.NewRepository(database)
	authService := auth.NewService(authRepo, codec, cfg.RefreshTTL)
	authHandler := auth.NewHandler(authService)

	policies := policy.NewRegistry()
	policies.Register("AdminOnly", policy.RequireRole("Admin"))
	policies.Register("SuperAdminOnly", policy.RequireRoleAndClaim("Admin", "id", cfg.PrivilegedID))
	policies.Register("ExclusiveOnly", policy.Assertion(cfg.PrivilegedID, cfg.ElevatedRole))

	productHandler := product.NewHandler(product.NewRepository(database))
	categoryHandler := category.NewHandler(category.NewRepository(database))
	cleanupHandler := maintenance.NewCleanupHandler(authRepo, logger, cfg.CronSecret, cfg.RefreshRetention, cfg.CleanupBatchSize)

	loginLimiter := auth.NewLoginRateLimiter(cfg.LoginRateMax, cfg.LoginRateWindow)

	gated := func(policyName string, next http.HandlerFunc) http.Handler {
		return auth.Middleware(codec, auth.RequirePolicy(policies, policyName, next))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /auth/login", loginLimiter.Middleware(http.HandlerFunc(authHandler.Login)))
	mux.HandleFunc("POST /auth/refresh", authHandler.Refresh)
	mux.HandleFunc("POST /auth/register", authHandler.Register)
	mux.Handle("POST /auth/revoke/{username}", gated("ExclusiveOnly", authHandler.Revoke))
	mux.Handle("POST /auth/roles", gated("SuperAdminOnly", authHandler.CreateRole))
	mux.Handle("POST /auth/roles/members", gated("SuperAdminOnly", authHandler.AddUserToRole))

	mux.HandleFunc("GET /products", productHandler.List)
	mux.HandleFunc("GET /products/{id}", productHandler.Get)
	mux.Handle("POST /products", gated("AdminOnly", productHandler.Create))
	mux.Handle("PUT /products/{id}", gated("AdminOnly", productHandler.Update))
	mux.Handle("DELETE /products/{id}", gated("AdminOnly", productHandler.Delete))

	mux.HandleFunc("GET /categories", categoryHandler.List)
	mux.Handle("POST /categories", gated("AdminOnly", categoryHandler.Create))
	mux.Handle("PUT /categories/{id}", gated("AdminOnly", categoryHandler.Update))
	mux.Handle("DELETE /categories/{id}", gated("AdminOnly", categoryHandler.Delete))

	mux.HandleFunc("GET /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("POST /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("GET /health", healthHandler(database))

	handler := observability.RecoverMiddleware(logger, observability.RequestLoggingMiddleware(logger, mux))

	return &Runtime{
		Config:  cfg,
		Logger:  logger,
		Handler: handler,
		Close: func() error {
			flushSentry()
			return database.Close()
		},
	}, nil
}

func healthHandler(database *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := database.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]any{"status": "degraded", "time": time.Now().UTC().Format(time.RFC3339)}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
