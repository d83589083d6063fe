package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const minSecretBytes = 32

// Config is loaded once at startup and never mutated afterwards. Anything
// invalid here must stop the process before the server binds.
type Config struct {
	DatabaseURL string
	Port        string
	AppEnv      string
	SentryDSN   string
	CronSecret  string

	JWTSecret  string
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	PrivilegedID string
	ElevatedRole string

	LoginRateMax    int
	LoginRateWindow time.Duration

	RefreshRetention time.Duration
	CleanupBatchSize int

	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration
}

// Load reads the environment into a Config and validates it.
func Load() (Config, error) {
	cfg := Config{
		Port:      envOrDefault("PORT", "8080"),
		AppEnv:    envOrDefault("APP_ENV", "development"),
		SentryDSN: os.Getenv("SENTRY_DSN"),

		CronSecret: strings.TrimSpace(os.Getenv("CRON_SECRET")),

		Issuer:   envOrDefault("JWT_ISSUER", "catalog-api"),
		Audience: envOrDefault("JWT_AUDIENCE", "catalog-api-clients"),

		PrivilegedID: envOrDefault("POLICY_PRIVILEGED_ID", "andre"),
		ElevatedRole: envOrDefault("POLICY_ELEVATED_ROLE", "SuperAdmin"),

		LoginRateMax:    envIntOrDefault("LOGIN_RATE_LIMIT_MAX", 10),
		LoginRateWindow: envSecondsOrDefault("LOGIN_RATE_LIMIT_WINDOW_SECONDS", 60),

		RefreshRetention: envDaysOrDefault("REFRESH_TOKEN_RETENTION_DAYS", 14),
		CleanupBatchSize: envIntOrDefault("CLEANUP_BATCH_SIZE", 500),

		DBMaxOpenConns:    envIntOrDefault("DB_MAX_OPEN_CONNS", 10),
		DBMaxIdleConns:    envIntOrDefault("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime: envMinutesOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30),
		DBConnMaxIdleTime: envMinutesOrDefault("DB_CONN_MAX_IDLE_TIME_MINUTES", 10),
	}

	var err error
	if cfg.DatabaseURL, err = mustEnv("DATABASE_URL"); err != nil {
		return Config{}, err
	}
	if cfg.JWTSecret, err = mustEnv("JWT_SECRET"); err != nil {
		return Config{}, err
	}

	// Token lifetimes are security settings: a malformed value is a fault,
	// not something to paper over with a default.
	if cfg.AccessTTL, err = envMinutesStrict("ACCESS_TOKEN_TTL_MINUTES", 15); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTTL, err = envMinutesStrict("REFRESH_TOKEN_TTL_MINUTES", 7*24*60); err != nil {
		return Config{}, err
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if len(c.JWTSecret) < minSecretBytes {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes, got %d", minSecretBytes, len(c.JWTSecret))
	}
	if strings.TrimSpace(c.Issuer) == "" {
		return fmt.Errorf("JWT_ISSUER must not be empty")
	}
	if strings.TrimSpace(c.Audience) == "" {
		return fmt.Errorf("JWT_AUDIENCE must not be empty")
	}
	if c.AccessTTL <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_TTL_MINUTES must be positive")
	}
	if c.RefreshTTL <= 0 {
		return fmt.Errorf("REFRESH_TOKEN_TTL_MINUTES must be positive")
	}
	return nil
}

func mustEnv(name string) (string, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return "", fmt.Errorf("missing required env: %s", name)
	}
	return value, nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Minute
}

// envMinutesStrict falls back only when the variable is absent. A value that
// is present but unparseable or non-positive fails the load.
func envMinutesStrict(name string, fallback int) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return time.Duration(fallback) * time.Minute, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return 0, fmt.Errorf("%s must be a positive number of minutes, got %q", name, value)
	}
	return time.Duration(parsed) * time.Minute, nil
}

func envSecondsOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Second
}

func envDaysOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * 24 * time.Hour
}
