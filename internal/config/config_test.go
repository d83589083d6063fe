package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/catalog")
	t.Setenv("JWT_SECRET", strings.Repeat("s", 32))
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "catalog-api", cfg.Issuer)
	assert.Equal(t, "catalog-api-clients", cfg.Audience)
	assert.Positive(t, cfg.AccessTTL)
	assert.Positive(t, cfg.RefreshTTL)
	assert.Greater(t, cfg.RefreshTTL, cfg.AccessTTL)
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/catalog")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoad_ShortSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/catalog")
	t.Setenv("JWT_SECRET", "too-short")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 32 bytes")
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", strings.Repeat("s", 32))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_MalformedLifetimeIsFatal(t *testing.T) {
	for _, tc := range []struct {
		name  string
		value string
	}{
		{"ACCESS_TOKEN_TTL_MINUTES", "not-a-number"},
		{"ACCESS_TOKEN_TTL_MINUTES", "0"},
		{"ACCESS_TOKEN_TTL_MINUTES", "-15"},
		{"REFRESH_TOKEN_TTL_MINUTES", "7 days"},
		{"REFRESH_TOKEN_TTL_MINUTES", "-1"},
	} {
		t.Run(tc.name+"="+tc.value, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tc.name, tc.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.name)
		})
	}
}

func TestLoad_ExplicitLifetimes(t *testing.T) {
	setRequired(t)
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "5")
	t.Setenv("REFRESH_TOKEN_TTL_MINUTES", "120")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 2*time.Hour, cfg.RefreshTTL)
}

// Non-security knobs keep the forgiving fallback.
func TestLoad_BadPoolSizeFallsBackToDefault(t *testing.T) {
	setRequired(t)
	t.Setenv("DB_MAX_OPEN_CONNS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Positive(t, cfg.DBMaxOpenConns)
}
