package config_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agrilink/backend-agrilink/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"DATABASE_URL": "postgres://localhost/agrilink_test",
		"REDIS_URL":    "redis://localhost:6379/0",
		"JWT_SECRET":   "test-secret",
	})
	require.NoError(t, err)

	require.Equal(t, "development", cfg.AppEnv)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, "csrftoken", cfg.CSRFCookieName)
	require.Equal(t, "X-CSRFToken", cfg.CSRFHeaderName)
	require.Equal(t, "PHP", cfg.CurrencyCode)
	require.Equal(t, 12, cfg.CatalogDefaultLimit)
	require.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	require.Equal(t, http.SameSiteLaxMode, cfg.CookieSameSite)
}

func TestLoadRequiresDatabase(t *testing.T) {
	_, err := config.LoadForTests(map[string]string{
		"DATABASE_URL": "",
		"REDIS_URL":    "redis://localhost:6379/0",
		"JWT_SECRET":   "test-secret",
	})
	require.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"DATABASE_URL":    "postgres://localhost/agrilink_test",
		"REDIS_URL":       "redis://localhost:6379/0",
		"JWT_SECRET":      "test-secret",
		"PORT":            "9090",
		"COOKIE_SAMESITE": "strict",
		"CALC_RATE_MAX":   "5",
	})
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, http.SameSiteStrictMode, cfg.CookieSameSite)
	require.Equal(t, 5, cfg.CalcRateMax)
}
