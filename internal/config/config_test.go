package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "registration-service", cfg.App.Name)
	require.Equal(t, "RS256", cfg.Auth.Algorithm)
	require.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenTTL())
	require.Equal(t, 30*24*time.Hour, cfg.Auth.RefreshTokenTTL())
	require.Equal(t, 30*time.Minute, cfg.Auth.PasswordResetTTL())
	require.Equal(t, 12, cfg.Auth.BcryptCost)
	require.Equal(t, 10, cfg.Auth.LoginMaxAttempts)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9000")
	t.Setenv("AUTH_ACCESS_TOKEN_TTL_MINUTES", "5")
	t.Setenv("AUTH_REFRESH_TOKEN_TTL_DAYS", "7")
	t.Setenv("AUTH_JWT_ALGORITHM", "RS512")
	t.Setenv("POSTGRES_RUN_MIGRATIONS", "false")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "9000", cfg.App.Port)
	require.Equal(t, 5*time.Minute, cfg.Auth.AccessTokenTTL())
	require.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTokenTTL())
	require.Equal(t, "RS512", cfg.Auth.Algorithm)
	require.False(t, cfg.Postgres.RunMigrations)
}

func TestLoad_InvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")

	_, err := Load()
	require.Error(t, err)
}

func TestAppConfig_Addr(t *testing.T) {
	app := AppConfig{Host: "127.0.0.1", Port: "8000"}
	require.Equal(t, "127.0.0.1:8000", app.Addr())
}

func TestAuthConfig_TTLFallbacks(t *testing.T) {
	var auth AuthConfig
	require.Equal(t, 15*time.Minute, auth.AccessTokenTTL())
	require.Equal(t, 30*24*time.Hour, auth.RefreshTokenTTL())
	require.Equal(t, 5*time.Minute, auth.LoginAttemptWindow())
}
