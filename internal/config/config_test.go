package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "a-reasonably-long-test-secret")
	t.Setenv("DB_PASSWORD", "postgres")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Auth.MaxFailedAttempts)
	assert.Equal(t, 30*time.Minute, cfg.Auth.LockoutDuration)
	assert.Equal(t, 60*time.Second, cfg.Auth.BlacklistCacheTTL)
	assert.Equal(t, 100*time.Millisecond, cfg.Auth.EnumerationDelayMin)
	assert.Equal(t, 500*time.Millisecond, cfg.Auth.EnumerationDelayMax)
	assert.Equal(t, 24*time.Hour, cfg.Auth.VerificationTokenExpiry)
	assert.Equal(t, time.Hour, cfg.Auth.ResetTokenExpiry)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTokenExpiry)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenExpiry)
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_PASSWORD", "postgres")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_MissingDBPassword(t *testing.T) {
	t.Setenv("JWT_SECRET", "a-reasonably-long-test-secret")
	t.Setenv("DB_PASSWORD", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsShortSecretInProduction(t *testing.T) {
	t.Setenv("JWT_SECRET", "only-twenty-chars!!")
	t.Setenv("DB_PASSWORD", "postgres")
	t.Setenv("ENV", "production")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MAX_FAILED_ATTEMPTS", "3")
	t.Setenv("LOCKOUT_DURATION", "10m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Auth.MaxFailedAttempts)
	assert.Equal(t, 10*time.Minute, cfg.Auth.LockoutDuration)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host: "localhost", Port: 5432, User: "postgres",
		Password: "pw", Name: "garago_auth", SSLMode: "disable",
	}

	assert.Equal(t,
		"host=localhost port=5432 user=postgres password=pw dbname=garago_auth sslmode=disable",
		cfg.DSN())
}
