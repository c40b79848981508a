package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		DatabaseURL:      "postgres://localhost/auth",
		RedisURL:         "redis://localhost:6379/0",
		JWTSecret:        []byte(strings.Repeat("a", 32)),
		JWTRefreshSecret: []byte(strings.Repeat("b", 32)),
		AccessTokenTTL:   15 * time.Minute,
		RefreshTokenTTL:  7 * 24 * time.Hour,
		StoreTimeout:     3 * time.Second,
		RateLimitBackend: "memory",
	}
}

func TestValidate_OK(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_Secrets(t *testing.T) {
	short := validConfig()
	short.JWTSecret = []byte("short")
	err := short.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET must be at least 32 bytes")

	same := validConfig()
	same.JWTRefreshSecret = same.JWTSecret
	err = same.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must differ")
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.DatabaseURL = ""
	cfg.RateLimitBackend = "memcached"
	cfg.StoreTimeout = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "RATE_LIMIT_BACKEND")
	assert.Contains(t, err.Error(), "STORE_TIMEOUT")
}

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("ACCESS_TOKEN_TTL", "900")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg := FromEnv()
	assert.Equal(t, ":9090", cfg.Addr())
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "auth_events", cfg.ESIndex)
	assert.Equal(t, 12, cfg.BcryptCost)
}
