package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("JWT_SECRET", "0123456789abcdef-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 250, cfg.RateBatchSize)
	assert.Equal(t, 350*time.Millisecond, cfg.RateMinVoteGap)
	assert.Equal(t, 1200*time.Millisecond, cfg.RateNoticeTTL)
	assert.Equal(t, 72*time.Hour, cfg.TokenTTL)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins())
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("RATE_BATCH_SIZE", "50")
	t.Setenv("RATE_MIN_VOTE_GAP", "0s")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.RateBatchSize)
	assert.Equal(t, time.Duration(0), cfg.RateMinVoteGap)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins())
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "0123456789abcdef-secret")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			DatabaseURL:   "postgres://localhost/test",
			JWTSecret:     "0123456789abcdef-secret",
			RateBatchSize: 250,
			TokenTTL:      time.Hour,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"short secret", func(c *Config) { c.JWTSecret = "short" }, "JWT_SECRET"},
		{"zero batch", func(c *Config) { c.RateBatchSize = 0 }, "RATE_BATCH_SIZE"},
		{"negative gap", func(c *Config) { c.RateMinVoteGap = -time.Second }, "RATE_MIN_VOTE_GAP"},
		{"zero token ttl", func(c *Config) { c.TokenTTL = 0 }, "TOKEN_TTL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := validate(&cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
