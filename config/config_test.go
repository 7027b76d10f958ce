package config

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DATABASE_URL", "file::memory:")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("AUTH_URL", "https://project.auth.example.com/")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://shop.example.com,https://admin.example.com")
	t.Setenv("RATE_LIMIT_RPS", "2.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.GoEnv)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, "https://project.auth.example.com/auth/v1", cfg.AuthJWTIssuer)
	assert.Equal(t, "authenticated", cfg.AuthJWTAudience)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, []string{"https://shop.example.com", "https://admin.example.com"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.Equal(t, "guest_id", cfg.GuestCookieName)
	assert.Same(t, cfg, GetConfig())
	assert.False(t, cfg.UsesS3())
	assert.Empty(t, cfg.EnvFile, "no dotenv file exists in the test directory")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError bool
	}{
		{"test config is valid", func(c *Config) {}, false},
		{"missing database url", func(c *Config) { c.DatabaseURL = "" }, true},
		{"unknown driver", func(c *Config) { c.DatabaseDriver = "oracle" }, true},
		{"production without jwt secret", func(c *Config) { c.GoEnv = "production"; c.AuthJWTSecret = "" }, true},
		{"production with secrets", func(c *Config) { c.GoEnv = "production" }, false},
		{"zero rate limit", func(c *Config) { c.RateLimitRPS = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewTestConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEnvironmentHelpers(t *testing.T) {
	cfg := &Config{GoEnv: "production"}
	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.IsTest())
	assert.False(t, cfg.IsDevelopment())

	cfg.GoEnv = "development"
	assert.True(t, cfg.IsDevelopment())
}

func TestNewLogger(t *testing.T) {
	cfg := NewTestConfig()
	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.NotNil(t, logger)

	cfg.LogLevel = "loud"
	_, err = NewLogger(cfg)
	assert.Error(t, err)
}

func TestConnectRedis(t *testing.T) {
	cfg := NewTestConfig()

	client, err := ConnectRedis(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, client, "no address means no client")

	mr := miniredis.RunT(t)
	cfg.RedisAddr = mr.Addr()
	client, err = ConnectRedis(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, client)
	defer client.Close()

	assert.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())

	mr.Close()
	_, err = ConnectRedis(context.Background(), cfg)
	assert.Error(t, err)
}
