package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "a-test-only-secret-of-sufficient-length"

func TestLoad(t *testing.T) {
	t.Run("默认值加载", func(t *testing.T) {
		t.Setenv("STREAMSHARE_JWT_SECRET", testSecret)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 30*time.Second, cfg.Fetch.TransportTimeout)
		assert.Equal(t, 10*time.Second, cfg.Fetch.PollInterval)
		assert.Equal(t, 30, cfg.Fetch.MaxAttempts)
		assert.Equal(t, 5*time.Minute, cfg.Fetch.AcquireTimeout)
		assert.Equal(t, 8, cfg.Fetch.Workers)
		assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.Empty(t, cfg.Database.Type)
		assert.False(t, cfg.Redis.Enabled)
		assert.Equal(t, "streamshare", cfg.JWT.Issuer)
		assert.Equal(t, 15*time.Minute, cfg.JWT.AccessExpiry)
		assert.Equal(t, 7*24*time.Hour, cfg.JWT.RefreshExpiry)
		assert.Equal(t, 60, cfg.RateLimit.PerMinute)
	})

	t.Run("环境变量覆盖默认值", func(t *testing.T) {
		t.Setenv("STREAMSHARE_JWT_SECRET", testSecret)
		t.Setenv("STREAMSHARE_SERVER_PORT", "9090")
		t.Setenv("STREAMSHARE_FETCH_POLL_INTERVAL", "3s")
		t.Setenv("STREAMSHARE_FETCH_MAX_ATTEMPTS", "5")
		t.Setenv("STREAMSHARE_REDIS_ENABLED", "true")
		t.Setenv("STREAMSHARE_REDIS_ADDRESS", "redis.internal:6380")
		t.Setenv("STREAMSHARE_LOG_LEVEL", "debug")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, 3*time.Second, cfg.Fetch.PollInterval)
		assert.Equal(t, 5, cfg.Fetch.MaxAttempts)
		assert.True(t, cfg.Redis.Enabled)
		assert.Equal(t, "redis.internal:6380", cfg.Redis.Address)
		assert.Equal(t, "debug", cfg.Log.Level)
	})

	t.Run("逗号分隔的列表解析", func(t *testing.T) {
		t.Setenv("STREAMSHARE_JWT_SECRET", testSecret)
		t.Setenv("STREAMSHARE_CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
		t.Setenv("STREAMSHARE_CLASSIFIER_SERVICE_DOMAINS", "Netflix.com, disney.com")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORS.AllowedOrigins)
		// 域名统一小写
		assert.Equal(t, []string{"netflix.com", "disney.com"}, cfg.Classifier.ServiceDomains)
	})

	t.Run("非法时长回退默认值", func(t *testing.T) {
		t.Setenv("STREAMSHARE_JWT_SECRET", testSecret)
		t.Setenv("STREAMSHARE_FETCH_ACQUIRE_TIMEOUT", "not-a-duration")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 5*time.Minute, cfg.Fetch.AcquireTimeout)
	})
}

func TestLoadJWTSecretValidation(t *testing.T) {
	t.Run("拒绝默认密钥", func(t *testing.T) {
		t.Setenv("STREAMSHARE_JWT_SECRET", "change-me-in-production")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "default value")
	})

	t.Run("拒绝过短的密钥", func(t *testing.T) {
		t.Setenv("STREAMSHARE_JWT_SECRET", "too-short")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "32 characters")
	})
}

func TestLoadMaxAttemptsValidation(t *testing.T) {
	t.Setenv("STREAMSHARE_JWT_SECRET", testSecret)
	t.Setenv("STREAMSHARE_FETCH_MAX_ATTEMPTS", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_attempts")
}
