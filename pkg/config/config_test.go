package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/Abraxas-365/drugcontent/pkg/config"
	"github.com/Abraxas-365/drugcontent/pkg/logx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "content-enhancement", cfg.Jobx.EnhancementQueue)
	assert.Equal(t, 3, cfg.Jobx.EnhancementConcurrency)
	assert.Equal(t, 1, cfg.Jobx.BatchConcurrency)
	assert.Equal(t, 3, cfg.Jobx.MaxAttempts)
	assert.Equal(t, 60, cfg.RateLimit.Limit)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 5, cfg.Breaker.FailureThreshold)
	assert.Equal(t, 30*time.Second, cfg.Enhancer.GenerationTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Enhancer.RateLimitDelay)
	assert.Equal(t, "0 */6 * * *", cfg.Scanner.MissingSchedule)
	assert.Equal(t, 10*time.Minute, cfg.Monitor.StuckAfter)
	assert.Equal(t, logx.LevelInfo, cfg.Log.Level)
}

func TestLoadNestedOverrides(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("JOBX_MAX_ATTEMPTS", "5")
	t.Setenv("RATE_LIMIT_WINDOW", "2m")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("MONITOR_ALERT_TO", "ops@example.com,oncall@example.com")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.DB.Host)
	assert.Equal(t, 5, cfg.Jobx.MaxAttempts)
	assert.Equal(t, 2*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, logx.LevelDebug, cfg.Log.Level)
	assert.Equal(t, []string{"ops@example.com", "oncall@example.com"}, cfg.Monitor.AlertTo)
	assert.Contains(t, cfg.DB.DSN(), "host=db.internal")
}

func TestLoadFromEnvFile(t *testing.T) {
	require.NoError(t, os.WriteFile(".env", []byte("REDIS_ADDR=cache:6380\n"), 0o644))
	defer os.Remove(".env")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
}

func TestValidate(t *testing.T) {
	valid := func() *config.Config {
		cfg, err := config.Load()
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
		errIs  error
	}{
		{"valid", func(*config.Config) {}, nil},
		{"missing db host", func(c *config.Config) { c.DB.Host = "" }, config.ErrMissingRequired},
		{"zero concurrency", func(c *config.Config) { c.Jobx.EnhancementConcurrency = 0 }, config.ErrInvalidValue},
		{"zero limit", func(c *config.Config) { c.RateLimit.Limit = 0 }, config.ErrInvalidValue},
		{"failed threshold at retention cap", func(c *config.Config) { c.Monitor.FailedThreshold = c.Jobx.KeepFailed }, config.ErrInvalidValue},
		{"failed threshold with unlimited retention", func(c *config.Config) {
			c.Jobx.KeepFailed = -1
			c.Monitor.FailedThreshold = 500
		}, nil},
		{"unknown provider", func(c *config.Config) { c.AI.Provider = "mystery" }, config.ErrInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errIs == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.errIs)
		})
	}
}
