package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var (
	ErrMissingRequired = errors.New("missing required configuration")
	ErrInvalidValue    = errors.New("invalid configuration value")
)

// Config is the full process configuration. Each section reads the
// variables prefixed with its tag, e.g. DB_HOST or JOBX_MAX_ATTEMPTS.
type Config struct {
	Env      string `envconfig:"APP_ENV" default:"development"`
	HTTPPort int    `envconfig:"HTTP_PORT" default:"8080"`

	Log       LogConfig       `envconfig:"LOG"`
	DB        DatabaseConfig  `envconfig:"DB"`
	Redis     RedisConfig     `envconfig:"REDIS"`
	Jobx      JobxConfig      `envconfig:"JOBX"`
	RateLimit RateLimitConfig `envconfig:"RATE_LIMIT"`
	Breaker   BreakerConfig   `envconfig:"BREAKER"`
	Enhancer  EnhancerConfig  `envconfig:"ENHANCER"`
	Scanner   ScannerConfig   `envconfig:"SCANNER"`
	Monitor   MonitorConfig   `envconfig:"MONITOR"`
	AI        AIConfig        `envconfig:"AI"`
	Notifx    NotifxConfig    `envconfig:"NOTIFX"`
	Archive   ArchiveConfig   `envconfig:"ARCHIVE"`
}

// Load reads .env files when present, then the process environment.
func Load() (*Config, error) {
	// Missing files are fine, the shell may already export everything.
	_ = godotenv.Load(".env")
	if cwd, err := os.Getwd(); err == nil {
		_ = godotenv.Load(filepath.Join(cwd, "..", ".env"))
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DB.Host == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DB.Name == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("%w: REDIS_ADDR", ErrMissingRequired)
	}
	if c.Jobx.EnhancementConcurrency < 1 || c.Jobx.BatchConcurrency < 1 {
		return fmt.Errorf("%w: JOBX concurrency must be at least 1", ErrInvalidValue)
	}
	if c.Jobx.MaxAttempts < 1 {
		return fmt.Errorf("%w: JOBX_MAX_ATTEMPTS must be at least 1", ErrInvalidValue)
	}
	if c.RateLimit.Limit < 1 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("%w: RATE_LIMIT_LIMIT and RATE_LIMIT_WINDOW must be positive", ErrInvalidValue)
	}
	if c.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("%w: BREAKER_FAILURE_THRESHOLD must be at least 1", ErrInvalidValue)
	}
	if c.Jobx.KeepFailed >= 0 && c.Monitor.FailedThreshold >= c.Jobx.KeepFailed {
		return fmt.Errorf("%w: MONITOR_FAILED_THRESHOLD (%d) must be below JOBX_KEEP_FAILED (%d)",
			ErrInvalidValue, c.Monitor.FailedThreshold, c.Jobx.KeepFailed)
	}
	if c.Scanner.ChunkSize < 1 {
		return fmt.Errorf("%w: SCANNER_CHUNK_SIZE must be at least 1", ErrInvalidValue)
	}
	switch c.AI.Provider {
	case "openai", "azure", "anthropic", "gemini", "bedrock", "none":
	default:
		return fmt.Errorf("%w: AI_PROVIDER %q", ErrInvalidValue, c.AI.Provider)
	}
	return nil
}
