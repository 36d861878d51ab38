package config

import (
	"fmt"
	"time"

	"github.com/Abraxas-365/drugcontent/pkg/logx"
)

type LogConfig struct {
	Level  logx.Level `envconfig:"LEVEL" default:"info"`
	Format string     `envconfig:"FORMAT" default:"console"`
	Color  bool       `envconfig:"COLOR" default:"true"`
	Caller bool       `envconfig:"CALLER" default:"false"`
}

// Logx converts the section into a logger config.
func (c LogConfig) Logx() *logx.Config {
	cfg := logx.DefaultConfig()
	cfg.Level = c.Level
	cfg.EnableColors = c.Color
	cfg.EnableCaller = c.Caller
	if c.Format == string(logx.FormatJSON) {
		cfg.Format = logx.FormatJSON
	}
	return cfg
}

type DatabaseConfig struct {
	Host            string        `envconfig:"HOST" default:"localhost"`
	Port            int           `envconfig:"PORT" default:"5432"`
	User            string        `envconfig:"USER" default:"postgres"`
	Password        string        `envconfig:"PASSWORD" default:"postgres"`
	Name            string        `envconfig:"NAME" default:"drugcontent"`
	SSLMode         string        `envconfig:"SSLMODE" default:"disable"`
	MaxOpenConns    int           `envconfig:"MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"CONN_MAX_LIFETIME" default:"5m"`
}

// DSN returns a lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// URL returns the postgres:// form golang-migrate expects.
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Addr     string `envconfig:"ADDR" default:"localhost:6379"`
	Password string `envconfig:"PASSWORD"`
	DB       int    `envconfig:"DB" default:"0"`
}

type JobxConfig struct {
	EnhancementQueue       string        `envconfig:"ENHANCEMENT_QUEUE" default:"content-enhancement"`
	BatchQueue             string        `envconfig:"BATCH_QUEUE" default:"content-batch"`
	EnhancementConcurrency int           `envconfig:"ENHANCEMENT_CONCURRENCY" default:"3"`
	BatchConcurrency       int           `envconfig:"BATCH_CONCURRENCY" default:"1"`
	PollInterval           time.Duration `envconfig:"POLL_INTERVAL" default:"1s"`
	PromoteInterval        time.Duration `envconfig:"PROMOTE_INTERVAL" default:"1s"`
	ShutdownTimeout        time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	MaxAttempts            int           `envconfig:"MAX_ATTEMPTS" default:"3"`
	RetryBase              time.Duration `envconfig:"RETRY_BASE" default:"1s"`
	KeepCompleted          int           `envconfig:"KEEP_COMPLETED" default:"100"`
	KeepFailed             int           `envconfig:"KEEP_FAILED" default:"50"`
	StalledAfter           time.Duration `envconfig:"STALLED_AFTER" default:"10m"`
	StalledInterval        time.Duration `envconfig:"STALLED_INTERVAL" default:"1m"`
}

type RateLimitConfig struct {
	Key    string        `envconfig:"KEY" default:"content-api"`
	Limit  int           `envconfig:"LIMIT" default:"60"`
	Window time.Duration `envconfig:"WINDOW" default:"60s"`
}

type BreakerConfig struct {
	Name             string        `envconfig:"NAME" default:"content-generation"`
	FailureThreshold int           `envconfig:"FAILURE_THRESHOLD" default:"5"`
	RecoveryTimeout  time.Duration `envconfig:"RECOVERY_TIMEOUT" default:"60s"`
}

type EnhancerConfig struct {
	GenerationTimeout time.Duration `envconfig:"GENERATION_TIMEOUT" default:"30s"`
	RateLimitDelay    time.Duration `envconfig:"RATE_LIMIT_DELAY" default:"24h"`
	RateLimitMaxDelay time.Duration `envconfig:"RATE_LIMIT_MAX_DELAY" default:"168h"`
	BatchItemRetries  int           `envconfig:"BATCH_ITEM_RETRIES" default:"3"`
	SiteName          string        `envconfig:"SITE_NAME" default:"DrugInfo"`
}

type ScannerConfig struct {
	Enabled          bool          `envconfig:"ENABLED" default:"true"`
	MissingSchedule  string        `envconfig:"MISSING_SCHEDULE" default:"0 */6 * * *"`
	OutdatedSchedule string        `envconfig:"OUTDATED_SCHEDULE" default:"0 2 * * *"`
	MissingLimit     int           `envconfig:"MISSING_LIMIT" default:"100"`
	OutdatedLimit    int           `envconfig:"OUTDATED_LIMIT" default:"50"`
	FreshnessDays    int           `envconfig:"FRESHNESS_DAYS" default:"30"`
	MinScore         int           `envconfig:"MIN_SCORE" default:"60"`
	ChunkSize        int           `envconfig:"CHUNK_SIZE" default:"5"`
	ChunkStagger     time.Duration `envconfig:"CHUNK_STAGGER" default:"10s"`
}

type MonitorConfig struct {
	// FailedThreshold must stay below JOBX_KEEP_FAILED or retention trims
	// the failed set before the alarm can fire.
	FailedThreshold int           `envconfig:"FAILED_THRESHOLD" default:"25"`
	StuckAfter      time.Duration `envconfig:"STUCK_AFTER" default:"10m"`
	CheckInterval   time.Duration `envconfig:"CHECK_INTERVAL" default:"5m"`
	AlertInterval   time.Duration `envconfig:"ALERT_INTERVAL" default:"1h"`
	AlertTo         []string      `envconfig:"ALERT_TO"`
}

type AIConfig struct {
	Provider    string  `envconfig:"PROVIDER" default:"openai"`
	Model       string  `envconfig:"MODEL" default:"gpt-4o-mini"`
	APIKey      string  `envconfig:"API_KEY"`
	Temperature float32 `envconfig:"TEMPERATURE" default:"0.3"`
	MaxTokens   int     `envconfig:"MAX_TOKENS" default:"2000"`

	// Azure OpenAI
	AzureEndpoint   string `envconfig:"AZURE_ENDPOINT"`
	AzureAPIVersion string `envconfig:"AZURE_API_VERSION" default:"2024-06-01"`

	// Bedrock uses the default AWS credential chain
	AWSRegion string `envconfig:"AWS_REGION" default:"us-east-1"`
}

type NotifxConfig struct {
	Provider    string `envconfig:"PROVIDER" default:"console"`
	FromAddress string `envconfig:"FROM_ADDRESS" default:"noreply@druginfo.local"`
	FromName    string `envconfig:"FROM_NAME" default:"DrugInfo Jobs"`
	AWSRegion   string `envconfig:"AWS_REGION" default:"us-east-1"`
}

// ArchiveConfig controls where cleaned jobs are written before removal.
// An empty Provider disables archiving.
type ArchiveConfig struct {
	Provider  string `envconfig:"PROVIDER"`
	LocalDir  string `envconfig:"LOCAL_DIR" default:"./data/archive"`
	S3Bucket  string `envconfig:"S3_BUCKET"`
	S3Prefix  string `envconfig:"S3_PREFIX" default:"job-archive"`
	AWSRegion string `envconfig:"AWS_REGION" default:"us-east-1"`
}
