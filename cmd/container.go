// cmd/container.go
//
// Composition root. Owns infrastructure (DB, Redis, AWS, archive) and wires
// the content pipeline on top of it. This is the only place that knows about
// every package.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Abraxas-365/drugcontent/pkg/ai/llm"
	"github.com/Abraxas-365/drugcontent/pkg/ai/providers/aianthropic"
	"github.com/Abraxas-365/drugcontent/pkg/ai/providers/aiazure"
	"github.com/Abraxas-365/drugcontent/pkg/ai/providers/aibedrock"
	"github.com/Abraxas-365/drugcontent/pkg/ai/providers/aigemini"
	"github.com/Abraxas-365/drugcontent/pkg/ai/providers/aiopenai"
	"github.com/Abraxas-365/drugcontent/pkg/breakerx"
	"github.com/Abraxas-365/drugcontent/pkg/config"
	"github.com/Abraxas-365/drugcontent/pkg/content"
	"github.com/Abraxas-365/drugcontent/pkg/drug"
	"github.com/Abraxas-365/drugcontent/pkg/drug/druginfra"
	"github.com/Abraxas-365/drugcontent/pkg/enhancer"
	"github.com/Abraxas-365/drugcontent/pkg/errx"
	"github.com/Abraxas-365/drugcontent/pkg/fsx"
	"github.com/Abraxas-365/drugcontent/pkg/fsx/fsxlocal"
	"github.com/Abraxas-365/drugcontent/pkg/fsx/fsxs3"
	"github.com/Abraxas-365/drugcontent/pkg/jobx"
	"github.com/Abraxas-365/drugcontent/pkg/jobx/jobxredis"
	"github.com/Abraxas-365/drugcontent/pkg/limitx"
	"github.com/Abraxas-365/drugcontent/pkg/limitx/limitxredis"
	"github.com/Abraxas-365/drugcontent/pkg/logx"
	"github.com/Abraxas-365/drugcontent/pkg/monitor"
	"github.com/Abraxas-365/drugcontent/pkg/notifx"
	"github.com/Abraxas-365/drugcontent/pkg/notifx/notifxconsole"
	"github.com/Abraxas-365/drugcontent/pkg/notifx/notifxses"
	"github.com/Abraxas-365/drugcontent/pkg/scanner"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

// Container holds shared infrastructure and the wired pipeline.
type Container struct {
	Config *config.Config

	// Infrastructure
	DB    *sqlx.DB
	Redis *redis.Client

	// Pipeline
	Store     drug.Store
	Queue     jobx.Queue
	Jobs      *jobx.Client
	Limiter   *limitx.Limiter
	Breakers  *breakerx.Registry
	Processor *enhancer.Processor
	Scanner   *scanner.Scanner
	Monitor   *monitor.Monitor
	Mail      *notifx.Client
	Archive   fsx.FileSystem
}

func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	logx.Info("🔧 Initializing application container...")

	c := &Container{Config: cfg}
	if err := c.initInfrastructure(ctx); err != nil {
		c.Cleanup()
		return nil, err
	}
	if err := c.initPipeline(ctx); err != nil {
		c.Cleanup()
		return nil, err
	}

	logx.Info("✅ Application container initialized")
	return c, nil
}

// ---------------------------------------------------------------------------
// Infrastructure: DB, Redis
// ---------------------------------------------------------------------------

func (c *Container) initInfrastructure(ctx context.Context) error {
	logx.Info("🏗️ Initializing infrastructure...")

	db, err := sqlx.Connect("postgres", c.Config.DB.DSN())
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	db.SetMaxOpenConns(c.Config.DB.MaxOpenConns)
	db.SetMaxIdleConns(c.Config.DB.MaxIdleConns)
	db.SetConnMaxLifetime(c.Config.DB.ConnMaxLifetime)
	c.DB = db
	logx.Info("  ✅ Database connected")

	c.Redis = redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Addr,
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	})
	if err := c.Redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect redis (required for the job queue): %w", err)
	}
	logx.Info("  ✅ Redis connected")
	return nil
}

// ---------------------------------------------------------------------------
// Pipeline: queue, limiter, breaker, generator, scanner, monitor
// ---------------------------------------------------------------------------

func (c *Container) initPipeline(ctx context.Context) error {
	cfg := c.Config
	logx.Info("📦 Wiring content pipeline...")

	c.Store = druginfra.NewPostgresStore(c.DB)

	c.Queue = jobxredis.NewRedisQueue(c.Redis, jobxredis.WithRetention(jobx.Retention{
		KeepCompleted: cfg.Jobx.KeepCompleted,
		KeepFailed:    cfg.Jobx.KeepFailed,
	}))
	c.Jobs = jobx.NewClient(c.Queue,
		jobx.WithQueue(cfg.Jobx.EnhancementQueue, cfg.Jobx.EnhancementConcurrency),
		jobx.WithQueue(cfg.Jobx.BatchQueue, cfg.Jobx.BatchConcurrency),
		jobx.WithPollInterval(cfg.Jobx.PollInterval),
		jobx.WithPromoteInterval(cfg.Jobx.PromoteInterval),
		jobx.WithShutdownTimeout(cfg.Jobx.ShutdownTimeout),
		jobx.WithRetryBase(cfg.Jobx.RetryBase),
		jobx.WithStalledAfter(cfg.Jobx.StalledAfter, cfg.Jobx.StalledInterval),
	)

	c.Limiter = limitx.New(limitxredis.New(c.Redis), limitx.Config{
		Key:    cfg.RateLimit.Key,
		Limit:  cfg.RateLimit.Limit,
		Window: cfg.RateLimit.Window,
	})
	c.Breakers = breakerx.NewRegistry(breakerx.Options{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		RecoveryTimeout:  cfg.Breaker.RecoveryTimeout,
		IsExpected:       enhancer.BreakerExpected,
	})

	generator, err := c.newGenerator(ctx)
	if err != nil {
		return err
	}
	c.Processor = enhancer.NewProcessor(
		c.Store,
		generator,
		content.NewFallback(cfg.Enhancer.SiteName),
		c.Limiter,
		c.Breakers.Get(cfg.Breaker.Name),
		enhancer.Options{
			GenerationTimeout: cfg.Enhancer.GenerationTimeout,
			RateLimitDelay:    cfg.Enhancer.RateLimitDelay,
			RateLimitMaxDelay: cfg.Enhancer.RateLimitMaxDelay,
			BatchItemRetries:  cfg.Enhancer.BatchItemRetries,
			BatchRetryBase:    cfg.Jobx.RetryBase,
		},
	)
	c.Processor.Register(c.Jobs)
	logx.Infof("  ✅ Processor registered (ai provider: %s)", cfg.AI.Provider)

	c.Scanner = scanner.New(c.Store, c.Jobs, scanner.Options{
		EnhancementQueue: cfg.Jobx.EnhancementQueue,
		BatchQueue:       cfg.Jobx.BatchQueue,
		MissingLimit:     cfg.Scanner.MissingLimit,
		OutdatedLimit:    cfg.Scanner.OutdatedLimit,
		Freshness:        time.Duration(cfg.Scanner.FreshnessDays) * 24 * time.Hour,
		MinScore:         cfg.Scanner.MinScore,
		ChunkSize:        cfg.Scanner.ChunkSize,
		ChunkStagger:     cfg.Scanner.ChunkStagger,
	})

	if err := c.initArchive(ctx); err != nil {
		return err
	}
	if err := c.initMail(ctx); err != nil {
		return err
	}

	opts := []monitor.Option{
		monitor.WithLimiter(c.Limiter),
		monitor.WithBreakers(c.Breakers),
		monitor.WithScanner(c.Scanner),
	}
	if c.Archive != nil {
		opts = append(opts, monitor.WithArchive(c.Archive))
	}
	c.Monitor = monitor.New(c.Queue, monitor.Options{
		Queues:          []string{cfg.Jobx.EnhancementQueue, cfg.Jobx.BatchQueue},
		FailedThreshold: cfg.Monitor.FailedThreshold,
		StuckAfter:      cfg.Monitor.StuckAfter,
	}, opts...)

	logx.Info("✅ Pipeline wired")
	return nil
}

// newGenerator picks the chat provider named by AI_PROVIDER. "none" runs
// every job on fallback content.
func (c *Container) newGenerator(ctx context.Context) (content.Generator, error) {
	ai := c.Config.AI
	chatOpts := []llm.Option{
		llm.WithModel(ai.Model),
		llm.WithTemperature(ai.Temperature),
		llm.WithMaxTokens(ai.MaxTokens),
	}

	var client llm.LLM
	switch ai.Provider {
	case "openai":
		client = aiopenai.NewOpenAIProvider(ai.APIKey)

	case "azure":
		opts := []aiazure.ProviderOption{
			aiazure.WithAPIVersion(ai.AzureAPIVersion),
			aiazure.WithDeployment(ai.Model),
		}
		if ai.APIKey == "" {
			cred, err := azidentity.NewDefaultAzureCredential(nil)
			if err != nil {
				return nil, fmt.Errorf("azure credential: %w", err)
			}
			opts = append(opts, aiazure.WithAzureADCredential(cred))
		}
		p, err := aiazure.NewAzureOpenAIProvider(ai.AzureEndpoint, ai.APIKey, opts...)
		if err != nil {
			return nil, err
		}
		client = p

	case "anthropic":
		client = aianthropic.NewAnthropicProvider(ai.APIKey)

	case "gemini":
		p, err := aigemini.NewGeminiProvider(ctx, ai.APIKey)
		if err != nil {
			return nil, err
		}
		client = p

	case "bedrock":
		awsCfg, err := loadAWS(ctx, ai.AWSRegion)
		if err != nil {
			return nil, err
		}
		client = aibedrock.NewBedrockProvider(awsCfg, aibedrock.WithDefaultModel(ai.Model))

	case "none":
		return disabledGenerator{}, nil

	default:
		return nil, fmt.Errorf("unknown AI_PROVIDER %q", ai.Provider)
	}

	return content.NewLLMGenerator(client, content.WithChatOptions(chatOpts...)), nil
}

// disabledGenerator fails every call with a permanent error so the
// processor stores fallback content straight away.
type disabledGenerator struct{}

func (disabledGenerator) Generate(context.Context, drug.Drug, content.Options) (*drug.Content, error) {
	return nil, errx.New("content generation is disabled", errx.TypeValidation)
}

func (c *Container) initArchive(ctx context.Context) error {
	a := c.Config.Archive
	switch a.Provider {
	case "":
		logx.Info("  ⏭️ Job archive disabled")
	case "local":
		fs, err := fsxlocal.New(a.LocalDir)
		if err != nil {
			return err
		}
		c.Archive = fs
		logx.Infof("  ✅ Job archive on disk (path: %s)", fs.Root())
	case "s3":
		if a.S3Bucket == "" {
			return fmt.Errorf("%w: ARCHIVE_S3_BUCKET", config.ErrMissingRequired)
		}
		awsCfg, err := loadAWS(ctx, a.AWSRegion)
		if err != nil {
			return err
		}
		c.Archive = fsxs3.New(s3.NewFromConfig(awsCfg), a.S3Bucket, a.S3Prefix)
		logx.Infof("  ✅ Job archive on S3 (bucket: %s, prefix: %s)", a.S3Bucket, a.S3Prefix)
	default:
		return fmt.Errorf("unknown ARCHIVE_PROVIDER %q (use local or s3)", a.Provider)
	}
	return nil
}

func (c *Container) initMail(ctx context.Context) error {
	n := c.Config.Notifx
	from := n.FromAddress
	if n.FromName != "" {
		from = fmt.Sprintf("%s <%s>", n.FromName, n.FromAddress)
	}

	switch n.Provider {
	case "console":
		c.Mail = notifx.NewClient(notifxconsole.New(), from)
	case "ses":
		awsCfg, err := loadAWS(ctx, n.AWSRegion)
		if err != nil {
			return err
		}
		c.Mail = notifx.NewClient(notifxses.New(ses.NewFromConfig(awsCfg)), from)
	default:
		return fmt.Errorf("unknown NOTIFX_PROVIDER %q (use console or ses)", n.Provider)
	}
	logx.Infof("  ✅ Mail provider: %s", n.Provider)
	return nil
}

func loadAWS(ctx context.Context, region string) (aws.Config, error) {
	cfg, err := awsConfig.LoadDefaultConfig(ctx, awsConfig.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS config: %w", err)
	}
	return cfg, nil
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func (c *Container) Cleanup() {
	logx.Info("🧹 Cleaning up resources...")

	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			logx.Errorf("Error closing database: %v", err)
		} else {
			logx.Info("  ✅ Database connection closed")
		}
	}

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logx.Errorf("Error closing Redis: %v", err)
		} else {
			logx.Info("  ✅ Redis connection closed")
		}
	}
}
