// Package bootstrap wires every adapter and service into a runnable
// process: a Dependencies struct built by one constructor, explicit cleanup
// funcs instead of finalizers.
package bootstrap

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"mailbrief/adapter/out/cache"
	"mailbrief/adapter/out/llm"
	"mailbrief/adapter/out/persistence"
	"mailbrief/config"
	"mailbrief/core/port/out"
	"mailbrief/core/scheduler"
	"mailbrief/core/service/classification"
	"mailbrief/core/service/dedupe"
	"mailbrief/core/service/digest"
	"mailbrief/core/service/imapfetch"
	"mailbrief/core/service/pipeline"
	"mailbrief/pkg/logger"
	"mailbrief/pkg/snowflake"
)

const defaultDuplicateCheckDays = 7

// Dependencies holds every constructed collaborator, assembled once at
// startup and handed to the Scheduler.
type Dependencies struct {
	Store      *persistence.Store
	Redis      *redis.Client
	Cache      out.CacheInvalidator
	Fetcher    out.EmailFetcher
	Summarizer out.Summarizer
	Pipeline   *pipeline.Pipeline
	Gate       *scheduler.Gate
	Scheduler  *scheduler.Scheduler
	Log        *logger.Logger
	ZLog       zerolog.Logger
}

// NewDependencies constructs every adapter and service from cfg. The
// returned cleanup func releases the database pool and Redis client; call
// it on shutdown.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	log := logger.New(logger.Config{Level: logger.ParseLevel(cfg.LogLevel), Output: os.Stdout, Service: "mailbrief"})
	zlog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()

	if err := snowflake.Init(snowflakeWorkerID(cfg.WorkerID)); err != nil {
		return nil, nil, fmt.Errorf("bootstrap: init snowflake generator: %w", err)
	}

	store, err := persistence.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: open store: %w", err)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("bootstrap: parse REDIS_URL: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("bootstrap: ping redis: %w", err)
	}

	cacheInvalidator := cache.New(redisClient, log)

	fetcher := imapfetch.New(cfg.AttachmentRoot, zlog.With().Str("component", "imap_fetcher").Logger())

	summarizer := llm.New(llm.Config{
		APIKey:      cfg.SummarizerAPIKey,
		Model:       cfg.SummarizerModel,
		MaxTokens:   cfg.SummarizerMaxTokens,
		Temperature: float32(cfg.SummarizerTemperature),
		Timeout:     secondsToDuration(cfg.SummarizerTimeoutSec),
	}, log)

	classifier := classification.NewClassifier(store)
	dedupeEngine := dedupe.NewEngine(store, defaultDuplicateCheckDays, log)
	assembler := digest.NewAssembler(summarizer)

	p := pipeline.New(store, cacheInvalidator, fetcher, classifier, dedupeEngine, summarizer, assembler, log)

	gate := scheduler.NewGate(cfg.MaxConcurrentUsers, zlog)
	sched := scheduler.New(gate, p, store, zlog)

	cleanup := func() {
		store.Close()
		_ = redisClient.Close()
	}

	return &Dependencies{
		Store:      store,
		Redis:      redisClient,
		Cache:      cacheInvalidator,
		Fetcher:    fetcher,
		Summarizer: summarizer,
		Pipeline:   p,
		Gate:       gate,
		Scheduler:  sched,
		Log:        log,
		ZLog:       zlog,
	}, cleanup, nil
}

func secondsToDuration(seconds int) (d time.Duration) {
	return time.Duration(seconds) * time.Second
}

// snowflakeWorkerID folds the configured WorkerID string into the 10-bit
// range the Snowflake generator requires, so independently-deployed worker
// processes get distinct, stable node IDs without extra coordination.
func snowflakeWorkerID(workerID string) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(workerID))
	return int64(h.Sum32() % 1024)
}
