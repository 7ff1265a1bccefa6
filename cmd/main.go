package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/bilgisen/newsbyte/internal/ai"
	"github.com/bilgisen/newsbyte/internal/api"
	"github.com/bilgisen/newsbyte/internal/archive"
	"github.com/bilgisen/newsbyte/internal/cache"
	"github.com/bilgisen/newsbyte/internal/config"
	"github.com/bilgisen/newsbyte/internal/feed"
	"github.com/bilgisen/newsbyte/internal/filter"
	"github.com/bilgisen/newsbyte/internal/logger"
	"github.com/bilgisen/newsbyte/internal/retention"
	"github.com/bilgisen/newsbyte/internal/storage"
	"github.com/bilgisen/newsbyte/internal/transcript"
	"github.com/bilgisen/newsbyte/internal/youtube"
)

func main() {
	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.LogLevel,
		Output: cfg.LogFile,
		Pretty: cfg.LogPretty,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v, writing to stdout\n", err)
	}

	log := logger.Get()
	log.Info().
		Str("env", cfg.Env).
		Str("store", cfg.StoreBackend).
		Str("search", cfg.SearchBackend).
		Msg("Starting application...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Redis client")
		}
		defer func() {
			log.Info().Msg("Closing Redis client...")
			if err := redisClient.Close(); err != nil {
				log.Error().Err(err).Msg("Error closing Redis client")
			}
		}()
	}

	store, err := openStore(cfg, redisClient)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer store.Close()

	var memo interface {
		feed.RejectionMemo
		api.MemoClearer
	}
	if redisClient != nil {
		memo = cache.NewRedisMemo(redisClient, cfg.RedisPrefix)
	} else {
		memo = cache.NewMemoryMemo(nil)
	}

	ytCfg := youtube.Config{
		APIKey:         cfg.YouTubeAPIKey,
		APIBase:        cfg.YouTubeAPIBase,
		TranscriptBase: cfg.TranscriptBase,
		Timeout:        cfg.HTTPTimeout,
	}
	dataAPI := youtube.NewClient(ytCfg)

	var search feed.SearchProvider
	switch cfg.SearchBackend {
	case "api":
		search = dataAPI
	case "rss":
		search = youtube.NewFeedSearch(ytCfg)
	default:
		search = feed.NewFallbackSearch(dataAPI, youtube.NewFeedSearch(ytCfg))
	}

	fetcher := transcript.NewFetcher(youtube.NewTranscriptClient(ytCfg), filter.New(), transcript.Config{
		Language:        cfg.TranscriptLanguage,
		MinInterval:     cfg.TranscriptMinInterval,
		JitterMin:       cfg.TranscriptJitterMin,
		JitterMax:       cfg.TranscriptJitterMax,
		BlockBackoffMin: cfg.BlockBackoffMin,
		BlockBackoffMax: cfg.BlockBackoffMax,
		MinWords:        cfg.MinTranscriptWords,
		MinUniqueWords:  filter.DefaultMinUniqueWords,
	})

	retriever := feed.NewRetriever(store, search, feed.NewDurationGate(dataAPI, cfg.MinDuration), fetcher, feed.Config{
		MaxResults:   cfg.SearchMaxResult,
		CacheMaxAge:  cfg.CacheMaxAge,
		FallbackAge:  cfg.CacheFallbackAge,
		SearchWindow: cfg.SearchWindow,
		MinWords:     cfg.MinTranscriptWords,
		CooldownMin:  cfg.CooldownMin,
		CooldownMax:  cfg.CooldownMax,
		RejectionTTL: cfg.RejectionTTL,
	}).WithMemo(memo)

	var summarizer ai.Summarizer
	if cfg.SummariesEnabled() {
		summarizer = ai.NewGeminiClient(ai.GeminiConfig{
			APIKey:    cfg.AIApiKey,
			Model:     cfg.AIModel,
			Timeout:   cfg.AITimeout,
			MaxTokens: cfg.AIMaxTokens,
		})
	} else {
		log.Warn().Msg("AI_API_KEY not set, summaries disabled")
	}

	var archiver retention.Archiver
	if cfg.ArchiveEnabled() {
		r2, err := archive.NewR2(ctx, archive.R2Config{
			Endpoint:  cfg.R2Endpoint,
			AccountID: cfg.R2AccountID,
			AccessKey: cfg.R2AccessKey,
			SecretKey: cfg.R2SecretKey,
			Bucket:    cfg.R2Bucket,
			Prefix:    cfg.R2Prefix,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to configure archive bucket")
		}
		archiver = r2
	}
	sweeper := retention.NewSweeper(store, archiver, cfg.RetentionMaxAge, cfg.RetentionInterval)
	go sweeper.Run(ctx)

	app := api.NewApp(api.NewHandlers(api.Deps{
		Config:    cfg,
		Store:     store,
		Retriever: retriever,
		Summaries: ai.NewSummaryService(store, summarizer),
		Sweeper:   sweeper,
		Memo:      memo,
	}))

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error().Err(err).Msg("Server error")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}

func openStore(cfg *config.Config, redisClient *redis.Client) (storage.Store, error) {
	switch cfg.StoreBackend {
	case "redis":
		return storage.NewRedisStore(redisClient, cfg.RedisPrefix+"news:", nil), nil
	case "memory":
		return storage.NewMemoryStore(nil), nil
	default:
		return storage.OpenSQLite(cfg.SQLitePath, nil)
	}
}
