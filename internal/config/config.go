package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port            string        `json:"port" validate:"required,numeric"`
	Env             string        `json:"env" validate:"oneof=development staging production test"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" validate:"gt=0"`
	HTTPTimeout     time.Duration `json:"http_timeout" validate:"gt=0"`

	// Logging
	LogLevel  string `json:"log_level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	LogFile   string `json:"log_file"`
	LogPretty bool   `json:"log_pretty"`

	// Security
	AdminAPIKey string `json:"-"`

	// YouTube
	YouTubeAPIKey   string        `json:"-" validate:"required"`
	YouTubeAPIBase  string        `json:"youtube_api_base" validate:"omitempty,url"`
	TranscriptBase  string        `json:"transcript_base" validate:"omitempty,url"`
	SearchBackend   string        `json:"search_backend" validate:"oneof=api rss auto"`
	DefaultQuery    string        `json:"default_query"`
	DefaultChannel  string        `json:"default_channel_id" validate:"required_if=SearchBackend rss"`
	SearchMaxResult int           `json:"search_max_results" validate:"min=1,max=50"`
	SearchWindow    time.Duration `json:"search_window" validate:"gt=0"`

	// Transcript pacing
	TranscriptLanguage    string        `json:"transcript_language" validate:"required"`
	TranscriptMinInterval time.Duration `json:"transcript_min_interval" validate:"gte=0"`
	TranscriptJitterMin   time.Duration `json:"transcript_jitter_min" validate:"gte=0"`
	TranscriptJitterMax   time.Duration `json:"transcript_jitter_max" validate:"gtefield=TranscriptJitterMin"`
	BlockBackoffMin       time.Duration `json:"block_backoff_min" validate:"gte=0"`
	BlockBackoffMax       time.Duration `json:"block_backoff_max" validate:"gtefield=BlockBackoffMin"`
	CooldownMin           time.Duration `json:"cooldown_min" validate:"gte=0"`
	CooldownMax           time.Duration `json:"cooldown_max" validate:"gtefield=CooldownMin"`

	// Acceptance
	MinTranscriptWords int           `json:"min_transcript_words" validate:"min=1"`
	MinDuration        time.Duration `json:"min_duration" validate:"gte=0"`

	// Cache horizons
	CacheMaxAge      time.Duration `json:"cache_max_age" validate:"gt=0"`
	CacheFallbackAge time.Duration `json:"cache_fallback_age" validate:"gtefield=CacheMaxAge"`

	// Store
	StoreBackend string        `json:"store_backend" validate:"oneof=sqlite redis memory"`
	SQLitePath   string        `json:"sqlite_path" validate:"required_if=StoreBackend sqlite"`
	RedisURL     string        `json:"-"`
	RedisPrefix  string        `json:"redis_prefix"`
	RejectionTTL time.Duration `json:"rejection_ttl" validate:"gte=0"`

	// Retention
	RetentionMaxAge   time.Duration `json:"retention_max_age" validate:"gt=0"`
	RetentionInterval time.Duration `json:"retention_interval" validate:"gte=0"`

	// CloudFlare R2 Configuration
	R2Endpoint  string `json:"r2_endpoint" validate:"omitempty,url"`
	R2AccessKey string `json:"-"`
	R2SecretKey string `json:"-"`
	R2Bucket    string `json:"r2_bucket"`
	R2AccountID string `json:"r2_account_id"`
	R2Prefix    string `json:"r2_prefix"`

	// AI Configuration
	AIApiKey    string        `json:"-"`
	AIModel     string        `json:"ai_model"`
	AITimeout   time.Duration `json:"ai_timeout" validate:"gt=0"`
	AIMaxTokens int           `json:"ai_max_tokens" validate:"gte=0"`
}

// Load loads configuration from environment variables and validates it
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	cfg := &Config{
		// Server configuration
		Port:            getEnv("PORT", "8080"),
		Env:             getEnv("APP_ENV", "development"),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		HTTPTimeout:     getEnvAsDuration("HTTP_TIMEOUT", 30*time.Second),

		// Logging
		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFile:   getEnv("LOG_FILE", ""),
		LogPretty: getEnvAsBool("LOG_PRETTY", false),

		// Security
		AdminAPIKey: getEnv("ADMIN_API_KEY", ""),

		// YouTube
		YouTubeAPIKey:   getEnv("YOUTUBE_API_KEY", ""),
		YouTubeAPIBase:  getEnv("YOUTUBE_API_BASE", ""),
		TranscriptBase:  getEnv("TRANSCRIPT_BASE", ""),
		SearchBackend:   getEnv("SEARCH_BACKEND", "auto"),
		DefaultQuery:    getEnv("DEFAULT_QUERY", "latest news india"),
		DefaultChannel:  getEnv("DEFAULT_CHANNEL_ID", ""),
		SearchMaxResult: getEnvAsInt("SEARCH_MAX_RESULTS", 50),
		SearchWindow:    getEnvAsDuration("SEARCH_WINDOW", 24*time.Hour),

		// Transcript pacing
		TranscriptLanguage:    getEnv("TRANSCRIPT_LANGUAGE", "en"),
		TranscriptMinInterval: getEnvAsDuration("TRANSCRIPT_MIN_INTERVAL", 2*time.Second),
		TranscriptJitterMin:   getEnvAsDuration("TRANSCRIPT_JITTER_MIN", 500*time.Millisecond),
		TranscriptJitterMax:   getEnvAsDuration("TRANSCRIPT_JITTER_MAX", 1500*time.Millisecond),
		BlockBackoffMin:       getEnvAsDuration("BLOCK_BACKOFF_MIN", 10*time.Second),
		BlockBackoffMax:       getEnvAsDuration("BLOCK_BACKOFF_MAX", 20*time.Second),
		CooldownMin:           getEnvAsDuration("COOLDOWN_MIN", 2*time.Second),
		CooldownMax:           getEnvAsDuration("COOLDOWN_MAX", 4*time.Second),

		// Acceptance
		MinTranscriptWords: getEnvAsInt("MIN_TRANSCRIPT_WORDS", 10),
		MinDuration:        getEnvAsDuration("MIN_DURATION", 60*time.Second),

		// Cache horizons
		CacheMaxAge:      getEnvAsDuration("CACHE_MAX_AGE", 6*time.Hour),
		CacheFallbackAge: getEnvAsDuration("CACHE_FALLBACK_AGE", 24*time.Hour),

		// Store
		StoreBackend: getEnv("STORE_BACKEND", "sqlite"),
		SQLitePath:   getEnv("SQLITE_PATH", "./data/news.db"),
		RedisURL:     getEnv("REDIS_URL", ""),
		RedisPrefix:  getEnv("REDIS_PREFIX", "newsbyte:"),
		RejectionTTL: getEnvAsDuration("REJECTION_TTL", 24*time.Hour),

		// Retention
		RetentionMaxAge:   getEnvAsDuration("RETENTION_MAX_AGE", 7*24*time.Hour),
		RetentionInterval: getEnvAsDuration("RETENTION_INTERVAL", 6*time.Hour),

		// CloudFlare R2 Configuration
		R2Endpoint:  getEnv("R2_ENDPOINT", ""),
		R2AccessKey: getEnv("R2_ACCESS_KEY", ""),
		R2SecretKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2Bucket:    getEnv("R2_BUCKET", ""),
		R2AccountID: getEnv("CLOUDFLARE_ACCOUNT_ID", ""),
		R2Prefix:    getEnv("R2_PREFIX", "newsbyte"),

		// AI Configuration
		AIApiKey:    getEnv("AI_API_KEY", ""),
		AIModel:     getEnv("AI_MODEL", "gemini-1.5-flash"),
		AITimeout:   getEnvAsDuration("AI_TIMEOUT", 60*time.Second),
		AIMaxTokens: getEnvAsInt("AI_MAX_TOKENS", 512),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and the few rules tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.StoreBackend == "redis" && c.RedisURL == "" {
		return fmt.Errorf("invalid configuration: REDIS_URL is required for the redis store")
	}
	return nil
}

// ArchiveEnabled reports whether expired records should be uploaded before pruning.
func (c *Config) ArchiveEnabled() bool {
	return c.R2Bucket != "" && c.R2AccessKey != "" && c.R2SecretKey != ""
}

// SummariesEnabled reports whether an AI key is configured.
func (c *Config) SummariesEnabled() bool {
	return c.AIApiKey != ""
}

// Helper functions for environment variable handling
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultVal int) int {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %d", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsBool(name string, defaultVal bool) bool {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %t", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %v", name, err, defaultVal)
		return defaultVal
	}
	return value
}
