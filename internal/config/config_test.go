package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("YOUTUBE_API_KEY", "yt-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "auto", cfg.SearchBackend)
	assert.Equal(t, 50, cfg.SearchMaxResult)
	assert.Equal(t, 6*time.Hour, cfg.CacheMaxAge)
	assert.Equal(t, 24*time.Hour, cfg.CacheFallbackAge)
	assert.Equal(t, 7*24*time.Hour, cfg.RetentionMaxAge)
	assert.Equal(t, 10, cfg.MinTranscriptWords)
	assert.Equal(t, 60*time.Second, cfg.MinDuration)
	assert.Equal(t, 2*time.Second, cfg.TranscriptMinInterval)
	assert.False(t, cfg.ArchiveEnabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("YOUTUBE_API_KEY", "yt-key")
	t.Setenv("SEARCH_BACKEND", "rss")
	t.Setenv("DEFAULT_CHANNEL_ID", "UCttspZesZIDEwwpVIgoZtWQ")
	t.Setenv("STORE_BACKEND", "redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/1")
	t.Setenv("CACHE_MAX_AGE", "2h")
	t.Setenv("LOG_PRETTY", "true")
	t.Setenv("SEARCH_MAX_RESULTS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.StoreBackend)
	assert.Equal(t, 2*time.Hour, cfg.CacheMaxAge)
	assert.True(t, cfg.LogPretty)
	assert.Equal(t, 50, cfg.SearchMaxResult, "bad ints fall back to the default")
}

func validConfig() Config {
	return Config{
		Port:               "8080",
		Env:                "test",
		ShutdownTimeout:    time.Second,
		HTTPTimeout:        time.Second,
		LogLevel:           "info",
		YouTubeAPIKey:      "k",
		SearchBackend:      "api",
		SearchMaxResult:    50,
		SearchWindow:       time.Hour,
		TranscriptLanguage: "en",
		MinTranscriptWords: 10,
		CacheMaxAge:        6 * time.Hour,
		CacheFallbackAge:   24 * time.Hour,
		StoreBackend:       "memory",
		RetentionMaxAge:    7 * 24 * time.Hour,
		AITimeout:          time.Minute,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"unknown store", func(c *Config) { c.StoreBackend = "mongo" }, "StoreBackend"},
		{"missing api key", func(c *Config) { c.YouTubeAPIKey = "" }, "YouTubeAPIKey"},
		{"rss without channel", func(c *Config) { c.SearchBackend = "rss" }, "DefaultChannel"},
		{"too many results", func(c *Config) { c.SearchMaxResult = 51 }, "SearchMaxResult"},
		{"fallback shorter than max age", func(c *Config) { c.CacheFallbackAge = time.Hour }, "CacheFallbackAge"},
		{"jitter range inverted", func(c *Config) { c.TranscriptJitterMin = 2 * time.Second }, "TranscriptJitterMax"},
		{"redis without url", func(c *Config) { c.StoreBackend = "redis" }, "REDIS_URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSummariesEnabled(t *testing.T) {
	cfg := validConfig()
	assert.False(t, cfg.SummariesEnabled())

	for _, key := range []string{"test-key", "AIzaSyExample"} {
		cfg.AIApiKey = key
		assert.True(t, cfg.SummariesEnabled(), key)
	}
}
