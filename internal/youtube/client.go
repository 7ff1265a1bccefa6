package youtube

import (
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/bilgisen/newsbyte/internal/logger"
)

const (
	DefaultAPIBase        = "https://www.googleapis.com/youtube/v3"
	DefaultTranscriptBase = "https://www.youtube.com"
	maxSearchResults      = 50
)

// Config configures the YouTube clients.
type Config struct {
	APIKey         string
	APIBase        string
	TranscriptBase string
	Timeout        time.Duration
	RetryCount     int
	RetryWait      time.Duration
	RetryMaxWait   time.Duration
}

// Client talks to the YouTube Data API for search and video metadata.
type Client struct {
	client *resty.Client
	apiKey string
	log    *zerolog.Logger
}

// NewClient builds a Data API client. Transient statuses (429, 5xx) are retried.
func NewClient(cfg Config) *Client {
	cfg = withDefaults(cfg)

	client := resty.New().
		SetBaseURL(cfg.APIBase).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(cfg.RetryMaxWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return isRetryableStatus(r.StatusCode())
		})

	return &Client{
		client: client,
		apiKey: cfg.APIKey,
		log:    logger.Get(),
	}
}

func withDefaults(cfg Config) Config {
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	if cfg.TranscriptBase == "" {
		cfg.TranscriptBase = DefaultTranscriptBase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryCount < 0 {
		cfg.RetryCount = 0
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 2 * time.Second
	}
	if cfg.RetryMaxWait <= 0 {
		cfg.RetryMaxWait = 10 * time.Second
	}
	return cfg
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// truncateBody keeps error messages short when an upstream returns an HTML page.
func truncateBody(body []byte) string {
	const limit = 256
	if len(body) > limit {
		return string(body[:limit])
	}
	return string(body)
}
