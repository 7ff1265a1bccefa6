package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

type GeminiClient struct {
	client        *resty.Client
	apiKey        string
	model         string
	baseURL       string
	maxTokens     int
	maxInputChars int
}

type geminiRequest struct {
	Contents         []geminiContent   `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// GeminiConfig configures the Gemini summarizer.
type GeminiConfig struct {
	APIKey        string
	Model         string
	BaseURL       string
	Timeout       time.Duration
	MaxTokens     int
	MaxInputChars int
}

func NewGeminiClient(cfg GeminiConfig) *GeminiClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGeminiBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxInputChars <= 0 {
		cfg.MaxInputChars = DefaultMaxInputChars
	}
	return &GeminiClient{
		client:        resty.New().SetTimeout(cfg.Timeout),
		apiKey:        cfg.APIKey,
		model:         cfg.Model,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		maxTokens:     cfg.MaxTokens,
		maxInputChars: cfg.MaxInputChars,
	}
}

// Summarize condenses a transcript into a short prose summary
func (g *GeminiClient) Summarize(ctx context.Context, text string) (string, error) {
	prompt := BuildSummaryPrompt(TruncateInput(text, g.maxInputChars))

	response, err := g.callGeminiAPI(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("error calling Gemini API: %w", err)
	}
	return response, nil
}

func (g *GeminiClient) callGeminiAPI(ctx context.Context, prompt string) (string, error) {
	url := fmt.Sprintf("%s/%s:generateContent", g.baseURL, g.model)

	req := geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{{
				Text: prompt,
			}},
		}},
		GenerationConfig: &generationConfig{Temperature: 0.2, MaxOutputTokens: g.maxTokens},
	}

	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetQueryParam("key", g.apiKey).
		SetBody(req).
		Post(url)
	if err != nil {
		return "", fmt.Errorf("API request failed: %w", err)
	}

	var result geminiResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return "", fmt.Errorf("decode response (status %d): %w", resp.StatusCode(), err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("API error: %s", result.Error.Message)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode())
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	return result.Candidates[0].Content.Parts[0].Text, nil
}
