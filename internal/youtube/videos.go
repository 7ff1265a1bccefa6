package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sosodev/duration"
)

type videosResponse struct {
	Items []struct {
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

// Duration returns the length of a video from its contentDetails.
func (c *Client) Duration(ctx context.Context, videoID string) (time.Duration, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParams(map[string]string{
			"part": "contentDetails",
			"id":   videoID,
			"key":  c.apiKey,
		}).
		Get("/videos")
	if err != nil {
		return 0, fmt.Errorf("youtube videos request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("youtube videos: unexpected status %d for %s", resp.StatusCode(), videoID)
	}

	var result videosResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return 0, fmt.Errorf("youtube videos: decode response: %w", err)
	}
	if len(result.Items) == 0 {
		return 0, fmt.Errorf("youtube videos: %s: %w", videoID, ErrNotFound)
	}

	raw := result.Items[0].ContentDetails.Duration
	if raw == "" {
		return 0, fmt.Errorf("youtube videos: %s has no duration", videoID)
	}

	parsed, err := duration.Parse(raw)
	if err != nil {
		return 0, fmt.Errorf("youtube videos: parse duration %q: %w", raw, err)
	}
	return parsed.ToTimeDuration(), nil
}
