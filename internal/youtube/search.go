package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string    `json:"title"`
			Description  string    `json:"description"`
			ChannelID    string    `json:"channelId"`
			ChannelTitle string    `json:"channelTitle"`
			PublishedAt  time.Time `json:"publishedAt"`
			Thumbnails   struct {
				High struct {
					URL string `json:"url"`
				} `json:"high"`
			} `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

// Search lists videos matching the params via the Data API search endpoint.
// A non-200 response is an error; an empty result is not.
func (c *Client) Search(ctx context.Context, params SearchParams) ([]Video, error) {
	maxResults := params.MaxResults
	if maxResults <= 0 || maxResults > maxSearchResults {
		maxResults = maxSearchResults
	}
	order := params.Order
	if order == "" {
		order = "date"
	}

	query := map[string]string{
		"part":       "snippet",
		"q":          params.Query,
		"type":       "video",
		"maxResults": strconv.Itoa(maxResults),
		"order":      order,
		"safeSearch": "strict",
		"key":        c.apiKey,
	}
	if !params.PublishedAfter.IsZero() {
		query["publishedAfter"] = params.PublishedAfter.UTC().Format(time.RFC3339)
	}
	if params.ChannelID != "" {
		query["channelId"] = params.ChannelID
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParams(query).
		Get("/search")
	if err != nil {
		return nil, fmt.Errorf("youtube search request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("youtube search: unexpected status %d: %s", resp.StatusCode(), truncateBody(resp.Body()))
	}

	var result searchResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("youtube search: decode response: %w", err)
	}

	videos := make([]Video, 0, len(result.Items))
	for _, item := range result.Items {
		// playlists and channels come back without a videoId
		if item.ID.VideoID == "" {
			continue
		}
		videos = append(videos, Video{
			ID:           item.ID.VideoID,
			Title:        item.Snippet.Title,
			Description:  item.Snippet.Description,
			ThumbnailURL: item.Snippet.Thumbnails.High.URL,
			ChannelID:    item.Snippet.ChannelID,
			ChannelTitle: item.Snippet.ChannelTitle,
			PublishedAt:  item.Snippet.PublishedAt,
		})
	}

	c.log.Debug().
		Str("query", params.Query).
		Str("channel_id", params.ChannelID).
		Int("results", len(videos)).
		Msg("YouTube search completed")

	return videos, nil
}
