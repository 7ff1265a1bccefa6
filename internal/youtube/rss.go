package youtube

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"github.com/bilgisen/newsbyte/internal/models"
)

// ErrChannelRequired is returned by FeedSearch when no channel scope is given.
var ErrChannelRequired = errors.New("youtube: channel feed search requires a channel id")

// FeedSearch lists a channel's recent uploads from its public Atom feed. It
// needs no API key but ignores the free-text query: every recent upload of
// the channel is a candidate.
type FeedSearch struct {
	client *resty.Client
	parser *gofeed.Parser
}

// NewFeedSearch builds a channel feed search against cfg.TranscriptBase.
func NewFeedSearch(cfg Config) *FeedSearch {
	cfg = withDefaults(cfg)
	return &FeedSearch{
		client: resty.New().
			SetBaseURL(cfg.TranscriptBase).
			SetTimeout(cfg.Timeout),
		parser: gofeed.NewParser(),
	}
}

// Search returns channel uploads published after params.PublishedAfter, newest first.
func (s *FeedSearch) Search(ctx context.Context, params SearchParams) ([]Video, error) {
	if params.ChannelID == "" {
		return nil, ErrChannelRequired
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("channel_id", params.ChannelID).
		Get("/feeds/videos.xml")
	if err != nil {
		return nil, fmt.Errorf("channel feed request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("channel feed %s: unexpected status %d", params.ChannelID, resp.StatusCode())
	}

	feed, err := s.parser.Parse(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("channel feed %s: %w", params.ChannelID, err)
	}

	videos := make([]Video, 0, len(feed.Items))
	for _, item := range feed.Items {
		id := extensionValue(item.Extensions, "yt", "videoId")
		if id == "" {
			id = models.VideoIDFromURL(item.Link)
		}
		if id == "" {
			continue
		}

		var published time.Time
		if item.PublishedParsed != nil {
			published = *item.PublishedParsed
		}
		if !params.PublishedAfter.IsZero() && published.Before(params.PublishedAfter) {
			continue
		}

		channelID := extensionValue(item.Extensions, "yt", "channelId")
		if channelID == "" {
			channelID = params.ChannelID
		}

		video := Video{
			ID:          id,
			Title:       item.Title,
			ChannelID:   channelID,
			PublishedAt: published,
		}
		if len(item.Authors) > 0 && item.Authors[0] != nil {
			video.ChannelTitle = item.Authors[0].Name
		}
		video.Description, video.ThumbnailURL = mediaGroup(item.Extensions)
		if video.ThumbnailURL == "" && item.Image != nil {
			video.ThumbnailURL = item.Image.URL
		}
		videos = append(videos, video)
	}

	sort.SliceStable(videos, func(i, j int) bool {
		return videos[i].PublishedAt.After(videos[j].PublishedAt)
	})
	if params.MaxResults > 0 && len(videos) > params.MaxResults {
		videos = videos[:params.MaxResults]
	}
	return videos, nil
}

func extensionValue(exts ext.Extensions, space, name string) string {
	if exts == nil {
		return ""
	}
	values := exts[space][name]
	if len(values) == 0 {
		return ""
	}
	return values[0].Value
}

// mediaGroup pulls description and thumbnail out of the media:group element.
func mediaGroup(exts ext.Extensions) (description, thumbnail string) {
	if exts == nil {
		return "", ""
	}
	groups := exts["media"]["group"]
	if len(groups) == 0 {
		return "", ""
	}
	group := groups[0]
	if d := group.Children["description"]; len(d) > 0 {
		description = d[0].Value
	}
	if th := group.Children["thumbnail"]; len(th) > 0 {
		thumbnail = th[0].Attrs["url"]
	}
	return description, thumbnail
}
