package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bilgisen/newsbyte/internal/models"
)

var (
	// ErrNotFound is returned by Get when no record exists for the key.
	ErrNotFound = errors.New("storage: news item not found")
	// ErrInvalidItem is returned by Upsert for records that must never be persisted.
	ErrInvalidItem = errors.New("storage: invalid news item")
)

// Clock returns the current time. Stores take one so freshness can be tested.
type Clock func() time.Time

// Query selects cached records, newest first. Zero-valued fields do not filter;
// set fields are combined with AND.
type Query struct {
	MinCachedAt time.Time
	Genres      []models.Genre
	ChannelID   string
	Limit       int
}

// ChannelStats aggregates the cached records of one channel.
type ChannelStats struct {
	ChannelID      string    `json:"channel_id"`
	ChannelTitle   string    `json:"channel_title"`
	VideoCount     int       `json:"video_count"`
	LatestCachedAt time.Time `json:"latest_cached_at"`
}

// Stats summarises the store contents.
type Stats struct {
	Total       int                  `json:"total"`
	Recent      int                  `json:"recent"`
	WithSummary int                  `json:"with_summary"`
	Genres      map[models.Genre]int `json:"genres"`
	Channels    []ChannelStats       `json:"channels"`
}

// Store is the persistent news cache keyed by video_url.
type Store interface {
	// Upsert replaces the whole record for item.VideoURL and stamps CachedAt.
	Upsert(ctx context.Context, item *models.NewsItem) error
	Get(ctx context.Context, videoURL string) (*models.NewsItem, error)
	// IsFresh reports whether a record exists with now-cached_at <= maxAge.
	// The existing record is returned even when stale.
	IsFresh(ctx context.Context, videoURL string, maxAge time.Duration) (bool, *models.NewsItem, error)
	Query(ctx context.Context, q Query) ([]models.NewsItem, error)
	// ListBefore returns records cached before cutoff, oldest first.
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.NewsItem, error)
	// Prune deletes records older than maxAge and returns how many went.
	Prune(ctx context.Context, maxAge time.Duration) (int64, error)
	// DeleteChannel removes a channel's records; an empty id removes everything.
	DeleteChannel(ctx context.Context, channelID string) (int64, error)
	// Stats counts every record; Recent and the channel aggregates only
	// cover records cached at or after since.
	Stats(ctx context.Context, since time.Time) (*Stats, error)
	Ping(ctx context.Context) error
	Close() error
}

// prepare validates an item and stamps it for writing.
func prepare(item *models.NewsItem, now time.Time) error {
	if item == nil {
		return fmt.Errorf("%w: nil item", ErrInvalidItem)
	}
	if item.VideoURL == "" && item.VideoID != "" {
		item.VideoURL = models.VideoURL(item.VideoID)
	}
	if item.VideoID == "" {
		item.VideoID = models.VideoIDFromURL(item.VideoURL)
	}
	if item.VideoURL == "" {
		return fmt.Errorf("%w: missing video url", ErrInvalidItem)
	}
	if item.Transcript == "" {
		return fmt.Errorf("%w: %s has no transcript", ErrInvalidItem, item.VideoURL)
	}
	if !item.Genre.Valid() {
		item.Genre = models.GenreGeneral
	}
	item.CachedAt = now.UTC()
	return nil
}

// isFresh applies the inclusive freshness boundary.
func isFresh(cachedAt, now time.Time, maxAge time.Duration) bool {
	return now.Sub(cachedAt) <= maxAge
}

func matchesQuery(item *models.NewsItem, q Query) bool {
	if !q.MinCachedAt.IsZero() && item.CachedAt.Before(q.MinCachedAt) {
		return false
	}
	if q.ChannelID != "" && item.ChannelID != q.ChannelID {
		return false
	}
	if len(q.Genres) > 0 {
		for _, g := range q.Genres {
			if item.Genre == g {
				return true
			}
		}
		return false
	}
	return true
}

// statsBuilder accumulates Stats for backends that aggregate in Go.
type statsBuilder struct {
	since    time.Time
	stats    Stats
	channels map[string]*ChannelStats
}

func newStatsBuilder(since time.Time) *statsBuilder {
	return &statsBuilder{
		since:    since,
		stats:    Stats{Genres: make(map[models.Genre]int)},
		channels: make(map[string]*ChannelStats),
	}
}

func (b *statsBuilder) add(item *models.NewsItem) {
	b.stats.Total++
	if !item.CachedAt.Before(b.since) {
		b.stats.Recent++
	}
	if item.HasSummary() {
		b.stats.WithSummary++
	}
	b.stats.Genres[item.Genre]++

	if item.ChannelID == "" || item.CachedAt.Before(b.since) {
		return
	}
	cs, ok := b.channels[item.ChannelID]
	if !ok {
		cs = &ChannelStats{ChannelID: item.ChannelID}
		b.channels[item.ChannelID] = cs
	}
	cs.VideoCount++
	if item.CachedAt.After(cs.LatestCachedAt) {
		cs.LatestCachedAt = item.CachedAt
		if item.ChannelTitle != "" {
			cs.ChannelTitle = item.ChannelTitle
		}
	}
	if cs.ChannelTitle == "" {
		cs.ChannelTitle = item.ChannelTitle
	}
}

func (b *statsBuilder) build() *Stats {
	b.stats.Channels = make([]ChannelStats, 0, len(b.channels))
	for _, cs := range b.channels {
		b.stats.Channels = append(b.stats.Channels, *cs)
	}
	sortChannels(b.stats.Channels)
	return &b.stats
}

func sortChannels(channels []ChannelStats) {
	sort.Slice(channels, func(i, j int) bool {
		if !channels[i].LatestCachedAt.Equal(channels[j].LatestCachedAt) {
			return channels[i].LatestCachedAt.After(channels[j].LatestCachedAt)
		}
		return channels[i].ChannelID < channels[j].ChannelID
	})
}

// sortNewest orders items newest first by cached_at, ties broken by key.
func sortNewest(items []models.NewsItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].CachedAt.Equal(items[j].CachedAt) {
			return items[i].CachedAt.After(items[j].CachedAt)
		}
		return items[i].VideoURL < items[j].VideoURL
	})
}

func sortOldest(items []models.NewsItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].CachedAt.Equal(items[j].CachedAt) {
			return items[i].CachedAt.Before(items[j].CachedAt)
		}
		return items[i].VideoURL < items[j].VideoURL
	})
}
