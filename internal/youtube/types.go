package youtube

import (
	"errors"
	"time"
)

var (
	// ErrNotFound means the requested video, metadata or transcript track does not exist.
	ErrNotFound = errors.New("youtube: not found")
	// ErrBlocked means the upstream signalled throttling or an IP block.
	ErrBlocked = errors.New("youtube: request blocked")
)

// Video is one search candidate.
type Video struct {
	ID           string
	Title        string
	Description  string
	ThumbnailURL string
	ChannelID    string
	ChannelTitle string
	PublishedAt  time.Time
}

// SearchParams narrows a video search.
type SearchParams struct {
	Query          string
	PublishedAfter time.Time
	Order          string
	ChannelID      string
	MaxResults     int
}

// Track is one caption track available for a video.
type Track struct {
	VideoID      string
	LanguageCode string
	Name         string
	Translatable bool
}

// Segment is one timed caption line.
type Segment struct {
	Text     string
	Start    float64
	Duration float64
}
