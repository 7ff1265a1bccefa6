package models

import (
	"regexp"
	"time"
)

// Genre is the best-effort topic bucket derived from transcript keywords.
type Genre string

const (
	GenrePolitics      Genre = "politics"
	GenreSports        Genre = "sports"
	GenreTechnology    Genre = "technology"
	GenreEntertainment Genre = "entertainment"
	GenreCrime         Genre = "crime"
	GenreGeneral       Genre = "general"
)

// Genres lists every genre in classification priority order.
var Genres = []Genre{
	GenrePolitics,
	GenreSports,
	GenreTechnology,
	GenreEntertainment,
	GenreCrime,
	GenreGeneral,
}

// Valid reports whether g is one of the known genres.
func (g Genre) Valid() bool {
	for _, known := range Genres {
		if g == known {
			return true
		}
	}
	return false
}

// SummaryStatus tracks how a stored summary was produced.
type SummaryStatus string

const (
	SummaryCompleted   SummaryStatus = "completed"
	SummaryRegenerated SummaryStatus = "regenerated"
)

const watchURLPrefix = "https://www.youtube.com/watch?v="

var videoIDRE = regexp.MustCompile(`(?:youtube\.com/watch\?(?:.*&)?v=|youtu\.be/)([a-zA-Z0-9_-]{11})`)

// VideoURL builds the canonical watch URL used as the store key.
func VideoURL(videoID string) string {
	return watchURLPrefix + videoID
}

// VideoIDFromURL pulls the 11-char video ID out of any YouTube URL form.
func VideoIDFromURL(rawURL string) string {
	m := videoIDRE.FindStringSubmatch(rawURL)
	if len(m) >= 2 {
		return m[1]
	}
	return ""
}

// NewsItem is one transcribed news video as persisted in the store.
type NewsItem struct {
	VideoID            string    `json:"video_id"`
	VideoURL           string    `json:"video_url"`
	Title              string    `json:"title"`
	Description        string    `json:"description,omitempty"`
	Thumbnail          string    `json:"thumbnail"`
	Transcript         string    `json:"transcript"`
	TranscriptLanguage string    `json:"transcript_language"`
	Genre              Genre     `json:"genre"`
	WordCount          int       `json:"word_count"`
	ChannelID          string    `json:"channel_id,omitempty"`
	ChannelTitle       string    `json:"channel_title,omitempty"`
	PublishedAt        time.Time `json:"published_at,omitempty"`
	CachedAt           time.Time `json:"cached_at"`

	Summary          string        `json:"summary,omitempty"`
	SummaryCreatedAt *time.Time    `json:"summary_created_at,omitempty"`
	SummaryStatus    SummaryStatus `json:"summary_status,omitempty"`
}

// HasSummary reports whether a summary has been stored for the item.
func (n *NewsItem) HasSummary() bool {
	return n.Summary != ""
}
