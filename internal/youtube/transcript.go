package youtube

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/bilgisen/newsbyte/internal/logger"
)

// blockMarkers are body fragments YouTube serves instead of captions when it
// throttles a client.
var blockMarkers = []string{"unusual traffic", "blocked", "captcha"}

type timedTextList struct {
	Tracks []struct {
		LangCode string `xml:"lang_code,attr"`
		Name     string `xml:"name,attr"`
	} `xml:"track"`
	Targets []struct {
		LangCode string `xml:"lang_code,attr"`
	} `xml:"target"`
}

type timedTextDoc struct {
	Lines []struct {
		Start    float64 `xml:"start,attr"`
		Duration float64 `xml:"dur,attr"`
		Text     string  `xml:",chardata"`
	} `xml:"text"`
}

// TranscriptClient reads caption tracks from the timedtext endpoint. It does
// not retry: throttling is reported as ErrBlocked so the caller can back off.
type TranscriptClient struct {
	client *resty.Client
	log    *zerolog.Logger
}

// NewTranscriptClient builds a timedtext client.
func NewTranscriptClient(cfg Config) *TranscriptClient {
	cfg = withDefaults(cfg)
	return &TranscriptClient{
		client: resty.New().
			SetBaseURL(cfg.TranscriptBase).
			SetTimeout(cfg.Timeout),
		log: logger.Get(),
	}
}

// Fetch returns the caption segments of the video in the given language.
func (t *TranscriptClient) Fetch(ctx context.Context, videoID, language string) ([]Segment, error) {
	return t.fetch(ctx, map[string]string{"v": videoID, "lang": language})
}

// ListTracks enumerates the caption tracks of a video.
func (t *TranscriptClient) ListTracks(ctx context.Context, videoID string) ([]Track, error) {
	body, err := t.get(ctx, map[string]string{"v": videoID, "type": "list", "tlangs": "1"})
	if err != nil {
		return nil, err
	}

	var list timedTextList
	if err := xml.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("timedtext list %s: %w", videoID, err)
	}
	if len(list.Tracks) == 0 {
		return nil, fmt.Errorf("timedtext list %s: %w", videoID, ErrNotFound)
	}

	translatable := len(list.Targets) > 0
	tracks := make([]Track, 0, len(list.Tracks))
	for _, tr := range list.Tracks {
		tracks = append(tracks, Track{
			VideoID:      videoID,
			LanguageCode: tr.LangCode,
			Name:         tr.Name,
			Translatable: translatable,
		})
	}
	return tracks, nil
}

// Translate fetches the track machine-translated into target.
func (t *TranscriptClient) Translate(ctx context.Context, track Track, target string) ([]Segment, error) {
	if !track.Translatable {
		return nil, fmt.Errorf("timedtext %s/%s is not translatable: %w", track.VideoID, track.LanguageCode, ErrNotFound)
	}
	params := map[string]string{"v": track.VideoID, "lang": track.LanguageCode, "tlang": target}
	if track.Name != "" {
		params["name"] = track.Name
	}
	return t.fetch(ctx, params)
}

// FetchTrack returns the segments of a specific listed track in its own language.
func (t *TranscriptClient) FetchTrack(ctx context.Context, track Track) ([]Segment, error) {
	params := map[string]string{"v": track.VideoID, "lang": track.LanguageCode}
	if track.Name != "" {
		params["name"] = track.Name
	}
	return t.fetch(ctx, params)
}

func (t *TranscriptClient) fetch(ctx context.Context, params map[string]string) ([]Segment, error) {
	body, err := t.get(ctx, params)
	if err != nil {
		return nil, err
	}

	var doc timedTextDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("timedtext %s/%s: %w", params["v"], params["lang"], err)
	}

	segments := make([]Segment, 0, len(doc.Lines))
	for _, line := range doc.Lines {
		text := strings.TrimSpace(html.UnescapeString(line.Text))
		if text == "" {
			continue
		}
		segments = append(segments, Segment{Text: text, Start: line.Start, Duration: line.Duration})
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("timedtext %s/%s: %w", params["v"], params["lang"], ErrNotFound)
	}
	return segments, nil
}

func (t *TranscriptClient) get(ctx context.Context, params map[string]string) ([]byte, error) {
	resp, err := t.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get("/api/timedtext")
	if err != nil {
		return nil, fmt.Errorf("timedtext request failed: %w", err)
	}

	body := resp.Body()
	switch {
	case resp.StatusCode() == http.StatusTooManyRequests || containsBlockMarker(body):
		t.log.Warn().Str("video_id", params["v"]).Int("status", resp.StatusCode()).Msg("Timedtext request blocked")
		return nil, fmt.Errorf("timedtext %s: %w", params["v"], ErrBlocked)
	case resp.StatusCode() == http.StatusNotFound:
		return nil, fmt.Errorf("timedtext %s: %w", params["v"], ErrNotFound)
	case resp.StatusCode() != http.StatusOK:
		return nil, fmt.Errorf("timedtext %s: unexpected status %d", params["v"], resp.StatusCode())
	}

	// an unknown language comes back as 200 with an empty body
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("timedtext %s: %w", params["v"], ErrNotFound)
	}
	return body, nil
}

func containsBlockMarker(body []byte) bool {
	// caption XML never starts with a doctype; only scan HTML pages
	if !bytes.Contains(bytes.ToLower(body[:min(len(body), 512)]), []byte("<html")) {
		return false
	}
	lower := strings.ToLower(string(body))
	for _, marker := range blockMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
