package transcript

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bilgisen/newsbyte/internal/filter"
	"github.com/bilgisen/newsbyte/internal/logger"
	"github.com/bilgisen/newsbyte/internal/utils"
	"github.com/bilgisen/newsbyte/internal/youtube"
)

// Outcome tells why a transcript fetch produced text or did not.
type Outcome int

const (
	Success Outcome = iota
	// NotFound means no caption track could be fetched in any language.
	NotFound
	// Filtered means at least one track was fetched but none was meaningful.
	Filtered
	// Blocked means the upstream throttled us; the fetcher already backed off.
	Blocked
	// Failed covers every other upstream error.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case NotFound:
		return "not_found"
	case Filtered:
		return "filtered"
	case Blocked:
		return "blocked"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Result is the outcome of one Fetch. Text and Language are set only on Success.
type Result struct {
	Outcome  Outcome
	Text     string
	Language string
}

// OK reports whether the result carries a usable transcript.
func (r Result) OK() bool { return r.Outcome == Success }

// Provider is the caption source the fetcher falls back through.
type Provider interface {
	Fetch(ctx context.Context, videoID, language string) ([]youtube.Segment, error)
	ListTracks(ctx context.Context, videoID string) ([]youtube.Track, error)
	FetchTrack(ctx context.Context, track youtube.Track) ([]youtube.Segment, error)
	Translate(ctx context.Context, track youtube.Track, target string) ([]youtube.Segment, error)
}

// Config tunes the fetcher.
type Config struct {
	Language        string
	MinInterval     time.Duration
	JitterMin       time.Duration
	JitterMax       time.Duration
	BlockBackoffMin time.Duration
	BlockBackoffMax time.Duration
	MinWords        int
	MinUniqueWords  int
}

// DefaultConfig returns the production pacing.
func DefaultConfig() Config {
	return Config{
		Language:        "en",
		MinInterval:     2 * time.Second,
		JitterMin:       500 * time.Millisecond,
		JitterMax:       1500 * time.Millisecond,
		BlockBackoffMin: 10 * time.Second,
		BlockBackoffMax: 20 * time.Second,
		MinWords:        filter.DefaultMinWords,
		MinUniqueWords:  filter.DefaultMinUniqueWords,
	}
}

// Fetcher obtains a meaningful transcript for a video, trying the preferred
// language, then every listed track, then machine translation of the
// translatable tracks. It never returns an error.
type Fetcher struct {
	provider Provider
	filter   *filter.ContentFilter
	pacer    *Pacer
	cfg      Config
	sleep    utils.SleepFunc
	log      *zerolog.Logger
}

// NewFetcher builds a fetcher with its own pacer.
func NewFetcher(provider Provider, contentFilter *filter.ContentFilter, cfg Config) *Fetcher {
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	return &Fetcher{
		provider: provider,
		filter:   contentFilter,
		pacer:    NewPacer(cfg.MinInterval, cfg.JitterMin, cfg.JitterMax),
		cfg:      cfg,
		sleep:    utils.Sleep,
		log:      logger.Component("transcript"),
	}
}

// WithSleep replaces every wait the fetcher performs, pacing included.
func (f *Fetcher) WithSleep(sleep utils.SleepFunc) *Fetcher {
	f.sleep = sleep
	f.pacer.WithSleep(sleep)
	return f
}

// attempt tracks what the fallback chain has seen so far.
type attempt struct {
	videoID  string
	filtered bool
	failed   bool
}

// Fetch runs the fallback chain for one video.
func (f *Fetcher) Fetch(ctx context.Context, videoID string) Result {
	if err := f.pacer.Wait(ctx); err != nil {
		return Result{Outcome: Failed}
	}

	a := &attempt{videoID: videoID}
	target := f.cfg.Language

	segments, err := f.provider.Fetch(ctx, videoID, target)
	if res, done := f.consider(ctx, a, segments, err, target); done {
		return res
	}

	tracks, err := f.provider.ListTracks(ctx, videoID)
	if err != nil {
		if isBlocked(err) {
			return f.blocked(ctx, videoID, err)
		}
		f.note(a, err)
		return a.result()
	}

	for _, track := range tracks {
		if track.LanguageCode == target && track.Name == "" {
			continue
		}
		segments, err := f.provider.FetchTrack(ctx, track)
		if res, done := f.consider(ctx, a, segments, err, track.LanguageCode); done {
			return res
		}
	}

	for _, track := range tracks {
		if !track.Translatable || track.LanguageCode == target {
			continue
		}
		segments, err := f.provider.Translate(ctx, track, target)
		if res, done := f.consider(ctx, a, segments, err, track.LanguageCode+"-to-"+target); done {
			return res
		}
	}

	return a.result()
}

// consider inspects one fallback step. done is true when the chain must stop,
// either with a usable transcript or because the upstream blocked us.
func (f *Fetcher) consider(ctx context.Context, a *attempt, segments []youtube.Segment, err error, language string) (Result, bool) {
	if err != nil {
		if isBlocked(err) {
			return f.blocked(ctx, a.videoID, err), true
		}
		f.note(a, err)
		return Result{}, false
	}

	raw := joinSegments(segments)
	if !f.filter.IsMeaningful(raw, f.cfg.MinWords, f.cfg.MinUniqueWords) {
		a.filtered = true
		f.log.Debug().
			Str("video_id", a.videoID).
			Str("language", language).
			Msg("Transcript track rejected as noise")
		return Result{}, false
	}

	return Result{
		Outcome:  Success,
		Text:     f.filter.Clean(raw),
		Language: language,
	}, true
}

func (f *Fetcher) note(a *attempt, err error) {
	if errors.Is(err, youtube.ErrNotFound) {
		return
	}
	a.failed = true
	f.log.Debug().Err(err).Str("video_id", a.videoID).Msg("Transcript attempt failed")
}

func (f *Fetcher) blocked(ctx context.Context, videoID string, err error) Result {
	backoff := utils.Jitter(f.cfg.BlockBackoffMin, f.cfg.BlockBackoffMax)
	f.log.Warn().
		Err(err).
		Str("video_id", videoID).
		Dur("backoff", backoff).
		Msg("Transcript upstream blocked, backing off")
	_ = f.sleep(ctx, backoff)
	return Result{Outcome: Blocked}
}

func (a *attempt) result() Result {
	switch {
	case a.filtered:
		return Result{Outcome: Filtered}
	case a.failed:
		return Result{Outcome: Failed}
	default:
		return Result{Outcome: NotFound}
	}
}

// isBlocked matches the sentinel and, for providers that only report text,
// any error mentioning a block.
func isBlocked(err error) bool {
	return errors.Is(err, youtube.ErrBlocked) || strings.Contains(strings.ToLower(err.Error()), "blocked")
}

func joinSegments(segments []youtube.Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s.Text != "" {
			parts = append(parts, s.Text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}
