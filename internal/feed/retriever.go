package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bilgisen/newsbyte/internal/filter"
	"github.com/bilgisen/newsbyte/internal/logger"
	"github.com/bilgisen/newsbyte/internal/models"
	"github.com/bilgisen/newsbyte/internal/storage"
	"github.com/bilgisen/newsbyte/internal/transcript"
	"github.com/bilgisen/newsbyte/internal/utils"
	"github.com/bilgisen/newsbyte/internal/youtube"
)

// Rejection reasons, as logged and memoized.
const (
	ReasonLive            = "live"
	ReasonShort           = "short"
	ReasonNoTranscript    = "no_transcript"
	ReasonFilteredNoise   = "filtered_noise"
	ReasonBlocked         = "blocked"
	ReasonTooShort        = "too_short"
	ReasonMemo            = "memo"
	ReasonChannelMismatch = "channel_mismatch"
)

// TranscriptFetcher returns the transcript outcome for one video.
type TranscriptFetcher interface {
	Fetch(ctx context.Context, videoID string) transcript.Result
}

// RejectionMemo remembers videos that failed a durable check so later runs
// skip them.
type RejectionMemo interface {
	IsRejected(ctx context.Context, videoID string) (bool, error)
	MarkRejected(ctx context.Context, videoID, reason string, ttl time.Duration) error
}

// Config holds the retriever defaults. Request fields override the
// per-request ones.
type Config struct {
	MaxResults   int
	CacheMaxAge  time.Duration
	FallbackAge  time.Duration
	SearchWindow time.Duration
	MinWords     int
	CooldownMin  time.Duration
	CooldownMax  time.Duration
	RejectionTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxResults:   50,
		CacheMaxAge:  6 * time.Hour,
		FallbackAge:  24 * time.Hour,
		SearchWindow: 24 * time.Hour,
		MinWords:     filter.DefaultMinWords,
		CooldownMin:  2 * time.Second,
		CooldownMax:  4 * time.Second,
		RejectionTTL: 24 * time.Hour,
	}
}

// Request describes one fetch run.
type Request struct {
	Query        string
	DesiredCount int
	TimeWindow   time.Duration
	ChannelID    string
	ForceRefresh bool
	CacheMaxAge  time.Duration
	ExcludeLive  bool
	MinWords     int
}

// RunStats is what one Fetch did, as logged at the end of the run.
type RunStats struct {
	RunID           string
	Accepted        int
	FromCache       int
	TranscriptCalls int
	Backfilled      int
	CacheHit        bool
	Degraded        bool
	Rejected        map[string]int
}

// Retriever turns a query into a cache-consistent list of news items. It
// serves fresh store records when it can, and otherwise walks search
// candidates one at a time through the live, duration and transcript gates.
type Retriever struct {
	store       storage.Store
	search      SearchProvider
	gate        *DurationGate
	transcripts TranscriptFetcher
	filter      *filter.ContentFilter
	parser      *Parser
	memo        RejectionMemo
	cfg         Config
	now         func() time.Time
	sleep       utils.SleepFunc
	log         *zerolog.Logger
}

func NewRetriever(store storage.Store, search SearchProvider, gate *DurationGate, transcripts TranscriptFetcher, cfg Config) *Retriever {
	defaults := DefaultConfig()
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = defaults.MaxResults
	}
	if cfg.CacheMaxAge <= 0 {
		cfg.CacheMaxAge = defaults.CacheMaxAge
	}
	if cfg.FallbackAge < cfg.CacheMaxAge {
		cfg.FallbackAge = max(defaults.FallbackAge, cfg.CacheMaxAge)
	}
	if cfg.SearchWindow <= 0 {
		cfg.SearchWindow = defaults.SearchWindow
	}
	if cfg.MinWords <= 0 {
		cfg.MinWords = defaults.MinWords
	}
	if cfg.RejectionTTL <= 0 {
		cfg.RejectionTTL = defaults.RejectionTTL
	}

	return &Retriever{
		store:       store,
		search:      search,
		gate:        gate,
		transcripts: transcripts,
		filter:      filter.New(),
		parser:      NewParser(),
		cfg:         cfg,
		now:         time.Now,
		sleep:       utils.Sleep,
		log:         logger.Component("retriever"),
	}
}

// WithMemo enables the rejection memo. A nil memo leaves it disabled.
func (r *Retriever) WithMemo(memo RejectionMemo) *Retriever {
	r.memo = memo
	return r
}

func (r *Retriever) WithClock(now func() time.Time) *Retriever {
	r.now = now
	return r
}

// WithSleep replaces the inter-item cooldown wait.
func (r *Retriever) WithSleep(sleep utils.SleepFunc) *Retriever {
	r.sleep = sleep
	return r
}

// run carries the per-request state of one Fetch.
type run struct {
	req     Request
	maxAge  time.Duration
	minWord int
	now     time.Time
	stats   RunStats
	log     zerolog.Logger
	seen    map[string]struct{}
	results []models.NewsItem
}

func (rn *run) accept(item models.NewsItem) {
	rn.seen[item.VideoURL] = struct{}{}
	rn.results = append(rn.results, item)
}

func (rn *run) full() bool { return len(rn.results) >= rn.req.DesiredCount }

// Fetch returns at most req.DesiredCount items. Upstream failures only
// shorten the list; a store failure aborts the run and is returned.
func (r *Retriever) Fetch(ctx context.Context, req Request) ([]models.NewsItem, error) {
	items, _, err := r.FetchWithStats(ctx, req)
	return items, err
}

// FetchWithStats is Fetch plus the run's counters.
func (r *Retriever) FetchWithStats(ctx context.Context, req Request) ([]models.NewsItem, RunStats, error) {
	start := time.Now()
	rn := r.newRun(req)
	defer func() {
		r.logSummary(rn, time.Since(start))
	}()

	if req.DesiredCount <= 0 {
		return []models.NewsItem{}, rn.stats, nil
	}

	if !req.ForceRefresh {
		cached, err := r.store.Query(ctx, storage.Query{
			MinCachedAt: rn.now.Add(-rn.maxAge),
			ChannelID:   req.ChannelID,
			Limit:       req.DesiredCount,
		})
		if err != nil {
			return nil, rn.stats, fmt.Errorf("cache lookup: %w", err)
		}
		if len(cached) >= req.DesiredCount {
			rn.stats.CacheHit = true
			rn.stats.FromCache = len(cached)
			rn.results = cached
			return cached, rn.stats, nil
		}
	}

	window := req.TimeWindow
	if window <= 0 {
		window = r.cfg.SearchWindow
	}
	videos, err := r.search.Search(ctx, youtube.SearchParams{
		Query:          req.Query,
		PublishedAfter: rn.now.Add(-window),
		Order:          "date",
		ChannelID:      req.ChannelID,
		MaxResults:     max(r.cfg.MaxResults, req.DesiredCount),
	})
	if err != nil {
		rn.stats.Degraded = true
		rn.log.Warn().Err(err).Msg("Search failed, serving from cache")
		if err := r.backfill(ctx, rn); err != nil {
			return nil, rn.stats, err
		}
		return rn.results, rn.stats, nil
	}

	candidates, errs := r.parser.NormalizeCandidates(videos)
	if len(errs) > 0 {
		rn.log.Debug().Errs("candidate_errors", errs).Msg("Dropped malformed search results")
	}
	rn.log.Debug().Int("candidates", len(candidates)).Msg("Search returned candidates")

	for _, v := range candidates {
		if rn.full() {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, rn.stats, err
		}

		fetched, err := r.process(ctx, rn, v)
		if err != nil {
			return nil, rn.stats, err
		}
		if fetched && !rn.full() {
			if err := r.sleep(ctx, utils.Jitter(r.cfg.CooldownMin, r.cfg.CooldownMax)); err != nil {
				return nil, rn.stats, err
			}
		}
	}

	if err := r.backfill(ctx, rn); err != nil {
		return nil, rn.stats, err
	}
	return rn.results, rn.stats, nil
}

func (r *Retriever) newRun(req Request) *run {
	maxAge := req.CacheMaxAge
	if maxAge <= 0 {
		maxAge = r.cfg.CacheMaxAge
	}
	minWords := req.MinWords
	if minWords <= 0 {
		minWords = r.cfg.MinWords
	}

	runID := uuid.NewString()
	return &run{
		req:     req,
		maxAge:  maxAge,
		minWord: minWords,
		now:     r.now(),
		stats:   RunStats{RunID: runID, Rejected: make(map[string]int)},
		log: r.log.With().
			Str("run_id", runID).
			Str("query", req.Query).
			Str("channel_id", req.ChannelID).
			Logger(),
		seen: make(map[string]struct{}),
	}
}

// process runs one candidate through the pipeline. fetched reports whether a
// new transcript was stored, which is what the cooldown is keyed on.
func (r *Retriever) process(ctx context.Context, rn *run, v youtube.Video) (fetched bool, err error) {
	videoURL := models.VideoURL(v.ID)
	if _, dup := rn.seen[videoURL]; dup {
		return false, nil
	}

	if rn.req.ChannelID != "" && v.ChannelID != "" && v.ChannelID != rn.req.ChannelID {
		r.reject(ctx, rn, v.ID, ReasonChannelMismatch, false)
		return false, nil
	}

	fresh, existing, err := r.store.IsFresh(ctx, videoURL, rn.maxAge)
	if err != nil {
		return false, fmt.Errorf("freshness check %s: %w", videoURL, err)
	}
	// a record stored under another channel is never served for this scope
	if fresh && (rn.req.ChannelID == "" || existing.ChannelID == rn.req.ChannelID) {
		rn.stats.FromCache++
		rn.accept(*existing)
		return false, nil
	}

	if r.memo != nil {
		rejected, err := r.memo.IsRejected(ctx, v.ID)
		if err != nil {
			rn.log.Warn().Err(err).Str("video_id", v.ID).Msg("Rejection memo unavailable")
		} else if rejected {
			r.reject(ctx, rn, v.ID, ReasonMemo, false)
			return false, nil
		}
	}

	if rn.req.ExcludeLive && r.filter.IsLive(v.Title, v.Description) {
		r.reject(ctx, rn, v.ID, ReasonLive, false)
		return false, nil
	}

	if r.gate.IsShort(ctx, v.ID) {
		r.reject(ctx, rn, v.ID, ReasonShort, true)
		return false, nil
	}

	rn.stats.TranscriptCalls++
	res := r.transcripts.Fetch(ctx, v.ID)
	switch res.Outcome {
	case transcript.Success:
	case transcript.Blocked:
		r.reject(ctx, rn, v.ID, ReasonBlocked, false)
		return false, nil
	case transcript.Filtered:
		r.reject(ctx, rn, v.ID, ReasonFilteredNoise, true)
		return false, nil
	case transcript.NotFound:
		r.reject(ctx, rn, v.ID, ReasonNoTranscript, true)
		return false, nil
	default:
		r.reject(ctx, rn, v.ID, ReasonNoTranscript, false)
		return false, nil
	}

	wordCount := filter.WordCount(res.Text)
	if wordCount < rn.minWord {
		r.reject(ctx, rn, v.ID, ReasonTooShort, true)
		return false, nil
	}

	item := models.NewsItem{
		VideoID:            v.ID,
		VideoURL:           videoURL,
		Title:              v.Title,
		Description:        v.Description,
		Thumbnail:          v.ThumbnailURL,
		Transcript:         res.Text,
		TranscriptLanguage: res.Language,
		Genre:              filter.ClassifyGenre(res.Text),
		WordCount:          wordCount,
		ChannelID:          v.ChannelID,
		ChannelTitle:       v.ChannelTitle,
		PublishedAt:        v.PublishedAt,
	}
	if item.ChannelID == "" {
		item.ChannelID = rn.req.ChannelID
	}
	// a refetch of unchanged text keeps the summary written for it
	if existing != nil && existing.Transcript == item.Transcript && existing.HasSummary() {
		item.Summary = existing.Summary
		item.SummaryCreatedAt = existing.SummaryCreatedAt
		item.SummaryStatus = existing.SummaryStatus
	}

	if err := r.store.Upsert(ctx, &item); err != nil {
		return false, fmt.Errorf("store %s: %w", videoURL, err)
	}
	rn.stats.Accepted++
	rn.accept(item)
	rn.log.Debug().
		Str("video_id", v.ID).
		Str("genre", string(item.Genre)).
		Str("language", item.TranscriptLanguage).
		Int("word_count", wordCount).
		Msg("Accepted news item")
	return true, nil
}

func (r *Retriever) reject(ctx context.Context, rn *run, videoID, reason string, memoize bool) {
	rn.stats.Rejected[reason]++
	rn.log.Debug().Str("video_id", videoID).Str("reason", reason).Msg("Rejected candidate")

	if !memoize || r.memo == nil {
		return
	}
	if err := r.memo.MarkRejected(ctx, videoID, reason, r.cfg.RejectionTTL); err != nil {
		rn.log.Warn().Err(err).Str("video_id", videoID).Msg("Failed to memoize rejection")
	}
}

// backfill tops up the results from the store within the fallback window.
func (r *Retriever) backfill(ctx context.Context, rn *run) error {
	need := rn.req.DesiredCount - len(rn.results)
	if need <= 0 {
		return nil
	}

	cached, err := r.store.Query(ctx, storage.Query{
		MinCachedAt: rn.now.Add(-max(r.cfg.FallbackAge, rn.maxAge)),
		ChannelID:   rn.req.ChannelID,
		Limit:       rn.req.DesiredCount + len(rn.results),
	})
	if err != nil {
		return fmt.Errorf("backfill: %w", err)
	}

	for _, item := range cached {
		if rn.full() {
			break
		}
		if _, dup := rn.seen[item.VideoURL]; dup {
			continue
		}
		rn.stats.Backfilled++
		rn.accept(item)
	}
	return nil
}

func (r *Retriever) logSummary(rn *run, elapsed time.Duration) {
	rejected := zerolog.Dict()
	for reason, n := range rn.stats.Rejected {
		rejected.Int(reason, n)
	}
	rn.log.Info().
		Int("desired", rn.req.DesiredCount).
		Int("returned", len(rn.results)).
		Int("accepted", rn.stats.Accepted).
		Int("from_cache", rn.stats.FromCache).
		Int("transcript_calls", rn.stats.TranscriptCalls).
		Int("backfilled", rn.stats.Backfilled).
		Bool("cache_hit", rn.stats.CacheHit).
		Bool("degraded", rn.stats.Degraded).
		Dict("rejected", rejected).
		Dur("duration", elapsed).
		Msg("News retrieval finished")
}
