package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bilgisen/newsbyte/internal/logger"
	"github.com/bilgisen/newsbyte/internal/models"
	"github.com/bilgisen/newsbyte/internal/storage"
)

// MinTranscriptChars is the shortest transcript worth summarizing.
const MinTranscriptChars = 50

var (
	ErrTranscriptTooShort = errors.New("ai: transcript too short to summarize")
	ErrUnavailable        = errors.New("ai: summarizer not configured")
)

// Summarizer turns text into a shorter summary.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// SummaryService adds summaries to stored news items. All writes go through
// Store.Upsert so the record is replaced as a whole.
type SummaryService struct {
	store      storage.Store
	summarizer Summarizer
	post       *PostProcessor
	now        func() time.Time
	log        *zerolog.Logger
}

// NewSummaryService builds the service. A nil summarizer makes Summarize
// return ErrUnavailable while Get keeps working.
func NewSummaryService(store storage.Store, summarizer Summarizer) *SummaryService {
	return &SummaryService{
		store:      store,
		summarizer: summarizer,
		post:       NewPostProcessor(),
		now:        time.Now,
		log:        logger.Component("summary"),
	}
}

// Get returns the stored item for a video id.
func (s *SummaryService) Get(ctx context.Context, videoID string) (*models.NewsItem, error) {
	return s.store.Get(ctx, models.VideoURL(videoID))
}

// Summarize returns the item with a summary, generating one unless it already
// exists and force is false. generated reports whether the model was called.
func (s *SummaryService) Summarize(ctx context.Context, videoID string, force bool) (item *models.NewsItem, generated bool, err error) {
	item, err = s.Get(ctx, videoID)
	if err != nil {
		return nil, false, err
	}
	if item.HasSummary() && !force {
		return item, false, nil
	}
	if len(strings.TrimSpace(item.Transcript)) < MinTranscriptChars {
		return nil, false, ErrTranscriptTooShort
	}
	if s.summarizer == nil {
		return nil, false, ErrUnavailable
	}

	start := time.Now()
	raw, err := s.summarizer.Summarize(ctx, item.Transcript)
	if err != nil {
		return nil, false, fmt.Errorf("summarize %s: %w", videoID, err)
	}
	summary, err := s.post.ProcessSummary(raw, item.Transcript)
	if err != nil {
		return nil, false, fmt.Errorf("summarize %s: %w", videoID, err)
	}

	status := models.SummaryCompleted
	if item.HasSummary() {
		status = models.SummaryRegenerated
	}
	created := s.now().UTC()
	item.Summary = summary
	item.SummaryCreatedAt = &created
	item.SummaryStatus = status

	if err := s.store.Upsert(ctx, item); err != nil {
		return nil, false, fmt.Errorf("store summary %s: %w", videoID, err)
	}

	s.log.Info().
		Str("video_id", videoID).
		Str("status", string(status)).
		Int("transcript_chars", len(item.Transcript)).
		Int("summary_chars", len(summary)).
		Dur("duration", time.Since(start)).
		Msg("Summary stored")
	return item, true, nil
}

// BatchRequest selects the stored items SummarizeBatch works through.
type BatchRequest struct {
	ChannelID string
	// Limit caps how many items are processed; zero means DefaultBatchLimit.
	Limit int
	// SkipExisting leaves items that already have a summary alone. When false
	// existing summaries are regenerated.
	SkipExisting bool
}

// DefaultBatchLimit is used when a BatchRequest carries no limit.
const DefaultBatchLimit = 10

// BatchItem is the outcome for one video of a batch run.
type BatchItem struct {
	VideoID string               `json:"video_id"`
	Status  models.SummaryStatus `json:"status,omitempty"`
	Error   string               `json:"error,omitempty"`
}

// BatchResult tallies a batch run. Items lists every processed video.
type BatchResult struct {
	Processed int         `json:"processed"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Skipped   int         `json:"skipped"`
	Items     []BatchItem `json:"items"`
}

// SummarizeBatch summarizes stored items newest first. A failing item is
// recorded and the run moves on; only store and context errors abort it.
func (s *SummaryService) SummarizeBatch(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	if s.summarizer == nil {
		return nil, ErrUnavailable
	}
	if req.Limit <= 0 {
		req.Limit = DefaultBatchLimit
	}

	items, err := s.store.Query(ctx, storage.Query{ChannelID: req.ChannelID})
	if err != nil {
		return nil, fmt.Errorf("batch summarize: %w", err)
	}

	res := &BatchResult{Items: make([]BatchItem, 0, min(req.Limit, len(items)))}
	for i := range items {
		if res.Processed == req.Limit {
			break
		}
		if req.SkipExisting && items[i].HasSummary() {
			res.Skipped++
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		res.Processed++
		entry := BatchItem{VideoID: items[i].VideoID}
		item, _, err := s.Summarize(ctx, items[i].VideoID, !req.SkipExisting)
		if err != nil {
			res.Failed++
			entry.Error = err.Error()
			s.log.Warn().Err(err).Str("video_id", entry.VideoID).Msg("Batch summary failed")
		} else {
			res.Succeeded++
			entry.Status = item.SummaryStatus
		}
		res.Items = append(res.Items, entry)
	}

	s.log.Info().
		Str("channel_id", req.ChannelID).
		Int("processed", res.Processed).
		Int("succeeded", res.Succeeded).
		Int("failed", res.Failed).
		Int("skipped", res.Skipped).
		Msg("Batch summarization finished")
	return res, nil
}

// ClearSummaries removes the summary fields from stored items, keeping the
// records themselves. An empty channel id clears every channel. It returns
// how many records changed.
func (s *SummaryService) ClearSummaries(ctx context.Context, channelID string) (int, error) {
	items, err := s.store.Query(ctx, storage.Query{ChannelID: channelID})
	if err != nil {
		return 0, fmt.Errorf("clear summaries: %w", err)
	}

	cleared := 0
	for i := range items {
		item := &items[i]
		if !item.HasSummary() && item.SummaryCreatedAt == nil && item.SummaryStatus == "" {
			continue
		}
		item.Summary = ""
		item.SummaryCreatedAt = nil
		item.SummaryStatus = ""
		if err := s.store.Upsert(ctx, item); err != nil {
			return cleared, fmt.Errorf("clear summary %s: %w", item.VideoID, err)
		}
		cleared++
	}

	s.log.Warn().Str("channel_id", channelID).Int("cleared", cleared).Msg("Summaries cleared")
	return cleared, nil
}
