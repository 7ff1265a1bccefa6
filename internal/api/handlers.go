package api

import (
	"context"
	"regexp"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/bilgisen/newsbyte/internal/ai"
	"github.com/bilgisen/newsbyte/internal/config"
	"github.com/bilgisen/newsbyte/internal/feed"
	"github.com/bilgisen/newsbyte/internal/logger"
	"github.com/bilgisen/newsbyte/internal/middleware"
	"github.com/bilgisen/newsbyte/internal/models"
	"github.com/bilgisen/newsbyte/internal/retention"
	"github.com/bilgisen/newsbyte/internal/storage"
)

const version = "1.0.0"

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// NewsRetriever runs the cache-first retrieval pipeline.
type NewsRetriever interface {
	FetchWithStats(ctx context.Context, req feed.Request) ([]models.NewsItem, feed.RunStats, error)
}

// Summaries reads and generates stored summaries.
type Summaries interface {
	Get(ctx context.Context, videoID string) (*models.NewsItem, error)
	Summarize(ctx context.Context, videoID string, force bool) (*models.NewsItem, bool, error)
	SummarizeBatch(ctx context.Context, req ai.BatchRequest) (*ai.BatchResult, error)
	ClearSummaries(ctx context.Context, channelID string) (int, error)
}

type Sweeper interface {
	SweepOnce(ctx context.Context) (*retention.Result, error)
}

// MemoClearer forgets every remembered rejection.
type MemoClearer interface {
	Clear(ctx context.Context) error
}

// Deps are the services the handlers call. Memo and Sweeper may be nil.
type Deps struct {
	Config    *config.Config
	Store     storage.Store
	Retriever NewsRetriever
	Summaries Summaries
	Sweeper   Sweeper
	Memo      MemoClearer
}

type Handlers struct {
	Deps
	now func() time.Time
}

func NewHandlers(deps Deps) *Handlers {
	return &Handlers{Deps: deps, now: time.Now}
}

type latestQuery struct {
	Query        string `query:"query" validate:"omitempty,max=200"`
	Count        int    `query:"count" validate:"omitempty,min=1,max=50"`
	Minutes      int    `query:"minutes" validate:"omitempty,min=1,max=10080"`
	ChannelID    string `query:"channel_id" validate:"omitempty,max=64"`
	ForceRefresh bool   `query:"force_refresh"`
	IncludeLive  bool   `query:"include_live"`
	CacheHours   int    `query:"cache_hours" validate:"omitempty,min=1,max=168"`
}

type cachedQuery struct {
	ChannelID string `query:"channel_id" validate:"omitempty,max=64"`
	Genre     string `query:"genre" validate:"omitempty,oneof=politics sports technology entertainment crime general"`
	Hours     int    `query:"hours" validate:"omitempty,min=1,max=168"`
	Limit     int    `query:"limit" validate:"omitempty,min=1,max=100"`
}

type channelsQuery struct {
	Hours int `query:"hours" validate:"omitempty,min=1,max=720"`
}

type batchQuery struct {
	ChannelID    string `query:"channel_id" validate:"omitempty,max=64"`
	Limit        int    `query:"limit" validate:"omitempty,min=1,max=50"`
	SkipExisting *bool  `query:"skip_existing"`
}

type cacheDeleteQuery struct {
	ChannelID string `query:"channel_id" validate:"omitempty,max=64"`
	Confirm   bool   `query:"confirm"`
}

// HealthCheck handles GET /api/v1/health
func (h *Handlers) HealthCheck(c *fiber.Ctx) error {
	ctx := c.UserContext()
	body := fiber.Map{
		"status":  "ok",
		"version": version,
		"time":    h.now().UTC().Format(time.RFC3339),
	}

	if err := h.Store.Ping(ctx); err != nil {
		logger.Get().Error().Err(err).Msg("Store ping failed")
		body["status"] = "degraded"
		body["store"] = "unreachable"
		return c.Status(fiber.StatusServiceUnavailable).JSON(body)
	}

	stats, err := h.Store.Stats(ctx, h.now().Add(-h.Config.CacheMaxAge))
	if err != nil {
		return err
	}
	body["store"] = "ok"
	body["cached_items"] = stats.Total
	body["fresh_items"] = stats.Recent
	return c.JSON(body)
}

// LatestNews handles GET /api/v1/news/latest
func (h *Handlers) LatestNews(c *fiber.Ctx) error {
	var q latestQuery
	if err := middleware.BindQuery(c, &q); err != nil {
		return err
	}

	req := feed.Request{
		Query:        q.Query,
		DesiredCount: q.Count,
		TimeWindow:   time.Duration(q.Minutes) * time.Minute,
		ChannelID:    q.ChannelID,
		ForceRefresh: q.ForceRefresh,
		CacheMaxAge:  time.Duration(q.CacheHours) * time.Hour,
		ExcludeLive:  !q.IncludeLive,
	}
	if req.Query == "" {
		req.Query = h.Config.DefaultQuery
	}
	if req.DesiredCount == 0 {
		req.DesiredCount = 10
	}
	if req.ChannelID == "" {
		req.ChannelID = h.Config.DefaultChannel
	}

	items, stats, err := h.Retriever.FetchWithStats(c.UserContext(), req)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"items":      items,
		"count":      len(items),
		"run_id":     stats.RunID,
		"cache_hit":  stats.CacheHit,
		"from_cache": stats.FromCache,
		"backfilled": stats.Backfilled,
		"degraded":   stats.Degraded,
		"rejected":   stats.Rejected,
	})
}

// CachedNews handles GET /api/v1/news/cached. It never calls upstream.
func (h *Handlers) CachedNews(c *fiber.Ctx) error {
	var q cachedQuery
	if err := middleware.BindQuery(c, &q); err != nil {
		return err
	}
	if q.Hours == 0 {
		q.Hours = 24
	}
	if q.Limit == 0 {
		q.Limit = 20
	}

	query := storage.Query{
		MinCachedAt: h.now().Add(-time.Duration(q.Hours) * time.Hour),
		ChannelID:   q.ChannelID,
		Limit:       q.Limit,
	}
	if q.Genre != "" {
		query.Genres = []models.Genre{models.Genre(q.Genre)}
	}

	items, err := h.Store.Query(c.UserContext(), query)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"items": items,
		"count": len(items),
		"hours": q.Hours,
	})
}

// Channels handles GET /api/v1/news/channels
func (h *Handlers) Channels(c *fiber.Ctx) error {
	var q channelsQuery
	if err := middleware.BindQuery(c, &q); err != nil {
		return err
	}
	if q.Hours == 0 {
		q.Hours = 168
	}

	stats, err := h.Store.Stats(c.UserContext(), h.now().Add(-time.Duration(q.Hours)*time.Hour))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"channels": stats.Channels,
		"count":    len(stats.Channels),
	})
}

// GetNews handles GET /api/v1/news/:video_id
func (h *Handlers) GetNews(c *fiber.Ctx) error {
	id, err := videoID(c)
	if err != nil {
		return err
	}
	item, err := h.Summaries.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(item)
}

// Summarize handles POST /api/v1/news/:video_id/summary?force=
func (h *Handlers) Summarize(c *fiber.Ctx) error {
	id, err := videoID(c)
	if err != nil {
		return err
	}
	item, generated, err := h.Summaries.Summarize(c.UserContext(), id, c.QueryBool("force"))
	if err != nil {
		return err
	}

	status := fiber.StatusOK
	if generated {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(summaryBody(item, generated))
}

// GetSummary handles GET /api/v1/news/:video_id/summary
func (h *Handlers) GetSummary(c *fiber.Ctx) error {
	id, err := videoID(c)
	if err != nil {
		return err
	}
	item, err := h.Summaries.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	if !item.HasSummary() {
		return fiber.NewError(fiber.StatusNotFound, "No summary for this video")
	}
	return c.JSON(summaryBody(item, false))
}

// AdminStats handles GET /api/v1/admin/stats
func (h *Handlers) AdminStats(c *fiber.Ctx) error {
	stats, err := h.Store.Stats(c.UserContext(), h.now().Add(-h.Config.CacheMaxAge))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"stats":              stats,
		"cache_max_age":      h.Config.CacheMaxAge.String(),
		"cache_fallback_age": h.Config.CacheFallbackAge.String(),
		"retention_max_age":  h.Config.RetentionMaxAge.String(),
		"store_backend":      h.Config.StoreBackend,
		"search_backend":     h.Config.SearchBackend,
	})
}

// ClearCache handles DELETE /api/v1/admin/cache. Without a channel_id it
// wipes the whole store and the rejection memo, so confirm=true is required.
func (h *Handlers) ClearCache(c *fiber.Ctx) error {
	var q cacheDeleteQuery
	if err := middleware.BindQuery(c, &q); err != nil {
		return err
	}
	if !q.Confirm {
		return fiber.NewError(fiber.StatusBadRequest, "Pass confirm=true to delete cached news")
	}

	ctx := c.UserContext()
	deleted, err := h.Store.DeleteChannel(ctx, q.ChannelID)
	if err != nil {
		return err
	}
	if q.ChannelID == "" && h.Memo != nil {
		if err := h.Memo.Clear(ctx); err != nil {
			return err
		}
	}

	logger.Get().Warn().
		Str("channel_id", q.ChannelID).
		Int64("deleted", deleted).
		Str("ip", c.IP()).
		Msg("Cache cleared")

	return c.JSON(fiber.Map{
		"status":     "deleted",
		"deleted":    deleted,
		"channel_id": q.ChannelID,
	})
}

// BatchSummarize handles POST /api/v1/admin/summaries/batch. skip_existing
// defaults to true.
func (h *Handlers) BatchSummarize(c *fiber.Ctx) error {
	var q batchQuery
	if err := middleware.BindQuery(c, &q); err != nil {
		return err
	}
	req := ai.BatchRequest{
		ChannelID:    q.ChannelID,
		Limit:        q.Limit,
		SkipExisting: q.SkipExisting == nil || *q.SkipExisting,
	}

	res, err := h.Summaries.SummarizeBatch(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

// ClearSummaries handles DELETE /api/v1/admin/summaries. Records are kept;
// only their summaries go. confirm=true is required.
func (h *Handlers) ClearSummaries(c *fiber.Ctx) error {
	var q cacheDeleteQuery
	if err := middleware.BindQuery(c, &q); err != nil {
		return err
	}
	if !q.Confirm {
		return fiber.NewError(fiber.StatusBadRequest, "Pass confirm=true to delete summaries")
	}

	cleared, err := h.Summaries.ClearSummaries(c.UserContext(), q.ChannelID)
	if err != nil {
		return err
	}

	logger.Get().Warn().
		Str("channel_id", q.ChannelID).
		Int("cleared", cleared).
		Str("ip", c.IP()).
		Msg("Summaries cleared")

	return c.JSON(fiber.Map{
		"status":     "cleared",
		"cleared":    cleared,
		"channel_id": q.ChannelID,
	})
}

// Prune handles POST /api/v1/admin/prune
func (h *Handlers) Prune(c *fiber.Ctx) error {
	if h.Sweeper == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "Retention is not configured")
	}
	res, err := h.Sweeper.SweepOnce(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func videoID(c *fiber.Ctx) (string, error) {
	id := c.Params("video_id")
	if !videoIDPattern.MatchString(id) {
		return "", fiber.NewError(fiber.StatusBadRequest, "Invalid video id")
	}
	return id, nil
}

func summaryBody(item *models.NewsItem, generated bool) fiber.Map {
	return fiber.Map{
		"video_id":   item.VideoID,
		"video_url":  item.VideoURL,
		"title":      item.Title,
		"summary":    item.Summary,
		"status":     item.SummaryStatus,
		"created_at": item.SummaryCreatedAt,
		"generated":  generated,
	}
}
