package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/bilgisen/newsbyte/internal/middleware"
)

// NewApp builds the fiber app with the shared error handler, middleware
// and every route registered.
func NewApp(h *Handlers) *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:  h.Config.HTTPTimeout,
		IdleTimeout:  2 * h.Config.HTTPTimeout,
		ErrorHandler: middleware.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(middleware.RequestLogger())

	SetupRoutes(app, h)
	return app
}

// SetupRoutes configures all the routes for the application
func SetupRoutes(app *fiber.App, h *Handlers) {
	api := app.Group("/api/v1")

	api.Get("/health", h.HealthCheck)

	// static paths first so they do not match :video_id
	news := api.Group("/news")
	news.Get("/latest", h.LatestNews)
	news.Get("/cached", h.CachedNews)
	news.Get("/channels", h.Channels)
	news.Get("/:video_id", h.GetNews)
	news.Get("/:video_id/summary", h.GetSummary)
	news.Post("/:video_id/summary", h.Summarize)

	admin := api.Group("/admin", middleware.AdminOnly(h.Config.AdminAPIKey))
	admin.Get("/stats", h.AdminStats)
	admin.Delete("/cache", h.ClearCache)
	admin.Post("/prune", h.Prune)
	admin.Post("/summaries/batch", h.BatchSummarize)
	admin.Delete("/summaries", h.ClearSummaries)
}
