package middleware

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilgisen/newsbyte/internal/ai"
	"github.com/bilgisen/newsbyte/internal/storage"
)

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(data, &body))
	return body
}

func TestAdminOnly(t *testing.T) {
	app := fiber.New()
	app.Get("/admin", AdminOnly("s3cret"), func(c *fiber.Ctx) error { return c.SendString("ok") })
	disabled := fiber.New()
	disabled.Get("/admin", AdminOnly(""), func(c *fiber.Ctx) error { return c.SendString("ok") })

	tests := []struct {
		name   string
		app    *fiber.App
		key    string
		status int
	}{
		{"missing key", app, "", fiber.StatusUnauthorized},
		{"wrong key", app, "nope", fiber.StatusForbidden},
		{"right key", app, "s3cret", fiber.StatusOK},
		{"bearer prefix", app, "Bearer s3cret", fiber.StatusOK},
		{"admin disabled", disabled, "s3cret", fiber.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.key != "" {
				req.Header.Set(APIKeyHeader, tt.key)
			}
			resp, err := tt.app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

type listQuery struct {
	Limit int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Genre string `query:"genre" validate:"omitempty,oneof=politics sports"`
}

func TestBindQueryAndErrorHandler(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/list", func(c *fiber.Ctx) error {
		var q listQuery
		if err := BindQuery(c, &q); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"limit": q.Limit, "genre": q.Genre})
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/list?limit=5&genre=sports", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "sports", decode(t, resp)["genre"])

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/list?limit=500&genre=weather", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	fields := decode(t, resp)["fields"].(map[string]any)
	assert.Equal(t, "max", fields["Limit"])
	assert.Equal(t, "oneof", fields["Genre"])

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/list?limit=abc", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestErrorHandler_DomainErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("get: %w", storage.ErrNotFound), fiber.StatusNotFound},
		{ai.ErrTranscriptTooShort, fiber.StatusUnprocessableEntity},
		{fmt.Errorf("summarize x: %w", ai.ErrInvalidSummary), fiber.StatusUnprocessableEntity},
		{ai.ErrUnavailable, fiber.StatusServiceUnavailable},
		{fiber.ErrTeapot, fiber.StatusTeapot},
		{fmt.Errorf("disk on fire"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
			app.Get("/", func(c *fiber.Ctx) error { return tt.err })

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.NotEmpty(t, decode(t, resp)["error"])
		})
	}
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Use(RequestLogger())
	app.Get("/missing", func(c *fiber.Ctx) error { return storage.ErrNotFound })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
