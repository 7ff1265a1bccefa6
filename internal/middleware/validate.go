package middleware

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/bilgisen/newsbyte/internal/ai"
	"github.com/bilgisen/newsbyte/internal/logger"
	"github.com/bilgisen/newsbyte/internal/storage"
)

var validate = validator.New()

// ValidationError lists the query fields that failed validation, keyed by
// field name with the failing tag as value.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return "validation failed"
}

// BindQuery parses query parameters into dst and validates its struct tags.
func BindQuery(c *fiber.Ctx, dst any) error {
	if err := c.QueryParser(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid query parameters: "+err.Error())
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		return &ValidationError{Fields: fields}
	}
	return nil
}

// ErrorHandler maps handler errors to JSON responses.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	body := fiber.Map{}

	var fe *fiber.Error
	var ve *ValidationError
	switch {
	case errors.As(err, &fe):
		code = fe.Code
		body["error"] = fe.Message
	case errors.As(err, &ve):
		code = fiber.StatusUnprocessableEntity
		body["error"] = "Invalid query parameters"
		body["fields"] = ve.Fields
	case errors.Is(err, storage.ErrNotFound):
		code = fiber.StatusNotFound
		body["error"] = "News item not found"
	case errors.Is(err, ai.ErrTranscriptTooShort), errors.Is(err, ai.ErrInvalidSummary):
		code = fiber.StatusUnprocessableEntity
		body["error"] = err.Error()
	case errors.Is(err, ai.ErrUnavailable):
		code = fiber.StatusServiceUnavailable
		body["error"] = "Summarization is not configured"
	default:
		body["error"] = http.StatusText(code)
	}

	if code >= fiber.StatusInternalServerError {
		logger.Get().Error().
			Err(err).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", code).
			Msg("HTTP error")
	}

	return c.Status(code).JSON(body)
}
