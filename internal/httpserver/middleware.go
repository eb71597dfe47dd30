package httpserver

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/labstack/echo/v4"

	apperrors "github.com/Youpit44/camillamix/internal/platform/errors"
	"github.com/Youpit44/camillamix/internal/platform/logging"
)

const requestIDHeader = "X-Request-ID"

// requestIDMiddleware tags the request context so every log line of the
// request carries request_id.
func requestIDMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get(requestIDHeader)
		if id == "" {
			id = logging.NewRequestID()
		}
		c.Response().Header().Set(requestIDHeader, id)
		ctx := logging.WithRequestID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// ErrorHandlingMiddleware renders structured errors as JSON. Echo's own
// HTTP errors pass through untouched.
func ErrorHandlingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				return err
			}

			structuredErr := apperrors.AsStructuredError(err)
			logError(c, structuredErr)

			if err := c.JSON(structuredErr.HTTPStatus(), structuredErr.ToResponse()); err != nil {
				return fmt.Errorf("failed to write error response: %w", err)
			}
			return nil
		}
	}
}

func logError(c echo.Context, err *apperrors.Error) {
	ctx := c.Request().Context()
	attrs := []any{
		"kind", err.Kind,
		"message", err.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", err.HTTPStatus(),
	}

	for k, v := range err.Context {
		attrs = append(attrs, k, v)
	}
	if err.Cause != nil {
		attrs = append(attrs, "cause", err.Cause)
	}

	switch err.Kind {
	case apperrors.KindInvalidInput:
		slog.InfoContext(ctx, "Rejected request", attrs...)
	case apperrors.KindNotFound:
		slog.InfoContext(ctx, "Not found", attrs...)
	case apperrors.KindAdapter:
		slog.WarnContext(ctx, "DSP adapter error", attrs...)
	default:
		slog.ErrorContext(ctx, "Internal error", attrs...)
	}
}
