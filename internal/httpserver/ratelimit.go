package httpserver

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	apperrors "github.com/Youpit44/camillamix/internal/platform/errors"
)

const rateLimiterExpiry = 5 * time.Minute

// RateLimit bounds requests per client IP. Each scope keeps its own
// buckets, so an import burst does not eat into preset saves.
type RateLimit struct {
	Scope     string
	PerSecond float64
	Burst     int
}

func (l RateLimit) enabled() bool {
	return l.PerSecond > 0 && l.Burst > 0
}

// retryAfter is the whole number of seconds until one token refills.
func (l RateLimit) retryAfter() int {
	return int(math.Ceil(1 / l.PerSecond))
}

func (l RateLimit) middleware() echo.MiddlewareFunc {
	if !l.enabled() {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	store := middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(l.PerSecond),
			Burst:     l.Burst,
			ExpiresIn: rateLimiterExpiry,
		},
	)
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return l.Scope + "|" + c.RealIP(), nil
		},
		Store: store,
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			slog.WarnContext(c.Request().Context(), "Rate limit exceeded", "scope", l.Scope, "client", c.RealIP())
			c.Response().Header().Set("Retry-After", strconv.Itoa(l.retryAfter()))
			return c.JSON(http.StatusTooManyRequests, apperrors.ErrorResponse{
				Error:   "rate limit exceeded",
				Kind:    apperrors.KindInvalidInput,
				Context: map[string]any{"scope": l.Scope},
			})
		},
	})
}
