package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/facility-reservation/internal/apperr"
	"github.com/iliyamo/facility-reservation/internal/ratelimit"
)

// RateLimit returns an Echo middleware that charges one unit of the given
// limiter's budget per request, keyed by the client network address. Used on
// unauthenticated routes (login) where the booking services cannot apply
// their own per-purpose limiters. A nil limiter disables the middleware.
func RateLimit(l *ratelimit.Limiter) echo.MiddlewareFunc {
	if l == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error { return next(c) }
		}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if ip == "" {
				ip = "unknown"
			}
			if err := l.Allow(c.Request().Context(), ip); err != nil {
				if apperr.IsKind(err, apperr.KindRateLimited) {
					return c.JSON(http.StatusTooManyRequests, echo.Map{
						"error":   apperr.KindRateLimited.String(),
						"message": "rate limit exceeded",
					})
				}
				return next(c)
			}
			return next(c)
		}
	}
}
