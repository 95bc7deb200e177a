// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/facility-reservation/internal/handler"
	"github.com/iliyamo/facility-reservation/internal/middleware"
	"github.com/iliyamo/facility-reservation/internal/ratelimit"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the auth collaborator's endpoints. Register and
// login live under /v1/auth without a token; login carries its own
// rate-limit budget since the booking services never see those requests.
// The protected /v1/me endpoint returns the caller's identity and
// eligibility flags.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, loginLimiter *ratelimit.Limiter) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login, middleware.RateLimit(loginLimiter))

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}

// RegisterBooking registers the admission and transfer endpoints. All of
// them require a valid access token; the per-purpose rate limiters run
// inside the services, keyed by the caller's network address.
func RegisterBooking(e *echo.Echo, r *handler.ReservationHandler, t *handler.TransferHandler, jwtSecret string) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))

	g.POST("/reservations", r.Create)
	g.GET("/reservations", r.List)
	g.DELETE("/reservations/:id", r.Cancel)
	g.GET("/dates/:date/capacity", r.Capacity)

	g.POST("/reservations/:id/transfers", t.Create)
	g.POST("/transfers/:id/respond", t.Respond)
	g.GET("/transfers/pending", t.ListPending)
}
