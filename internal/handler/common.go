// Package handler implements the HTTP endpoints. Handlers translate between
// the JSON surface and the booking services; every rule violation arrives as
// an apperr kind and maps onto one HTTP status here.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/facility-reservation/internal/apperr"
)

// validate checks the `validate` tags on bound request DTOs.
var validate = validator.New()

// getUserID extracts the authenticated user ID injected by the JWT
// middleware. JWT numeric claims decode as float64; string subjects are
// parsed for robustness.
func getUserID(c echo.Context) (uint64, error) {
	switch v := c.Get("user_id").(type) {
	case float64:
		if v > 0 {
			return uint64(v), nil
		}
	case string:
		if id, err := strconv.ParseUint(v, 10, 64); err == nil && id > 0 {
			return id, nil
		}
	case uint64:
		if v > 0 {
			return v, nil
		}
	}
	return 0, errors.New("no authenticated user")
}

// clientAddr returns the caller's network address for rate-limit keying.
func clientAddr(c echo.Context) string {
	if ip := c.RealIP(); ip != "" {
		return ip
	}
	return "unknown"
}

// statusFor maps an error kind onto an HTTP status code.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindAuthentication:
		return http.StatusUnauthorized
	case apperr.KindAuthorization:
		return http.StatusForbidden
	case apperr.KindConflict, apperr.KindCapacityExceeded:
		return http.StatusConflict
	case apperr.KindTransferExpired:
		return http.StatusGone
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as a JSON response. Taxonomy errors surface their
// machine-readable kind and user message; anything else becomes a generic
// internal failure so callers can tell an illegal action from an
// unavailable system.
func writeError(c echo.Context, err error) error {
	var e *apperr.Error
	if errors.As(err, &e) {
		return c.JSON(statusFor(e.Kind), echo.Map{
			"error":   e.Kind.String(),
			"message": e.Message,
		})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{
		"error":   apperr.KindInternal.String(),
		"message": "internal error",
	})
}
