package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/labstack/echo/v4"
)

// ErrForbidden is returned when the admin bearer credential is missing or wrong.
var ErrForbidden = errors.New("forbidden")

// CheckBearer compares an Authorization header value against the master key.
// An unset master key rejects every request.
func CheckBearer(authorization string, masterKey string) error {
	if masterKey == "" {
		return ErrForbidden
	}

	raw, ok := strings.CutPrefix(authorization, "Bearer ")
	if !ok || raw == "" {
		return ErrForbidden
	}

	if subtle.ConstantTimeCompare([]byte(raw), []byte(masterKey)) != 1 {
		return ErrForbidden
	}
	return nil
}

// MasterKey guards the admin routes with the configured master key.
func MasterKey(logger ectologger.Logger, masterKey string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, span := tracing.StartSpan(c.Request().Context(), "middleware.MasterKey")
			defer span.End()

			if err := CheckBearer(c.Request().Header.Get(echo.HeaderAuthorization), masterKey); err != nil {
				logger.WithContext(ctx).WithFields(map[string]any{
					"route":     c.Path(),
					"remote_ip": c.RealIP(),
				}).Warn("admin request rejected")
				return httperror.NewHTTPError(http.StatusForbidden, "Forbidden")
			}

			return next(c)
		}
	}
}
