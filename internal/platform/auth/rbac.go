package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// RequireRole lets the request through when the caller has one of roles.
// Admins pass every role check.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess := SessionFromContext(c.Request().Context())
			if sess == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if sess.IsAdmin() {
				return next(c)
			}
			for _, r := range roles {
				if sess.Role == r {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// AppAccessChecker answers whether a user has been assigned an app.
type AppAccessChecker interface {
	HasAppAccess(ctx context.Context, userID uuid.UUID, role, appKey string) (bool, error)
}

// RequireApp lets the request through when the caller may open appKey.
// Assignments are looked up per request so revoking one takes effect at once.
func RequireApp(checker AppAccessChecker, appKey string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			sess := SessionFromContext(ctx)
			if sess == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			ok, err := checker.HasAppAccess(ctx, sess.UserID, sess.Role, appKey)
			if err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Str("app_key", appKey).Msg("app access check failed")
				return echo.NewHTTPError(http.StatusInternalServerError, "access check failed")
			}
			if !ok {
				return echo.NewHTTPError(http.StatusForbidden, fmt.Sprintf("no access to app: %s", appKey))
			}
			return next(c)
		}
	}
}
