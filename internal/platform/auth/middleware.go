// Package auth authenticates requests with signed session tokens and gates
// routes by role and app assignment.
package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type JWTConfig struct {
	Tokens      *TokenIssuer
	Revocations *TokenRevocationStore
	// Skipper bypasses authentication. Defaults to AuthSkipper.
	Skipper func(c echo.Context) bool
}

// JWTMiddleware verifies the bearer token and stores the Session in the
// request context.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	skip := cfg.Skipper
	if skip == nil {
		skip = AuthSkipper
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skip(c) {
				return next(c)
			}

			tokenStr, err := bearerToken(c.Request())
			if err != nil {
				return err
			}

			sess, err := cfg.Tokens.Parse(tokenStr)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			if cfg.Revocations != nil && cfg.Revocations.IsRevoked(sess) {
				return echo.NewHTTPError(http.StatusUnauthorized, "token revoked")
			}

			ctx := ContextWithSession(c.Request().Context(), sess)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
	}
	return token, nil
}
