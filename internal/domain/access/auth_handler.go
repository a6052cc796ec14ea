package access

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/pharmalife/blister/internal/platform/auth"
	"github.com/pharmalife/blister/internal/platform/validate"
)

// AuthHandler serves login, logout and the current session.
type AuthHandler struct {
	svc         *Service
	tokens      *auth.TokenIssuer
	revocations *auth.TokenRevocationStore
}

func NewAuthHandler(svc *Service, tokens *auth.TokenIssuer, revocations *auth.TokenRevocationStore) *AuthHandler {
	return &AuthHandler{svc: svc, tokens: tokens, revocations: revocations}
}

// RegisterRoutes mounts the handlers on g, normally /auth. loginMiddleware
// wraps only the login route.
func (h *AuthHandler) RegisterRoutes(g *echo.Group, loginMiddleware ...echo.MiddlewareFunc) {
	g.POST("/login", h.Login, loginMiddleware...)
	g.POST("/logout", h.Logout)
	g.GET("/me", h.Me)
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}

type meResponse struct {
	*auth.Session
	Apps []*App `json:"apps"`
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := validate.BindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	logger := zerolog.Ctx(ctx)

	u, err := h.svc.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		logger.Warn().Err(err).Str("username", req.Username).Msg("login failed")
		return httpError(c, err)
	}

	token, sess, err := h.tokens.Issue(auth.Identity{
		UserID:   u.ID,
		Username: u.Username,
		FullName: u.FullName,
		Role:     u.Role,
	})
	if err != nil {
		return httpError(c, err)
	}
	logger.Info().Str("user_id", u.ID.String()).Msg("login")

	return c.JSON(http.StatusOK, loginResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: sess.ExpiresAt,
		User:      u,
	})
}

// Logout revokes the presented token.
func (h *AuthHandler) Logout(c echo.Context) error {
	sess := auth.SessionFromContext(c.Request().Context())
	if sess == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	if h.revocations != nil {
		h.revocations.Revoke(sess.TokenID, sess.ExpiresAt)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the session and the apps the caller may open.
func (h *AuthHandler) Me(c echo.Context) error {
	ctx := c.Request().Context()
	sess := auth.SessionFromContext(ctx)
	if sess == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	var (
		apps []*App
		err  error
	)
	if sess.IsAdmin() {
		apps, err = h.svc.ListApps(ctx)
	} else {
		apps, err = h.svc.UserApps(ctx, sess.UserID)
	}
	if err != nil {
		return httpError(c, err)
	}
	if apps == nil {
		apps = []*App{}
	}
	return c.JSON(http.StatusOK, meResponse{Session: sess, Apps: apps})
}
