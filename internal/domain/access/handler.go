package access

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/pharmalife/blister/internal/platform/auth"
	"github.com/pharmalife/blister/internal/platform/validate"
	"github.com/pharmalife/blister/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// User and app administration – admin only
	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/users", h.ListUsers)
	admin.POST("/users", h.CreateUser)
	admin.GET("/users/:id", h.GetUser)
	admin.PUT("/users/:id", h.UpdateUser)
	admin.DELETE("/users/:id", h.DeleteUser)
	admin.PUT("/users/:id/password", h.ChangePassword)
	admin.GET("/users/:id/apps", h.GetUserApps)
	admin.PUT("/users/:id/apps/:appId", h.AssignApp)
	admin.DELETE("/users/:id/apps/:appId", h.RemoveApp)
	admin.GET("/apps", h.ListApps)
	admin.POST("/apps", h.CreateApp)
}

// httpError maps service errors onto HTTP responses.
func httpError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrAppNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrUsernameTaken), errors.Is(err, ErrAppKeyTaken):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	zerolog.Ctx(c.Request().Context()).Error().Err(err).Msg("access request failed")
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
}

func parseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// -- Users --

type createUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	FullName string `json:"full_name" validate:"required,max=200"`
	Role     string `json:"role" validate:"omitempty,oneof=admin user"`
}

type updateUserRequest struct {
	FullName *string `json:"full_name" validate:"omitempty,min=1,max=200"`
	Role     *string `json:"role" validate:"omitempty,oneof=admin user"`
	IsActive *bool   `json:"is_active"`
}

type passwordRequest struct {
	Password string `json:"password" validate:"required,min=6,max=72"`
}

func (h *Handler) ListUsers(c echo.Context) error {
	pg := pagination.FromContext(c)
	users, total, err := h.svc.ListUsers(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(c, err)
	}
	if users == nil {
		users = []*User{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(users, total, pg.Limit, pg.Offset))
}

func (h *Handler) CreateUser(c echo.Context) error {
	var req createUserRequest
	if err := validate.BindAndValidate(c, &req); err != nil {
		return err
	}
	u, err := h.svc.CreateUser(c.Request().Context(), CreateUserInput{
		Username: req.Username,
		Password: req.Password,
		FullName: req.FullName,
		Role:     req.Role,
	})
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) GetUser(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	u, err := h.svc.GetUser(c.Request().Context(), id)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) UpdateUser(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req updateUserRequest
	if err := validate.BindAndValidate(c, &req); err != nil {
		return err
	}
	if id == auth.UserIDFromContext(c.Request().Context()) {
		if req.IsActive != nil && !*req.IsActive {
			return echo.NewHTTPError(http.StatusBadRequest, "cannot deactivate your own account")
		}
		if req.Role != nil && *req.Role != auth.RoleAdmin {
			return echo.NewHTTPError(http.StatusBadRequest, "cannot remove your own admin role")
		}
	}
	u, err := h.svc.UpdateUser(c.Request().Context(), id, UpdateUserInput{
		FullName: req.FullName,
		Role:     req.Role,
		IsActive: req.IsActive,
	})
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) DeleteUser(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if id == auth.UserIDFromContext(c.Request().Context()) {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot delete your own account")
	}
	if err := h.svc.DeleteUser(c.Request().Context(), id); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ChangePassword(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req passwordRequest
	if err := validate.BindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.svc.ChangePassword(c.Request().Context(), id, req.Password); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Apps --

type createAppRequest struct {
	Name        string  `json:"app_name" validate:"required,max=100"`
	Key         string  `json:"app_key" validate:"required,max=50"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

type userAppsResponse struct {
	AppIDs []uuid.UUID `json:"app_ids"`
	Apps   []*App      `json:"apps"`
}

func (h *Handler) ListApps(c echo.Context) error {
	apps, err := h.svc.ListApps(c.Request().Context())
	if err != nil {
		return httpError(c, err)
	}
	if apps == nil {
		apps = []*App{}
	}
	return c.JSON(http.StatusOK, apps)
}

func (h *Handler) CreateApp(c echo.Context) error {
	var req createAppRequest
	if err := validate.BindAndValidate(c, &req); err != nil {
		return err
	}
	a := &App{Name: req.Name, Key: req.Key, Description: req.Description}
	if err := h.svc.CreateApp(c.Request().Context(), a); err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetUserApps(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if _, err := h.svc.GetUser(ctx, id); err != nil {
		return httpError(c, err)
	}
	ids, err := h.svc.AssignedAppIDs(ctx, id)
	if err != nil {
		return httpError(c, err)
	}
	apps, err := h.svc.UserApps(ctx, id)
	if err != nil {
		return httpError(c, err)
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	if apps == nil {
		apps = []*App{}
	}
	return c.JSON(http.StatusOK, userAppsResponse{AppIDs: ids, Apps: apps})
}

func (h *Handler) AssignApp(c echo.Context) error {
	userID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	appID, err := parseID(c, "appId")
	if err != nil {
		return err
	}
	if err := h.svc.AssignApp(c.Request().Context(), userID, appID); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) RemoveApp(c echo.Context) error {
	userID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	appID, err := parseID(c, "appId")
	if err != nil {
		return err
	}
	if err := h.svc.RemoveApp(c.Request().Context(), userID, appID); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
