package staff

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/auth/login", h.Login)

	session := api.Group("", auth.RequireSession())
	session.POST("/auth/logout", h.Logout)
	session.GET("/auth/me", h.Me)
	session.GET("/doctors", h.ListDoctors)
	session.GET("/nurses", h.ListNurses)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/users", h.ListUsers)
	admin.POST("/users", h.CreateUser)
	admin.GET("/users/:id", h.GetUser)
	admin.PUT("/users/:id", h.UpdateUser)
	admin.DELETE("/users/:id", h.DeleteUser)
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	resp, err := h.svc.Login(c.Request().Context(), req)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Logout(c echo.Context) error {
	if err := h.svc.Logout(c.Request().Context(), auth.SessionFromContext(c.Request().Context())); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Me(c echo.Context) error {
	ctx := c.Request().Context()
	u, err := h.svc.Me(ctx, auth.SessionFromContext(ctx))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) CreateUser(c echo.Context) error {
	var req CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	u, err := h.svc.CreateUser(c.Request().Context(), req)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) GetUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	u, err := h.svc.GetUser(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) UpdateUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	u, err := h.svc.UpdateUser(c.Request().Context(), id, req)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) DeleteUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeactivateUser(c.Request().Context(), id); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListUsers(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := ListFilter{Role: c.QueryParam("role"), Search: pg.Search, ActiveOnly: c.QueryParam("actif") == "true"}
	return h.list(c, f, pg)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	return h.list(c, ListFilter{Role: auth.RoleDoctor, Search: pg.Search, ActiveOnly: true}, pg)
}

func (h *Handler) ListNurses(c echo.Context) error {
	pg := pagination.FromContext(c)
	return h.list(c, ListFilter{Role: auth.RoleNurse, Search: pg.Search, ActiveOnly: true}, pg)
}

func (h *Handler) list(c echo.Context, f ListFilter, pg pagination.Params) error {
	users, total, err := h.svc.ListUsers(c.Request().Context(), f, pg.Limit, pg.Offset())
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(users, total, pg))
}
