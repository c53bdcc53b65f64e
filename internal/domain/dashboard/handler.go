package dashboard

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireSession())
	g.GET("/dashboard", h.GetDashboard)
}

func (h *Handler) GetDashboard(c echo.Context) error {
	ctx := c.Request().Context()
	d, err := h.svc.ForSession(ctx, auth.SessionFromContext(ctx))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}
