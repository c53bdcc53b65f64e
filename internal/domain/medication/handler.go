package medication

import (
	"net/http"
	"strconv"

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
	read := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RolePharmacist, auth.RoleDoctor, auth.RoleNurse))
	read.GET("/medicaments", h.ListMedications)
	read.GET("/medicaments/low-stock", h.ListLowStock)
	read.GET("/medicaments/:id", h.GetMedication)

	write := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RolePharmacist))
	write.POST("/medicaments", h.CreateMedication)
	write.PUT("/medicaments/:id", h.UpdateMedication)
	write.POST("/medicaments/:id/restock", h.Restock)
	write.DELETE("/medicaments/:id", h.DeleteMedication)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) CreateMedication(c echo.Context) error {
	var m Medication
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateMedication(c.Request().Context(), &m); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) GetMedication(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	m, err := h.svc.GetMedication(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) ListMedications(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := ListFilter{Search: pg.Search}
	if v := c.QueryParam("stock_faible"); v != "" {
		f.LowStockOnly, _ = strconv.ParseBool(v)
	}
	meds, total, err := h.svc.ListMedications(c.Request().Context(), f, pg.Limit, pg.Offset())
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(meds, total, pg))
}

func (h *Handler) ListLowStock(c echo.Context) error {
	pg := pagination.FromContext(c)
	meds, total, err := h.svc.ListMedications(c.Request().Context(), ListFilter{Search: pg.Search, LowStockOnly: true}, pg.Limit, pg.Offset())
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(meds, total, pg))
}

func (h *Handler) UpdateMedication(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var m Medication
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m.ID = id
	if err := h.svc.UpdateMedication(c.Request().Context(), &m); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) Restock(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req RestockRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m, err := h.svc.Restock(c.Request().Context(), id, req.Quantity)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) DeleteMedication(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteMedication(c.Request().Context(), id); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}
