package appointment

import (
	"net/http"
	"time"

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
	read := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor, auth.RoleNurse, auth.RoleReceptionist))
	read.GET("/appointments", h.ListAppointments)
	read.GET("/appointments/today", h.Today)
	read.GET("/appointments/:id", h.GetAppointment)

	write := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleReceptionist, auth.RoleDoctor))
	write.POST("/appointments", h.CreateAppointment)
	write.PUT("/appointments/:id", h.UpdateAppointment)

	del := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleReceptionist))
	del.DELETE("/appointments/:id", h.DeleteAppointment)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func optionalUUID(c echo.Context, name string) (*uuid.UUID, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return &id, nil
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateAppointment(c.Request().Context(), &a); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

// ListAppointments accepts medecin_id, patient_id, statut and a date
// (YYYY-MM-DD) restricting the list to one day.
func (h *Handler) ListAppointments(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := ListFilter{Search: pg.Search, Status: c.QueryParam("statut")}

	var err error
	if f.DoctorID, err = optionalUUID(c, "medecin_id"); err != nil {
		return err
	}
	if f.PatientID, err = optionalUUID(c, "patient_id"); err != nil {
		return err
	}
	if v := c.QueryParam("date"); v != "" {
		day, err := time.ParseInLocation("2006-01-02", v, time.Local)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
		}
		from, to := DayBounds(day)
		f.From, f.To = &from, &to
	}

	items, total, err := h.svc.ListAppointments(c.Request().Context(), f, pg.Limit, pg.Offset())
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

// Today returns the caller's own schedule for doctors; other roles see
// every doctor or filter with medecin_id.
func (h *Handler) Today(c echo.Context) error {
	ctx := c.Request().Context()
	var doctorID *uuid.UUID
	if s := auth.SessionFromContext(ctx); s.HasRole(auth.RoleDoctor) {
		doctorID = &s.UserID
	} else {
		var err error
		if doctorID, err = optionalUUID(c, "medecin_id"); err != nil {
			return err
		}
	}

	items, err := h.svc.Today(ctx, doctorID)
	if err != nil {
		return apperr.HTTP(err)
	}
	if items == nil {
		items = []*Appointment{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a.ID = id
	if err := h.svc.UpdateAppointment(c.Request().Context(), &a); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) DeleteAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteAppointment(c.Request().Context(), id); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}
