package prescription

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/domain/medication"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/pkg/pagination"
)

// DeliveryResponse is returned when a delivery succeeds.
type DeliveryResponse struct {
	Message      string                 `json:"message"`
	Prescription *Prescription          `json:"prescription"`
	Medication   *medication.Medication `json:"medicament"`
}

// ShortageResponse is returned with 409 when the stock cannot cover the
// delivery. The prescription lets the client print it on paper instead.
type ShortageResponse struct {
	Message      string        `json:"message"`
	Rupture      bool          `json:"rupture"`
	Prescription *Prescription `json:"prescription,omitempty"`
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor, auth.RoleNurse, auth.RolePharmacist))
	read.GET("/prescriptions", h.ListPrescriptions)
	read.GET("/prescriptions/:id", h.GetPrescription)

	doctor := api.Group("", auth.RequireRole(auth.RoleDoctor))
	doctor.POST("/prescriptions", h.CreatePrescription)
	doctor.PUT("/prescriptions/:id", h.UpdatePrescription)
	doctor.PATCH("/prescriptions/:id/cancel", h.CancelPrescription)

	del := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor))
	del.DELETE("/prescriptions/:id", h.DeletePrescription)

	pharmacy := api.Group("", auth.RequireRole(auth.RolePharmacist))
	pharmacy.POST("/prescriptions/:id/deliver", h.Deliver)
}

func parseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
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

func (h *Handler) CreatePrescription(c echo.Context) error {
	var p Prescription
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreatePrescription(c.Request().Context(), &p); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPrescription(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.svc.GetPrescription(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPrescriptions(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := ListFilter{Search: pg.Search, Status: c.QueryParam("statut")}

	var err error
	if f.PatientID, err = optionalUUID(c, "patient_id"); err != nil {
		return err
	}
	if f.ConsultationID, err = optionalUUID(c, "consultation_id"); err != nil {
		return err
	}
	if f.DoctorID, err = optionalUUID(c, "medecin_id"); err != nil {
		return err
	}

	items, total, err := h.svc.ListPrescriptions(c.Request().Context(), f, pg.Limit, pg.Offset())
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdatePrescription(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var p Prescription
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.ID = id
	if err := h.svc.UpdatePrescription(c.Request().Context(), &p); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) CancelPrescription(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.svc.CancelPrescription(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePrescription(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeletePrescription(c.Request().Context(), id); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Deliver(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req DeliverRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	res, err := h.svc.Deliver(ctx, id, req, auth.UserIDFromContext(ctx))
	if errors.Is(err, medication.ErrStockShortage) {
		return c.JSON(http.StatusConflict, ShortageResponse{
			Message:      "insufficient stock for this delivery",
			Rupture:      true,
			Prescription: res.Prescription,
		})
	}
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, DeliveryResponse{
		Message:      "prescription delivered",
		Prescription: res.Prescription,
		Medication:   res.Medication,
	})
}
