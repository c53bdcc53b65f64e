package carnet

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
	read := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor, auth.RoleNurse))
	read.GET("/patients/:id/carnet", h.GetCarnet)
	read.GET("/consultations", h.ListConsultations)
	read.GET("/consultations/:id", h.GetConsultation)
	read.GET("/soins", h.ListCareEpisodes)
	read.GET("/soins/:id", h.GetCareEpisode)
	read.GET("/examens", h.ListExams)
	read.GET("/examens/:id", h.GetExam)

	clinical := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor))
	clinical.POST("/consultations", h.CreateConsultation)
	clinical.PUT("/consultations/:id", h.UpdateConsultation)
	clinical.POST("/examens", h.CreateExam)
	clinical.PUT("/examens/:id", h.UpdateExam)

	nursing := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleNurse))
	nursing.POST("/soins", h.CreateCareEpisode)
	nursing.PUT("/soins/:id", h.UpdateCareEpisode)

	review := api.Group("", auth.RequireRole(auth.RoleDoctor))
	review.PATCH("/soins/:id/validation", h.ReviewCareEpisode)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.DELETE("/consultations/:id", h.DeleteConsultation)
	admin.DELETE("/soins/:id", h.DeleteCareEpisode)
	admin.DELETE("/examens/:id", h.DeleteExam)
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

// listFilter reads patient_id, the author parameter and statut.
func listFilter(c echo.Context, pg pagination.Params, authorParam string) (Filter, error) {
	f := Filter{Search: pg.Search, Status: c.QueryParam("statut")}
	var err error
	if f.PatientID, err = optionalUUID(c, "patient_id"); err != nil {
		return f, err
	}
	if f.AuthorID, err = optionalUUID(c, authorParam); err != nil {
		return f, err
	}
	return f, nil
}

func (h *Handler) GetCarnet(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	carnet, err := h.svc.GetCarnet(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, carnet)
}

// -- Consultation --

func (h *Handler) CreateConsultation(c echo.Context) error {
	var cons Consultation
	if err := c.Bind(&cons); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	if err := h.svc.CreateConsultation(ctx, &cons, auth.SessionFromContext(ctx)); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, cons)
}

func (h *Handler) GetConsultation(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	cons, err := h.svc.GetConsultation(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, cons)
}

func (h *Handler) ListConsultations(c echo.Context) error {
	pg := pagination.FromContext(c)
	f, err := listFilter(c, pg, "medecin_id")
	if err != nil {
		return err
	}
	items, total, err := h.svc.ListConsultations(c.Request().Context(), f, pg.Limit, pg.Offset())
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdateConsultation(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var cons Consultation
	if err := c.Bind(&cons); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cons.ID = id
	if err := h.svc.UpdateConsultation(c.Request().Context(), &cons); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, cons)
}

func (h *Handler) DeleteConsultation(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteConsultation(c.Request().Context(), id); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Care episode --

func (h *Handler) CreateCareEpisode(c echo.Context) error {
	var e CareEpisode
	if err := c.Bind(&e); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	if err := h.svc.CreateCareEpisode(ctx, &e, auth.SessionFromContext(ctx)); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) GetCareEpisode(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	e, err := h.svc.GetCareEpisode(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) ListCareEpisodes(c echo.Context) error {
	pg := pagination.FromContext(c)
	f, err := listFilter(c, pg, "infirmier_id")
	if err != nil {
		return err
	}
	if v := c.QueryParam("statut_validation"); v != "" {
		f.Status = v
	}
	items, total, err := h.svc.ListCareEpisodes(c.Request().Context(), f, pg.Limit, pg.Offset())
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdateCareEpisode(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var e CareEpisode
	if err := c.Bind(&e); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e.ID = id
	if err := h.svc.UpdateCareEpisode(c.Request().Context(), &e); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) ReviewCareEpisode(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req ReviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	e, err := h.svc.ReviewCareEpisode(ctx, id, req, auth.UserIDFromContext(ctx))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) DeleteCareEpisode(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteCareEpisode(c.Request().Context(), id); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Exam --

func (h *Handler) CreateExam(c echo.Context) error {
	var e Exam
	if err := c.Bind(&e); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	if err := h.svc.CreateExam(ctx, &e, auth.SessionFromContext(ctx)); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) GetExam(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	e, err := h.svc.GetExam(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) ListExams(c echo.Context) error {
	pg := pagination.FromContext(c)
	f, err := listFilter(c, pg, "medecin_id")
	if err != nil {
		return err
	}
	items, total, err := h.svc.ListExams(c.Request().Context(), f, pg.Limit, pg.Offset())
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdateExam(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var e Exam
	if err := c.Bind(&e); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e.ID = id
	if err := h.svc.UpdateExam(c.Request().Context(), &e); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) DeleteExam(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteExam(c.Request().Context(), id); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}
