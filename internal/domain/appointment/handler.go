package appointment

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/apperr"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/auth"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/appointments", h.List)
	api.GET("/appointments/:id", h.Get)

	patients := api.Group("/appointments", auth.RequireRole(auth.RolePatient))
	patients.POST("", h.Request)

	doctors := api.Group("/appointments", auth.RequireRole(auth.RoleDoctor))
	doctors.POST("/:id/confirm", h.Confirm)
	doctors.POST("/:id/decline", h.Decline)
	doctors.POST("/:id/reschedule", h.Reschedule)
	doctors.POST("/:id/complete", h.Complete)
	doctors.POST("/:id/no-show", h.NoShow)

	both := api.Group("/appointments", auth.RequireRole(auth.RolePatient, auth.RoleDoctor))
	both.POST("/:id/cancel", h.Cancel)
}

type dateTimeBody struct {
	DateTime string `json:"date_time"`
}

func (h *Handler) Request(c echo.Context) error {
	id, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	var in RequestInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.Request(c.Request().Context(), id, in)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) List(c echo.Context) error {
	id, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	q := ListQuery{Status: c.QueryParam("status")}
	if v := c.QueryParam("upcoming"); v != "" {
		if q.Upcoming, err = strconv.ParseBool(v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "upcoming must be true or false")
		}
	}
	if q.PatientID, err = optionalUUID(c.QueryParam("patient_id")); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}
	if q.DoctorID, err = optionalUUID(c.QueryParam("doctor_id")); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), id, q, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Get(c echo.Context) error {
	return h.act(c, h.svc.Get)
}

func (h *Handler) Confirm(c echo.Context) error {
	return h.actAt(c, h.svc.Confirm)
}

func (h *Handler) Decline(c echo.Context) error {
	return h.act(c, h.svc.Decline)
}

func (h *Handler) Reschedule(c echo.Context) error {
	return h.actAt(c, h.svc.Reschedule)
}

func (h *Handler) Complete(c echo.Context) error {
	return h.act(c, h.svc.Complete)
}

func (h *Handler) NoShow(c echo.Context) error {
	return h.act(c, h.svc.MarkNoShow)
}

func (h *Handler) Cancel(c echo.Context) error {
	return h.act(c, h.svc.Cancel)
}

type action func(ctx context.Context, id auth.Identity, apptID uuid.UUID) (*Appointment, error)

type timedAction func(ctx context.Context, id auth.Identity, apptID uuid.UUID, dateTime string) (*Appointment, error)

func (h *Handler) act(c echo.Context, fn action) error {
	id, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	apptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := fn(c.Request().Context(), id, apptID)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) actAt(c echo.Context, fn timedAction) error {
	id, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	apptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body dateTimeBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := fn(c.Request().Context(), id, apptID, body.DateTime)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

func optionalUUID(v string) (*uuid.UUID, error) {
	if v == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
