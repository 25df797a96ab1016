package admin

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/apperr"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/auth"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/admin", auth.RequireRole(auth.RoleAdmin))
	g.GET("/dashboard", h.Dashboard)
	g.GET("/appointments/export.xlsx", h.ExportAppointments)
}

func (h *Handler) Dashboard(c echo.Context) error {
	id, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	d, err := h.svc.Dashboard(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ExportAppointments(c echo.Context) error {
	id, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	q := ExportQuery{From: c.QueryParam("from"), To: c.QueryParam("to"), Status: c.QueryParam("status")}
	data, _, err := h.svc.ExportAppointments(c.Request().Context(), id, q)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	name := "appointments.xlsx"
	if q.From != "" || q.To != "" {
		name = fmt.Sprintf("appointments_%s_%s.xlsx", q.From, q.To)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, xlsxMIME, data)
}
