package account

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/apperr"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/auth"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/pkg/pagination"
)

type Handler struct {
	svc          *Service
	cookieSecure bool
}

func NewHandler(svc *Service, cookieSecure bool) *Handler {
	return &Handler{svc: svc, cookieSecure: cookieSecure}
}

// RegisterRoutes mounts sign-up and sign-in on public and everything else on
// the authenticated api group.
func (h *Handler) RegisterRoutes(public, api *echo.Group) {
	public.POST("/auth/sign-up", h.SignUp)
	public.POST("/auth/sign-in", h.SignIn)

	api.POST("/auth/sign-out", h.SignOut)
	api.GET("/auth/me", h.Me)
	api.GET("/doctors", h.ListDoctors)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/users", h.ListUsers)
	admin.GET("/users/:id", h.GetUser)
	admin.PATCH("/users/:id/active", h.SetActive)
}

func (h *Handler) SignUp(c echo.Context) error {
	var in SignUpInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	u, err := h.svc.SignUp(c.Request().Context(), in)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, u.Profile())
}

func (h *Handler) SignIn(c echo.Context) error {
	var in SignInInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	sess, err := h.svc.SignIn(c.Request().Context(), in)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	c.SetCookie(&http.Cookie{
		Name:     auth.SessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) SignOut(c echo.Context) error {
	id, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	if err := h.svc.SignOut(c.Request().Context(), id); err != nil {
		return apperr.ToHTTP(err)
	}
	c.SetCookie(&http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Me(c echo.Context) error {
	id, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	p, err := h.svc.CurrentUser(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListDoctors(c.Request().Context(), c.QueryParam("q"), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	profiles := make([]Profile, 0, len(items))
	for _, u := range items {
		profiles = append(profiles, u.Profile())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(profiles, total, pg))
}

func (h *Handler) ListUsers(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := ListFilter{Role: c.QueryParam("role"), Query: c.QueryParam("q")}
	if v := c.QueryParam("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "active must be true or false")
		}
		f.Active = &active
	}
	items, total, err := h.svc.ListUsers(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) GetUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	u, err := h.svc.GetUser(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) SetActive(c echo.Context) error {
	actor, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		Active *bool `json:"active"`
	}
	if err := c.Bind(&body); err != nil || body.Active == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "active is required")
	}
	u, err := h.svc.SetActive(c.Request().Context(), actor, id, *body.Active)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, u)
}
