package patient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/auth"
)

func newTestHandler() (*Handler, *Service, *echo.Echo) {
	svc, _, _ := newTestService()
	return NewHandler(svc), svc, echo.New()
}

func TestHandler_GetMe(t *testing.T) {
	h, _, e := newTestHandler()
	id := auth.Identity{UserID: uuid.New(), Role: auth.RolePatient}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), id))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.GetMe(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), id.UserID.String()) {
		t.Errorf("expected user id in body, got %s", rec.Body.String())
	}
}

func TestHandler_UpdateMe_Invalid(t *testing.T) {
	h, _, e := newTestHandler()
	id := auth.Identity{UserID: uuid.New(), Role: auth.RolePatient}
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"blood_group":"Z"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = req.WithContext(auth.WithIdentity(req.Context(), id))
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.UpdateMe(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_GetPatient(t *testing.T) {
	h, svc, e := newTestHandler()
	p, _ := svc.EnsureForUser(context.Background(), uuid.New())

	tests := []struct {
		name   string
		id     auth.Identity
		param  string
		status int
	}{
		{"admin", auth.Identity{UserID: uuid.New(), Role: auth.RoleAdmin}, p.ID.String(), http.StatusOK},
		{"stranger doctor", auth.Identity{UserID: uuid.New(), Role: auth.RoleDoctor}, p.ID.String(), http.StatusForbidden},
		{"unknown", auth.Identity{UserID: uuid.New(), Role: auth.RoleAdmin}, uuid.NewString(), http.StatusNotFound},
		{"bad id", auth.Identity{UserID: uuid.New(), Role: auth.RoleAdmin}, "nope", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(auth.WithIdentity(req.Context(), tt.id))
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			c.SetParamNames("id")
			c.SetParamValues(tt.param)

			err := h.GetPatient(c)
			code := rec.Code
			if he, ok := err.(*echo.HTTPError); ok {
				code = he.Code
			} else if err != nil {
				t.Fatal(err)
			}
			if code != tt.status {
				t.Errorf("status = %d, want %d", code, tt.status)
			}
		})
	}
}
