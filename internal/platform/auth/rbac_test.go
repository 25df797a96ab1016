package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func runRBAC(ctx context.Context, roles ...string) (*httptest.ResponseRecorder, error) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := RequireRole(roles...)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	return rec, h(c)
}

func TestRequireRole_Allowed(t *testing.T) {
	ctx := WithIdentity(context.Background(), Identity{UserID: uuid.New(), Role: RoleDoctor})
	rec, err := runRBAC(ctx, RoleDoctor)
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestRequireRole_Denied(t *testing.T) {
	ctx := WithIdentity(context.Background(), Identity{UserID: uuid.New(), Role: RolePatient})
	_, err := runRBAC(ctx, RoleDoctor)
	if err == nil {
		t.Fatal("expected error for unauthorized role")
	}
	if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %v", err)
	}
}

func TestRequireRole_AdminBypass(t *testing.T) {
	ctx := WithIdentity(context.Background(), Identity{UserID: uuid.New(), Role: RoleAdmin})
	if _, err := runRBAC(ctx, RolePatient); err != nil {
		t.Errorf("expected admin to pass, got %v", err)
	}
}

func TestRequireRole_Unauthenticated(t *testing.T) {
	_, err := runRBAC(context.Background(), RolePatient)
	if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}

func TestHasRole(t *testing.T) {
	tests := []struct {
		role     string
		required []string
		want     bool
	}{
		{RolePatient, []string{RolePatient}, true},
		{RolePatient, []string{RoleDoctor}, false},
		{RoleDoctor, []string{RolePatient, RoleDoctor}, true},
		{RoleAdmin, []string{RoleDoctor}, true},
		{"", []string{RolePatient}, false},
	}
	for _, tt := range tests {
		if got := HasRole(tt.role, tt.required...); got != tt.want {
			t.Errorf("HasRole(%q, %v) = %v, want %v", tt.role, tt.required, got, tt.want)
		}
	}
}

func TestValidRole(t *testing.T) {
	for _, r := range []string{RolePatient, RoleDoctor, RoleAdmin} {
		if !ValidRole(r) {
			t.Errorf("expected %q to be valid", r)
		}
	}
	if ValidRole("nurse") {
		t.Error("nurse is not a valid role")
	}
}
