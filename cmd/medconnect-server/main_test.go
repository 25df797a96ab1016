package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/config"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/auth"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/middleware"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/notification"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/objectstore"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/realtime"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:               "8000",
		Env:                "development",
		AppBaseURL:         "http://localhost:3000",
		TokenTTL:           time.Hour,
		CORSOrigins:        []string{"http://localhost:3000"},
		StorageBackend:     "memory",
		S3Bucket:           "medical-reports",
		PhoneDefaultRegion: "US",
		ReminderCron:       "0 7 * * *",
	}
}

func newTestServer(t *testing.T) (*echo.Echo, *auth.TokenIssuer) {
	t.Helper()
	cfg := testConfig()
	logger := zerolog.Nop()
	tokens := auth.NewTokenIssuer(cfg.EffectiveSigningKey(), "medconnect", time.Hour)
	revocations := auth.NewTokenRevocationStore(time.Minute)
	t.Cleanup(revocations.Close)

	store, err := newObjectStore(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	notifier := notification.NewDispatcher(newEmailSender(cfg, logger), notification.NewTemplateEngine())
	// Repositories are never reached by the requests below.
	svc := newServices(nil, cfg, tokens, revocations, store, notifier, realtime.Nop{}, logger)

	hub := realtime.NewHub(logger)
	e := newRouter(router{
		cfg:         cfg,
		logger:      logger,
		tokens:      tokens,
		revocations: revocations,
		realtime:    realtime.NewHandler(hub, realtime.NewAuthorizer(svc.patients), cfg.CORSOrigins, logger),
		metrics:     middleware.NewMetrics(prometheus.NewRegistry()),
		health:      func(c echo.Context) error { return c.JSON(http.StatusOK, map[string]string{"status": "ok"}) },
	}, svc)
	return e, tokens
}

func TestRouter_RegistersDomainRoutes(t *testing.T) {
	e, _ := newTestServer(t)

	want := []string{
		"POST /api/v1/auth/sign-up",
		"POST /api/v1/auth/sign-in",
		"GET /api/v1/auth/me",
		"GET /api/v1/connections/qr.png",
		"POST /api/v1/connections/scan",
		"POST /api/v1/appointments",
		"POST /api/v1/appointments/:id/confirm",
		"POST /api/v1/symptoms",
		"POST /api/v1/patients/:id/reports",
		"GET /api/v1/reports/:id/download",
		"POST /api/v1/messages",
		"DELETE /api/v1/messages/:userId",
		"GET /api/v1/admin/dashboard",
		"GET /api/v1/admin/appointments/export.xlsx",
		"GET /api/v1/realtime",
		"GET /metrics",
		"GET /health",
	}
	have := map[string]bool{}
	for _, r := range e.Routes() {
		have[r.Method+" "+r.Path] = true
	}
	for _, w := range want {
		if !have[w] {
			t.Errorf("route %s not registered", w)
		}
	}
}

func TestRouter_RequiresToken(t *testing.T) {
	e, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestRouter_AdminRoutesRejectPatients(t *testing.T) {
	e, tokens := newTestServer(t)
	token, _, err := tokens.Issue(uuid.New(), auth.RolePatient, "patient@example.com")
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestRouter_HealthAndSecurityHeaders(t *testing.T) {
	e, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
	if rec.Header().Get(echo.HeaderXRequestID) == "" {
		t.Error("request id missing")
	}
}

func TestRateLimitConfig(t *testing.T) {
	cfg := testConfig()
	rl := rateLimitConfig(cfg)
	if rl.RequestsPerSecond != 100 || rl.BurstSize != 200 {
		t.Errorf("defaults not applied: %+v", rl)
	}
	cfg.RateLimitRPS, cfg.RateLimitBurst = 5, 10
	rl = rateLimitConfig(cfg)
	if rl.RequestsPerSecond != 5 || rl.BurstSize != 10 {
		t.Errorf("overrides not applied: %+v", rl)
	}
}

func TestNewEmailSender(t *testing.T) {
	cfg := testConfig()
	if _, ok := newEmailSender(cfg, zerolog.Nop()).(*notification.LogSender); !ok {
		t.Error("expected log sender without an API key")
	}
	cfg.SendGridAPIKey = "SG.test"
	if _, ok := newEmailSender(cfg, zerolog.Nop()).(*notification.SendGridSender); !ok {
		t.Error("expected SendGrid sender with an API key")
	}
}

func TestNewObjectStore_Memory(t *testing.T) {
	store, err := newObjectStore(context.Background(), testConfig())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.(*objectstore.MemoryStore); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}
	if got := store.URL("reports/a.pdf"); got != "http://localhost:8000/files/medical-reports/reports/a.pdf" {
		t.Errorf("url = %s", got)
	}
}
