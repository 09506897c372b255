package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mediconnect/booking/internal/config"
	"github.com/mediconnect/booking/internal/domain/booking"
	"github.com/mediconnect/booking/internal/platform/doctorsvc"
	"github.com/mediconnect/booking/internal/platform/metrics"
	"github.com/mediconnect/booking/internal/platform/middleware"
)

func testConfig(source string) *config.Config {
	return &config.Config{
		Env:              "production",
		CalendarSource:   source,
		DoctorServiceURL: "http://doctor-service.internal:8080",
		CalendarTimeout:  time.Second,
		AuthSigningKey:   "test-signing-key",
		CORSOrigins:      []string{"http://localhost:3000"},
		RequestTimeout:   time.Second,
	}
}

func newTestServer(t *testing.T, source string, col *metrics.Collector) *httptest.Server {
	t.Helper()
	cfg := testConfig(source)
	cal, err := newCalendarBackend(cfg, nil, col, zerolog.Nop())
	if err != nil {
		t.Fatalf("newCalendarBackend: %v", err)
	}
	e := newServer(cfg, zerolog.Nop(), nil, col, cal, booking.NewAppointmentRepoPG(nil), time.UTC)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewCalendarBackend_HTTP(t *testing.T) {
	cal, err := newCalendarBackend(testConfig(config.CalendarSourceHTTP), nil, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := cal.Store.(*doctorsvc.Client); !ok {
		t.Errorf("expected doctor service client, got %T", cal.Store)
	}
	if cal.Admin != nil {
		t.Error("remote calendar must not expose admin routes")
	}
}

func TestNewCalendarBackend_Postgres(t *testing.T) {
	cal, err := newCalendarBackend(testConfig(config.CalendarSourcePostgres), nil, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cal.Admin == nil || cal.Store == nil {
		t.Fatalf("expected local store with admin service, got %+v", cal)
	}
}

func TestNewCalendarBackend_Errors(t *testing.T) {
	cfg := testConfig(config.CalendarSourceHTTP)
	cfg.DoctorServiceURL = "not a url"
	if _, err := newCalendarBackend(cfg, nil, nil, zerolog.Nop()); err == nil {
		t.Error("expected error for invalid doctor service url")
	}
	if _, err := newCalendarBackend(testConfig("ldap"), nil, nil, zerolog.Nop()); err == nil {
		t.Error("expected error for unknown calendar source")
	}
}

func TestRateLimitConfig(t *testing.T) {
	cfg := testConfig(config.CalendarSourcePostgres)
	if got := rateLimitConfig(cfg); got != middleware.DefaultRateLimitConfig() {
		t.Errorf("expected defaults for unset limits, got %+v", got)
	}
	cfg.RateLimitRPS = 5
	cfg.RateLimitBurst = 7
	got := rateLimitConfig(cfg)
	if got.RequestsPerSecond != 5 || got.BurstSize != 7 {
		t.Errorf("expected configured limits, got %+v", got)
	}
}

func TestServer_HealthIsPublic(t *testing.T) {
	srv := newTestServer(t, config.CalendarSourceHTTP, nil)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("expected request id header")
	}
}

func TestServer_APIRequiresToken(t *testing.T) {
	srv := newTestServer(t, config.CalendarSourceHTTP, nil)

	resp, err := http.Get(srv.URL + "/api/v1/doctors/7b0c3f8e-2a3d-4c55-9a61-0d2f1b7e9c10/available-slots?date=2026-03-02")
	if err != nil {
		t.Fatalf("GET available-slots: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestServer_MetricsEndpoint(t *testing.T) {
	col := metrics.NewCollector(serviceName)
	srv := newTestServer(t, config.CalendarSourceHTTP, col)

	if resp, err := http.Get(srv.URL + "/health"); err == nil {
		resp.Body.Close()
	}
	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), `booking_http_requests_total`) {
		t.Errorf("expected request counter in scrape output")
	}
}

func TestServer_Routes(t *testing.T) {
	cfg := testConfig(config.CalendarSourcePostgres)
	cal, err := newCalendarBackend(cfg, nil, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("newCalendarBackend: %v", err)
	}
	e := newServer(cfg, zerolog.Nop(), nil, nil, cal, booking.NewAppointmentRepoPG(nil), time.UTC)

	have := map[string]bool{}
	for _, r := range e.Routes() {
		have[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /health",
		"GET /api/v1/doctors/:doctorId/available-slots",
		"POST /api/v1/appointments",
		"PUT /api/v1/appointments/:id/reschedule",
		"POST /api/v1/appointments/:id/cancel",
		"PATCH /api/v1/appointments/:id/status",
		"POST /api/v1/doctors",
		"PUT /api/v1/doctors/:doctorId/availability",
	} {
		if !have[want] {
			t.Errorf("missing route %s", want)
		}
	}
	if have["GET /metrics"] {
		t.Error("metrics route registered without a collector")
	}
}

func TestDoctorFromFlags(t *testing.T) {
	newCmd := func() *cobra.Command {
		return doctorCmd().Commands()[0]
	}

	cmd := newCmd()
	if _, err := doctorFromFlags(cmd); err == nil {
		t.Error("expected error without --name")
	}

	cmd = newCmd()
	_ = cmd.Flags().Set("name", "Dr. Rao")
	_ = cmd.Flags().Set("specialization", "cardiology")
	d, err := doctorFromFlags(cmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Name != "Dr. Rao" || !d.Active || d.Email != nil {
		t.Errorf("unexpected doctor: %+v", d)
	}
	if d.Specialization == nil || *d.Specialization != "cardiology" {
		t.Errorf("expected specialization, got %v", d.Specialization)
	}
}
