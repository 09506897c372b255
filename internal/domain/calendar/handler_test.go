package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mediconnect/booking/internal/platform/auth"
)

func newTestHandler() (*Handler, *echo.Echo) {
	h := NewHandler(newTestService())
	e := echo.New()
	return h, e
}

func newRequest(method, body string, sub string, roles ...string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, "/", nil)
	} else {
		req = httptest.NewRequest(method, "/", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	return req.WithContext(auth.WithIdentity(context.Background(), sub, roles))
}

func expectHTTPStatus(t *testing.T, err error, code int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with status %d", code)
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d (%v)", code, httpErr.Code, httpErr.Message)
	}
}

func TestHandler_CreateDoctor(t *testing.T) {
	h, e := newTestHandler()
	req := newRequest(http.MethodPost, `{"name":"Dr. Iyer","specialization":"cardiology"}`, "staff-1", auth.RoleStaff)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreateDoctor(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var d Doctor
	if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !d.Active || d.ID == uuid.Nil {
		t.Errorf("expected active doctor with id, got %+v", d)
	}
}

func TestHandler_CreateDoctor_BadRequest(t *testing.T) {
	h, e := newTestHandler()
	req := newRequest(http.MethodPost, `{}`, "staff-1", auth.RoleStaff)
	c := e.NewContext(req, httptest.NewRecorder())

	expectHTTPStatus(t, h.CreateDoctor(c), http.StatusBadRequest)
}

func TestHandler_GetDoctor_NotFound(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(newRequest(http.MethodGet, "", "p-1", auth.RolePatient), httptest.NewRecorder())
	c.SetParamNames("doctorId")
	c.SetParamValues(uuid.New().String())

	expectHTTPStatus(t, h.GetDoctor(c), http.StatusNotFound)
}

func TestHandler_GetDoctor_InvalidID(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(newRequest(http.MethodGet, "", "p-1", auth.RolePatient), httptest.NewRecorder())
	c.SetParamNames("doctorId")
	c.SetParamValues("not-a-uuid")

	expectHTTPStatus(t, h.GetDoctor(c), http.StatusBadRequest)
}

func TestHandler_SetDoctorActive(t *testing.T) {
	h, e := newTestHandler()
	d := createTestDoctor(t, h.svc)

	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodPatch, `{"active":false}`, "staff-1", auth.RoleStaff), rec)
	c.SetParamNames("doctorId")
	c.SetParamValues(d.ID.String())

	if err := h.SetDoctorActive(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Active {
		t.Error("expected doctor to be deactivated")
	}

	c = e.NewContext(newRequest(http.MethodPatch, `{}`, "staff-1", auth.RoleStaff), httptest.NewRecorder())
	c.SetParamNames("doctorId")
	c.SetParamValues(d.ID.String())
	expectHTTPStatus(t, h.SetDoctorActive(c), http.StatusBadRequest)
}

func TestHandler_SetAvailability_OwnCalendar(t *testing.T) {
	h, e := newTestHandler()
	d := createTestDoctor(t, h.svc)

	body := `{"day_of_week":"monday","start_time":"09:00","end_time":"10:00","is_available":true}`
	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodPut, body, d.ID.String(), auth.RoleDoctor), rec)
	c.SetParamNames("doctorId")
	c.SetParamValues(d.ID.String())

	if err := h.SetAvailability(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var a WeeklyAvailability
	if err := json.Unmarshal(rec.Body.Bytes(), &a); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if a.DayOfWeek != Monday || a.StartTime != NewTimeOfDay(9, 0) {
		t.Errorf("unexpected row %+v", a)
	}
}

func TestHandler_SetAvailability_OtherDoctorForbidden(t *testing.T) {
	h, e := newTestHandler()
	d := createTestDoctor(t, h.svc)

	body := `{"day_of_week":"MONDAY","start_time":"09:00","end_time":"10:00","is_available":true}`
	c := e.NewContext(newRequest(http.MethodPut, body, uuid.New().String(), auth.RoleDoctor), httptest.NewRecorder())
	c.SetParamNames("doctorId")
	c.SetParamValues(d.ID.String())

	expectHTTPStatus(t, h.SetAvailability(c), http.StatusForbidden)
}

func TestHandler_SetAvailability_InvalidWindow(t *testing.T) {
	h, e := newTestHandler()
	d := createTestDoctor(t, h.svc)

	body := `{"day_of_week":"MONDAY","start_time":"11:00","end_time":"10:00","is_available":true}`
	c := e.NewContext(newRequest(http.MethodPut, body, "staff-1", auth.RoleStaff), httptest.NewRecorder())
	c.SetParamNames("doctorId")
	c.SetParamValues(d.ID.String())

	expectHTTPStatus(t, h.SetAvailability(c), http.StatusBadRequest)
}

func TestHandler_DeleteAvailability(t *testing.T) {
	h, e := newTestHandler()
	d := createTestDoctor(t, h.svc)

	c := e.NewContext(newRequest(http.MethodDelete, "", "staff-1", auth.RoleStaff), httptest.NewRecorder())
	c.SetParamNames("doctorId", "day")
	c.SetParamValues(d.ID.String(), "TUESDAY")
	expectHTTPStatus(t, h.DeleteAvailability(c), http.StatusNotFound)

	c = e.NewContext(newRequest(http.MethodDelete, "", "staff-1", auth.RoleStaff), httptest.NewRecorder())
	c.SetParamNames("doctorId", "day")
	c.SetParamValues(d.ID.String(), "HOLIDAY")
	expectHTTPStatus(t, h.DeleteAvailability(c), http.StatusBadRequest)
}

func TestHandler_CreateOverride_Conflict(t *testing.T) {
	h, e := newTestHandler()
	d := createTestDoctor(t, h.svc)
	body := `{"date":"2026-03-02","is_working":false}`

	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodPost, body, "staff-1", auth.RoleStaff), rec)
	c.SetParamNames("doctorId")
	c.SetParamValues(d.ID.String())
	if err := h.CreateOverride(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	c = e.NewContext(newRequest(http.MethodPost, body, "staff-1", auth.RoleStaff), httptest.NewRecorder())
	c.SetParamNames("doctorId")
	c.SetParamValues(d.ID.String())
	expectHTTPStatus(t, h.CreateOverride(c), http.StatusConflict)
}

func TestHandler_DeleteOverride_InvalidDate(t *testing.T) {
	h, e := newTestHandler()
	d := createTestDoctor(t, h.svc)

	c := e.NewContext(newRequest(http.MethodDelete, "", "staff-1", auth.RoleStaff), httptest.NewRecorder())
	c.SetParamNames("doctorId", "date")
	c.SetParamValues(d.ID.String(), "03/02/2026")
	expectHTTPStatus(t, h.DeleteOverride(c), http.StatusBadRequest)
}

func TestHandler_CreateLeave(t *testing.T) {
	h, e := newTestHandler()
	d := createTestDoctor(t, h.svc)

	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodPost, `{"start_date":"2026-04-01","end_date":"2026-04-03","reason":"conference"}`, d.ID.String(), auth.RoleDoctor), rec)
	c.SetParamNames("doctorId")
	c.SetParamValues(d.ID.String())
	if err := h.CreateLeave(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	c = e.NewContext(newRequest(http.MethodPost, `{"start_date":"2026-04-03","end_date":"2026-04-04"}`, d.ID.String(), auth.RoleDoctor), httptest.NewRecorder())
	c.SetParamNames("doctorId")
	c.SetParamValues(d.ID.String())
	expectHTTPStatus(t, h.CreateLeave(c), http.StatusConflict)

	c = e.NewContext(newRequest(http.MethodPost, `{"start_date":"2026-04-09","end_date":"2026-04-08"}`, d.ID.String(), auth.RoleDoctor), httptest.NewRecorder())
	c.SetParamNames("doctorId")
	c.SetParamValues(d.ID.String())
	expectHTTPStatus(t, h.CreateLeave(c), http.StatusBadRequest)
}

func TestHandler_ListLeaves(t *testing.T) {
	h, e := newTestHandler()
	d := createTestDoctor(t, h.svc)
	l := &LeavePeriod{DoctorID: d.ID, StartDate: mustDate(t, "2026-06-01"), EndDate: mustDate(t, "2026-06-02")}
	if err := h.svc.CreateLeave(context.Background(), l); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodGet, "", "p-1", auth.RolePatient), rec)
	c.SetParamNames("doctorId")
	c.SetParamValues(d.ID.String())
	if err := h.ListLeaves(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var items []LeavePeriod
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 1 || items[0].StartDate.String() != "2026-06-01" {
		t.Errorf("unexpected leaves %+v", items)
	}
}

func TestHandler_RegisterRoutes(t *testing.T) {
	h, e := newTestHandler()
	h.RegisterRoutes(e.Group("/api/v1"))

	want := make(map[string]bool)
	for _, route := range []string{
		"POST /api/v1/doctors",
		"GET /api/v1/doctors/:doctorId",
		"PATCH /api/v1/doctors/:doctorId/active",
		"PUT /api/v1/doctors/:doctorId/availability",
		"GET /api/v1/doctors/:doctorId/availability",
		"DELETE /api/v1/doctors/:doctorId/availability/:day",
		"POST /api/v1/doctors/:doctorId/overrides",
		"GET /api/v1/doctors/:doctorId/overrides",
		"DELETE /api/v1/doctors/:doctorId/overrides/:date",
		"POST /api/v1/doctors/:doctorId/leaves",
		"GET /api/v1/doctors/:doctorId/leaves",
		"DELETE /api/v1/doctors/:doctorId/leaves/:leaveId",
	} {
		want[route] = false
	}
	for _, r := range e.Routes() {
		key := r.Method + " " + r.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for route, found := range want {
		if !found {
			t.Errorf("route %s not registered", route)
		}
	}
}
