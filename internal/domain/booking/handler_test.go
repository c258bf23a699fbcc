package booking

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/docbook/docbook/internal/platform/auth"
)

func newRequest(method, body string, userID uuid.UUID, role string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, "/", nil)
	} else {
		req = httptest.NewRequest(method, "/", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if userID != uuid.Nil {
		req = req.WithContext(auth.ContextWithUser(req.Context(), userID.String(), role))
	}
	return req
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError, got %v", err)
	}
	return he.Code
}

func TestHandler_Book(t *testing.T) {
	f := newFixture()
	h, e := NewHandler(f.svc), echo.New()
	body := `{"doctorId":"` + f.doctorID.String() + `","date":"2025-03-20","time":"09:00 AM"}`

	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodPost, body, f.patientID, auth.RolePatient), rec)
	if err := h.Book(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var resp struct {
		Message     string      `json:"message"`
		Appointment Appointment `json:"appointment"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Appointment.Status != StatusConfirmed || resp.Appointment.PatientID != f.patientID {
		t.Errorf("unexpected appointment %+v", resp.Appointment)
	}

	// same slot again
	c = e.NewContext(newRequest(http.MethodPost, body, uuid.New(), auth.RolePatient), httptest.NewRecorder())
	if code := httpCode(t, h.Book(c)); code != http.StatusConflict {
		t.Errorf("expected 409, got %d", code)
	}
}

func TestHandler_Book_Errors(t *testing.T) {
	f := newFixture()
	h, e := NewHandler(f.svc), echo.New()

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing fields", `{"date":"2025-03-20"}`, http.StatusBadRequest},
		{"unknown doctor", `{"doctorId":"` + uuid.NewString() + `","date":"2025-03-20","time":"09:00 AM"}`, http.StatusNotFound},
		{"malformed json", `{"doctorId":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := e.NewContext(newRequest(http.MethodPost, tt.body, f.patientID, auth.RolePatient), httptest.NewRecorder())
			if code := httpCode(t, h.Book(c)); code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, code)
			}
		})
	}
}

func TestHandler_ListForDoctor(t *testing.T) {
	f := newFixture()
	f.book(t, "2025-03-20", "09:00 AM")
	h, e := NewHandler(f.svc), echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodGet, "", f.doctorID, auth.RoleDoctor), rec)
	c.SetParamNames("id")
	c.SetParamValues(f.doctorID.String())
	if err := h.ListForDoctor(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var items []Appointment
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 1 || items[0].Patient == nil || items[0].Patient.Email != "pat@example.com" {
		t.Errorf("unexpected items %+v", items)
	}
}

func TestHandler_ListForPatient_Empty(t *testing.T) {
	f := newFixture()
	h, e := NewHandler(f.svc), echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodGet, "", f.patientID, auth.RolePatient), rec)
	c.SetParamNames("id")
	c.SetParamValues(f.patientID.String())
	if err := h.ListForPatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected empty JSON array, got %s", rec.Body.String())
	}
}

func TestHandler_ListForOthersForbidden(t *testing.T) {
	f := newFixture()
	h, e := NewHandler(f.svc), echo.New()

	for _, param := range []string{uuid.NewString(), "not-a-uuid"} {
		c := e.NewContext(newRequest(http.MethodGet, "", f.doctorID, auth.RoleDoctor), httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues(param)
		if code := httpCode(t, h.ListForDoctor(c)); code != http.StatusForbidden {
			t.Errorf("param %q: expected 403, got %d", param, code)
		}
	}
}

func TestHandler_PatientDashboard(t *testing.T) {
	f := newFixture()
	f.book(t, "2025-03-20", "09:00 AM")
	f.book(t, "2025-03-01", "09:00 AM")
	h, e := NewHandler(f.svc), echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodGet, "", f.patientID, auth.RolePatient), rec)
	c.SetParamNames("id")
	c.SetParamValues(f.patientID.String())
	if err := h.PatientDashboard(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var d Dashboard
	if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(d.Upcoming) != 1 || len(d.Past) != 1 {
		t.Errorf("unexpected dashboard %+v", d)
	}
}

func TestHandler_SubmitReview(t *testing.T) {
	f := newFixture()
	a := f.book(t, "2025-03-01", "09:00 AM")
	h, e := NewHandler(f.svc), echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodPost, `{"rating":5,"comment":"ok"}`, f.patientID, auth.RolePatient), rec)
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())
	if err := h.SubmitReview(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	c = e.NewContext(newRequest(http.MethodPost, `{"rating":9}`, f.patientID, auth.RolePatient), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())
	if code := httpCode(t, h.SubmitReview(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_ListSlotsAndAvailability(t *testing.T) {
	f := newFixture()
	f.book(t, "2025-03-20", "02:30 PM")
	h, e := NewHandler(f.svc), echo.New()

	rec := httptest.NewRecorder()
	if err := h.ListSlots(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)); err != nil {
		t.Fatalf("ListSlots: %v", err)
	}
	var slots []string
	if err := json.Unmarshal(rec.Body.Bytes(), &slots); err != nil || len(slots) != 12 {
		t.Fatalf("unexpected slots %v (%v)", slots, err)
	}

	rec = httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?date=2025-03-20", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(f.doctorID.String())
	if err := h.Availability(c); err != nil {
		t.Fatalf("Availability: %v", err)
	}
	var avail []SlotAvailability
	if err := json.Unmarshal(rec.Body.Bytes(), &avail); err != nil {
		t.Fatalf("decode: %v", err)
	}
	booked := 0
	for _, s := range avail {
		if s.Booked {
			booked++
		}
	}
	if booked != 1 {
		t.Errorf("expected 1 booked slot, got %d", booked)
	}
}

func TestHandler_ExportForDoctor(t *testing.T) {
	f := newFixture()
	f.book(t, "2025-03-20", "09:00 AM")
	h, e := NewHandler(f.svc), echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodGet, "", f.doctorID, auth.RoleDoctor), rec)
	c.SetParamNames("id")
	c.SetParamValues(f.doctorID.String())
	if err := h.ExportForDoctor(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != xlsxMIME {
		t.Errorf("unexpected content type %q", ct)
	}
	if !strings.HasPrefix(rec.Body.String(), "PK") {
		t.Error("expected a zip (xlsx) body")
	}
}

func TestHandler_RoutesEnforceRoles(t *testing.T) {
	f := newFixture()
	issuer := auth.NewTokenIssuer([]byte("booking-routes-test-key"))
	e := echo.New()
	api := e.Group("/api")
	NewHandler(f.svc).RegisterRoutes(api, api.Group("", auth.Authenticate(issuer)))

	doctorToken, _ := issuer.Issue(f.doctorID.String(), auth.RoleDoctor)
	body := `{"doctorId":"` + f.doctorID.String() + `","date":"2025-03-20","time":"09:00 AM"}`

	// no token
	req := httptest.NewRequest(http.MethodPost, "/api/appointments/book", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}

	// doctor cannot book
	req = httptest.NewRequest(http.MethodPost, "/api/appointments/book", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(auth.TokenHeader, doctorToken)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for doctor booking, got %d", rec.Code)
	}

	// slots are public
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/slots", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for public slots, got %d", rec.Code)
	}
}
