package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/docbook/docbook/internal/platform/apperr"
)

func TestAuthorize(t *testing.T) {
	tests := []struct {
		role    string
		allowed []string
		wantErr bool
	}{
		{RolePatient, []string{RolePatient}, false},
		{RoleDoctor, []string{RoleDoctor}, false},
		{RoleDoctor, []string{RolePatient, RoleDoctor}, false},
		{RolePatient, []string{RoleDoctor}, true},
		{RoleDoctor, []string{RolePatient}, true},
		{"", []string{RolePatient}, true},
		{"admin", []string{RolePatient, RoleDoctor}, true},
	}
	for _, tt := range tests {
		err := Authorize(tt.role, tt.allowed...)
		if (err != nil) != tt.wantErr {
			t.Errorf("Authorize(%q, %v) error = %v, wantErr %v", tt.role, tt.allowed, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, apperr.ErrForbidden) {
			t.Errorf("expected forbidden, got %v", err)
		}
	}
}

func TestRequireRole_Allowed(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(ContextWithUser(req.Context(), "p1", RolePatient))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}

	err := RequireRole(RolePatient)(handler)(c)
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestRequireRole_Denied(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(ContextWithUser(req.Context(), "d1", RoleDoctor))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}

	err := RequireRole(RolePatient)(handler)(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", httpErr.Code)
	}
}
