package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func runAuthenticate(t *testing.T, setHeader func(*http.Request)) (*httptest.ResponseRecorder, echo.Context, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if setHeader != nil {
		setHeader(req)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen echo.Context
	handler := func(c echo.Context) error {
		seen = c
		return c.String(http.StatusOK, "ok")
	}

	err := Authenticate(NewTokenIssuer(testSigningKey))(handler)(c)
	return rec, seen, err
}

func TestAuthenticate_MissingToken(t *testing.T) {
	_, _, err := runAuthenticate(t, nil)
	if err == nil {
		t.Fatal("expected error for missing token")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", httpErr.Code)
	}
}

func TestAuthenticate_TokenHeader(t *testing.T) {
	tok, _ := NewTokenIssuer(testSigningKey).Issue("patient-1", RolePatient)
	rec, c, err := runAuthenticate(t, func(r *http.Request) { r.Header.Set(TokenHeader, tok) })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	ctx := c.Request().Context()
	if UserIDFromContext(ctx) != "patient-1" {
		t.Errorf("expected user id patient-1, got %q", UserIDFromContext(ctx))
	}
	if RoleFromContext(ctx) != RolePatient {
		t.Errorf("expected role patient, got %q", RoleFromContext(ctx))
	}
}

func TestAuthenticate_BearerHeader(t *testing.T) {
	tok, _ := NewTokenIssuer(testSigningKey).Issue("doctor-1", RoleDoctor)
	_, c, err := runAuthenticate(t, func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if RoleFromContext(c.Request().Context()) != RoleDoctor {
		t.Error("expected doctor role on context")
	}
}

func TestAuthenticate_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"basic auth", "Basic dXNlcjpwYXNz"},
		{"garbage bearer", "Bearer abc.def.ghi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runAuthenticate(t, func(r *http.Request) { r.Header.Set("Authorization", tt.header) })
			httpErr, ok := err.(*echo.HTTPError)
			if !ok || httpErr.Code != http.StatusUnauthorized {
				t.Errorf("expected 401 HTTPError, got %v", err)
			}
		})
	}
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	stale := NewTokenIssuer(testSigningKey).WithClock(func() time.Time {
		return time.Now().Add(-TokenTTL - time.Minute)
	})
	tok, err := stale.Issue("patient-1", RolePatient)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	for name, set := range map[string]func(*http.Request){
		"token header":  func(r *http.Request) { r.Header.Set(TokenHeader, tok) },
		"bearer header": func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) },
	} {
		t.Run(name, func(t *testing.T) {
			_, seen, err := runAuthenticate(t, set)
			httpErr, ok := err.(*echo.HTTPError)
			if !ok || httpErr.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401 HTTPError, got %v", err)
			}
			if msg, _ := httpErr.Message.(string); !strings.Contains(msg, "expired") {
				t.Errorf("expected expiry message, got %v", httpErr.Message)
			}
			if seen != nil {
				t.Error("handler must not run for an expired token")
			}
		})
	}
}
