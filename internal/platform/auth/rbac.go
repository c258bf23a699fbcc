package auth

import (
	"github.com/labstack/echo/v4"

	"github.com/docbook/docbook/internal/platform/apperr"
)

const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
)

// Authorize fails with Forbidden unless role is one of allowed.
func Authorize(role string, allowed ...string) error {
	for _, r := range allowed {
		if r == role {
			return nil
		}
	}
	return apperr.Forbidden("access denied: insufficient role")
}

// RequireRole returns middleware that admits only callers whose role is one
// of roles. It must run after Authenticate.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := Authorize(RoleFromContext(c.Request().Context()), roles...); err != nil {
				return apperr.HTTP(err)
			}
			return next(c)
		}
	}
}
